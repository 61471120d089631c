package domain

import (
	"fmt"
	"testing"
)

func benchTasks(perColumn int) []Task {
	tasks := make([]Task, 0, perColumn*len(Statuses()))
	for _, s := range Statuses() {
		for i := 0; i < perColumn; i++ {
			tasks = append(tasks, Task{
				ID:          fmt.Sprintf("%s-%d", s, i),
				Status:      s,
				Position:    PositionFor(i),
				WorkspaceID: "ws-bench",
			})
		}
	}
	return tasks
}

func BenchmarkNewBoard(b *testing.B) {
	for _, perColumn := range []int{10, 100, 1000} {
		tasks := benchTasks(perColumn)
		b.Run(fmt.Sprintf("col_%d", perColumn), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				NewBoard(tasks)
			}
		})
	}
}

func BenchmarkBoardMove(b *testing.B) {
	for _, perColumn := range []int{10, 100, 1000} {
		board := NewBoard(benchTasks(perColumn))
		move := Move{
			SourceStatus: StatusTodo,
			SourceIndex:  perColumn - 1,
			DestStatus:   StatusDone,
			DestIndex:    0,
		}
		b.Run(fmt.Sprintf("col_%d", perColumn), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, _, err := board.Move(move); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
