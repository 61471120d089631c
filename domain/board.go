package domain

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownStatus is returned when a move references a column label
	// outside the fixed set.
	ErrUnknownStatus = errors.New("unknown board column")
	// ErrStaleSnapshot is returned when a move does not match the board
	// snapshot, i.e. the caller's view and the snapshot have diverged.
	ErrStaleSnapshot = errors.New("board snapshot out of sync with move")
)

// Board is an in-memory snapshot of one workspace's kanban columns. It is a
// value: Move never mutates the receiver, it returns a new snapshot together
// with the update batch implied by the move. Convergence with the store is
// reached by rebuilding the board from a fresh task fetch, not by patching.
type Board struct {
	columns map[TaskStatus][]Task
}

// NewBoard partitions tasks into the fixed set of columns by status and
// sorts each column ascending by position. Every column exists even when
// empty. Ties on position keep input order.
func NewBoard(tasks []Task) Board {
	columns := make(map[TaskStatus][]Task, len(Statuses()))
	for _, s := range Statuses() {
		columns[s] = []Task{}
	}
	for _, t := range tasks {
		if !t.Status.Valid() {
			continue
		}
		columns[t.Status] = append(columns[t.Status], t)
	}
	for s := range columns {
		col := columns[s]
		sort.SliceStable(col, func(i, j int) bool { return col[i].Position < col[j].Position })
	}
	return Board{columns: columns}
}

// Column returns a copy of the ordered column for the given status.
func (b Board) Column(s TaskStatus) []Task {
	col := b.columns[s]
	out := make([]Task, len(col))
	copy(out, col)
	return out
}

// Size returns the total number of tasks on the board.
func (b Board) Size() int {
	n := 0
	for _, col := range b.columns {
		n += len(col)
	}
	return n
}

// Move describes a single drag-and-drop gesture: take the card at
// SourceIndex of the SourceStatus column and drop it at DestIndex of the
// DestStatus column.
type Move struct {
	TaskID       string     `json:"taskId"`
	SourceStatus TaskStatus `json:"sourceStatus"`
	SourceIndex  int        `json:"sourceIndex"`
	DestStatus   TaskStatus `json:"destStatus"`
	DestIndex    int        `json:"destIndex"`
}

// TaskUpdate is one entry of the batch a move produces: the task's new
// column membership and position.
type TaskUpdate struct {
	ID       string     `json:"id"`
	Status   TaskStatus `json:"status"`
	Position int        `json:"position"`
}

// Move applies a drag gesture and returns the resulting snapshot together
// with the minimal update batch, computed atomically from the post-move
// column contents. On error the receiver is unchanged and no batch is
// produced. Positions recorded inside the returned snapshot keep their
// pre-move values; they converge on the next rebuild from the store.
func (b Board) Move(m Move) (Board, []TaskUpdate, error) {
	if !m.SourceStatus.Valid() || !m.DestStatus.Valid() {
		return Board{}, nil, ErrUnknownStatus
	}

	source := b.columns[m.SourceStatus]
	if m.SourceIndex < 0 || m.SourceIndex >= len(source) {
		return Board{}, nil, fmt.Errorf("%w: no task at %s[%d]", ErrStaleSnapshot, m.SourceStatus, m.SourceIndex)
	}
	moved := source[m.SourceIndex]
	if m.TaskID != "" && moved.ID != m.TaskID {
		return Board{}, nil, fmt.Errorf("%w: expected %s at %s[%d], found %s",
			ErrStaleSnapshot, m.TaskID, m.SourceStatus, m.SourceIndex, moved.ID)
	}

	newSource := make([]Task, 0, len(source)-1)
	newSource = append(newSource, source[:m.SourceIndex]...)
	newSource = append(newSource, source[m.SourceIndex+1:]...)

	crossed := m.SourceStatus != m.DestStatus
	if crossed {
		moved.Status = m.DestStatus
	}

	dest := b.columns[m.DestStatus]
	if !crossed {
		dest = newSource
	}
	destIndex := m.DestIndex
	if destIndex < 0 {
		destIndex = 0
	}
	if destIndex > len(dest) {
		destIndex = len(dest)
	}
	newDest := make([]Task, 0, len(dest)+1)
	newDest = append(newDest, dest[:destIndex]...)
	newDest = append(newDest, moved)
	newDest = append(newDest, dest[destIndex:]...)

	columns := make(map[TaskStatus][]Task, len(b.columns))
	for s, col := range b.columns {
		columns[s] = col
	}
	columns[m.DestStatus] = newDest
	if crossed {
		columns[m.SourceStatus] = newSource
	}

	updates := reconcile(moved.ID, m.DestStatus, destIndex, newDest, crossed, m.SourceStatus, newSource)
	return Board{columns: columns}, updates, nil
}

// reconcile diffs the post-move columns against the positions still recorded
// on their tasks. The moved task is always included with its landing
// position; every other task is included only when its recomputed position
// differs from the recorded one, so untouched cards produce no writes.
func reconcile(movedID string, dest TaskStatus, destIndex int, destCol []Task, crossed bool, source TaskStatus, sourceCol []Task) []TaskUpdate {
	updates := []TaskUpdate{{ID: movedID, Status: dest, Position: PositionFor(destIndex)}}
	updates = append(updates, columnUpdates(dest, destCol, movedID)...)
	if crossed {
		updates = append(updates, columnUpdates(source, sourceCol, "")...)
	}
	return updates
}

func columnUpdates(status TaskStatus, col []Task, skipID string) []TaskUpdate {
	var updates []TaskUpdate
	for i, t := range col {
		if skipID != "" && t.ID == skipID {
			continue
		}
		if p := PositionFor(i); p != t.Position {
			updates = append(updates, TaskUpdate{ID: t.ID, Status: status, Position: p})
		}
	}
	return updates
}

// Renormalize recomputes evenly spaced positions for one column and returns
// updates for exactly the tasks whose recorded position differs. A column
// already spaced at 1000, 2000, ... yields an empty batch.
func (b Board) Renormalize(status TaskStatus) []TaskUpdate {
	return columnUpdates(status, b.columns[status], "")
}
