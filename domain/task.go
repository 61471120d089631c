package domain

import "time"

// TaskStatus is the column a task lives in on the board. It is a pure
// grouping tag, not an ordering relation.
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "BACKLOG"
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusInReview   TaskStatus = "IN_REVIEW"
	StatusDone       TaskStatus = "DONE"
)

// Statuses lists every board column in display order.
func Statuses() []TaskStatus {
	return []TaskStatus{StatusBacklog, StatusTodo, StatusInProgress, StatusInReview, StatusDone}
}

// Valid reports whether s is one of the fixed column labels.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusBacklog, StatusTodo, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

// Task represents a single board card.
type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Position    int        `json:"position"`
	WorkspaceID string     `json:"workspaceId"`
	ProjectID   string     `json:"projectId"`
	AssigneeID  string     `json:"assigneeId"`
	DueDate     string     `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ProjectSummary is the slice of a project attached to a populated task.
type ProjectSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// AssigneeSummary is the slice of a member attached to a populated task.
type AssigneeSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// PopulatedTask is a task with its relational fields resolved for display.
type PopulatedTask struct {
	Task
	Project  *ProjectSummary  `json:"project,omitempty"`
	Assignee *AssigneeSummary `json:"assignee,omitempty"`
}
