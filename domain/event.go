package domain

// Board event types enqueued after successful mutations.
const (
	EventTaskCreated    = "task-created"
	EventTaskUpdated    = "task-updated"
	EventTaskDeleted    = "task-deleted"
	EventTasksReordered = "tasks-reordered"
)

// Event records one board mutation for downstream consumers.
type Event struct {
	Type        string   `json:"type"`
	WorkspaceID string   `json:"workspaceId"`
	TaskIDs     []string `json:"taskIds,omitempty"`
	ActorID     string   `json:"actorId,omitempty"`
	Timestamp   int64    `json:"timestamp"`
}
