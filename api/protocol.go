package api

import "github.com/lanre-19/WorkAura/domain"

// Request bodies larger than this are rejected while decoding.
const requestBodyMaxSize = 64 * 1024 // 64 KiB

type errorResponse struct {
	Error     string   `json:"error"`
	FailedIDs []string `json:"failedIds,omitempty"`
}

type taskListResponse struct {
	Tasks []domain.PopulatedTask `json:"tasks"`
	Total int                    `json:"total"`
}

type createTaskRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Status      domain.TaskStatus `json:"status"`
	WorkspaceID string            `json:"workspaceId"`
	ProjectID   string            `json:"projectId"`
	AssigneeID  string            `json:"assigneeId"`
	DueDate     string            `json:"dueDate"`
}

// updateTaskRequest is a partial update; nil fields stay untouched.
type updateTaskRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Status      *domain.TaskStatus `json:"status"`
	ProjectID   *string            `json:"projectId"`
	AssigneeID  *string            `json:"assigneeId"`
	DueDate     *string            `json:"dueDate"`
}

type bulkUpdateRequest struct {
	Tasks []BulkTaskUpdate `json:"tasks"`
}

type bulkUpdateResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

// moveTaskRequest carries one drag gesture. ProjectID scopes the board the
// indices refer to when the client was showing a project view.
type moveTaskRequest struct {
	ProjectID    string            `json:"projectId"`
	SourceStatus domain.TaskStatus `json:"sourceStatus"`
	SourceIndex  int               `json:"sourceIndex"`
	DestStatus   domain.TaskStatus `json:"destStatus"`
	DestIndex    int               `json:"destIndex"`
}

type analyticsResponse struct {
	TaskCount                int `json:"taskCount"`
	TaskDifference           int `json:"taskDifference"`
	AssignedTaskCount        int `json:"assignedTaskCount"`
	AssignedTaskDifference   int `json:"assignedTaskDifference"`
	IncompleteTaskCount      int `json:"incompleteTaskCount"`
	IncompleteTaskDifference int `json:"incompleteTaskDifference"`
	CompletedTaskCount       int `json:"completedTaskCount"`
	CompletedTaskDifference  int `json:"completedTaskDifference"`
	OverdueTaskCount         int `json:"overdueTaskCount"`
	OverdueTaskDifference    int `json:"overdueTaskDifference"`
}
