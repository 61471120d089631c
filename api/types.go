package api

import (
	"context"

	"github.com/lanre-19/WorkAura/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error)
	GetTask(ctx context.Context, taskID string) (domain.Task, error)
	GetTasksByIDs(ctx context.Context, ids []string) ([]domain.Task, error)
	CreateTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, t domain.Task) error
	ApplyTaskUpdate(ctx context.Context, t domain.Task, u domain.TaskUpdate) error
	DeleteTask(ctx context.Context, t domain.Task) error
	TopPosition(ctx context.Context, workspaceID string, status domain.TaskStatus) (int, bool, error)
	CountTasks(ctx context.Context, q domain.TaskCountQuery) (int, error)

	FindMember(ctx context.Context, workspaceID, userID string) (domain.Member, error)
	MembersByIDs(ctx context.Context, ids []string) ([]domain.Member, error)
	GetProject(ctx context.Context, projectID string) (domain.Project, error)
	ProjectsByIDs(ctx context.Context, ids []string) ([]domain.Project, error)

	EnqueueEvent(ctx context.Context, ev domain.Event) error
}

// NotFoundError is implemented by storage errors for missing documents.
type NotFoundError interface {
	error
	NotFound()
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}
