package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lanre-19/WorkAura/domain"
)

func analyticsTask(id string, status domain.TaskStatus, assigneeID, dueDate string, createdAt time.Time) domain.Task {
	return domain.Task{
		ID:          id,
		Name:        "Task " + id,
		Status:      status,
		Position:    1000,
		WorkspaceID: "ws-1",
		ProjectID:   "p-1",
		AssigneeID:  assigneeID,
		DueDate:     dueDate,
		CreatedAt:   createdAt,
	}
}

func TestComputeAnalyticsMonthOverMonth(t *testing.T) {
	now := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)
	thisMonth := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC)
	pastDue := "2026-08-01T00:00:00Z"
	futureDue := "2026-12-01T00:00:00Z"

	store := &mockStore{
		tasks: []domain.Task{
			analyticsTask("t1", domain.StatusTodo, "m-1", futureDue, thisMonth),
			analyticsTask("t2", domain.StatusDone, "m-1", futureDue, thisMonth),
			analyticsTask("t3", domain.StatusInProgress, "m-2", pastDue, thisMonth),
			analyticsTask("t4", domain.StatusTodo, "m-2", futureDue, lastMonth),
			analyticsTask("t5", domain.StatusDone, "m-1", futureDue, lastMonth),
		},
	}

	resp, err := computeAnalytics(context.Background(), store, "ws-1", "p-1", "m-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.TaskCount != 3 || resp.TaskDifference != 1 {
		t.Fatalf("total: got count=%d diff=%d", resp.TaskCount, resp.TaskDifference)
	}
	if resp.AssignedTaskCount != 2 || resp.AssignedTaskDifference != 1 {
		t.Fatalf("assigned: got count=%d diff=%d", resp.AssignedTaskCount, resp.AssignedTaskDifference)
	}
	if resp.IncompleteTaskCount != 2 || resp.IncompleteTaskDifference != 1 {
		t.Fatalf("incomplete: got count=%d diff=%d", resp.IncompleteTaskCount, resp.IncompleteTaskDifference)
	}
	if resp.CompletedTaskCount != 1 || resp.CompletedTaskDifference != 0 {
		t.Fatalf("completed: got count=%d diff=%d", resp.CompletedTaskCount, resp.CompletedTaskDifference)
	}
	if resp.OverdueTaskCount != 1 || resp.OverdueTaskDifference != 1 {
		t.Fatalf("overdue: got count=%d diff=%d", resp.OverdueTaskCount, resp.OverdueTaskDifference)
	}
}

func TestComputeAnalyticsScopesToProject(t *testing.T) {
	now := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)
	created := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)

	inProject := analyticsTask("t1", domain.StatusTodo, "m-1", "2026-12-01T00:00:00Z", created)
	otherProject := analyticsTask("t2", domain.StatusTodo, "m-1", "2026-12-01T00:00:00Z", created)
	otherProject.ProjectID = "p-2"
	store := &mockStore{tasks: []domain.Task{inProject, otherProject}}

	resp, err := computeAnalytics(context.Background(), store, "ws-1", "p-1", "m-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TaskCount != 1 {
		t.Fatalf("expected project scope to exclude other projects, got %d", resp.TaskCount)
	}
}

func TestProjectAnalyticsUnknownProject(t *testing.T) {
	e := echo.New()
	store := &mockStore{members: []domain.Member{memberOf("m-1", "ws-1", "u1")}}
	rec := doRequest(t, e, http.MethodGet, "/api/projects/ghost/analytics", "", getProjectAnalytics(store, mockAuth{userID: "u1"}), map[string]string{"projectId": "ghost"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestWorkspaceAnalyticsRequiresMembership(t *testing.T) {
	e := echo.New()
	store := &mockStore{}
	rec := doRequest(t, e, http.MethodGet, "/api/workspaces/ws-1/analytics", "", getWorkspaceAnalytics(store, mockAuth{userID: "outsider"}), map[string]string{"workspaceId": "ws-1"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}
}
