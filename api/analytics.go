package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lanre-19/WorkAura/domain"
)

func getProjectAnalytics(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		project, err := store.GetProject(ctx, c.Param("projectId"))
		if err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		member, err := requireMember(ctx, store, project.WorkspaceID, userID)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: ErrUnauthorized.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		resp, err := computeAnalytics(ctx, store, project.WorkspaceID, project.ID, member.ID, time.Now().UTC())
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func getWorkspaceAnalytics(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		workspaceID := c.Param("workspaceId")
		member, err := requireMember(ctx, store, workspaceID, userID)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: ErrUnauthorized.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		resp, err := computeAnalytics(ctx, store, workspaceID, "", member.ID, time.Now().UTC())
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func endOfMonth(t time.Time) time.Time {
	return startOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// computeAnalytics counts tasks created this calendar month against the
// previous one, scoped to a workspace and optionally one project.
func computeAnalytics(ctx context.Context, store Storage, workspaceID, projectID, memberID string, now time.Time) (analyticsResponse, error) {
	thisStart := startOfMonth(now)
	thisEnd := endOfMonth(now)
	lastStart := startOfMonth(thisStart.AddDate(0, -1, 0))
	lastEnd := endOfMonth(lastStart)

	count := func(q domain.TaskCountQuery, from, to time.Time) (int, error) {
		q.WorkspaceID = workspaceID
		q.ProjectID = projectID
		q.CreatedFrom = from
		q.CreatedTo = to
		return store.CountTasks(ctx, q)
	}
	monthPair := func(q domain.TaskCountQuery) (int, int, error) {
		this, err := count(q, thisStart, thisEnd)
		if err != nil {
			return 0, 0, err
		}
		last, err := count(q, lastStart, lastEnd)
		if err != nil {
			return 0, 0, err
		}
		return this, this - last, nil
	}

	var resp analyticsResponse
	var err error
	if resp.TaskCount, resp.TaskDifference, err = monthPair(domain.TaskCountQuery{}); err != nil {
		return analyticsResponse{}, err
	}
	if resp.AssignedTaskCount, resp.AssignedTaskDifference, err = monthPair(domain.TaskCountQuery{AssigneeID: memberID}); err != nil {
		return analyticsResponse{}, err
	}
	if resp.IncompleteTaskCount, resp.IncompleteTaskDifference, err = monthPair(domain.TaskCountQuery{StatusNotEquals: domain.StatusDone}); err != nil {
		return analyticsResponse{}, err
	}
	if resp.CompletedTaskCount, resp.CompletedTaskDifference, err = monthPair(domain.TaskCountQuery{StatusEquals: domain.StatusDone}); err != nil {
		return analyticsResponse{}, err
	}
	overdue := domain.TaskCountQuery{StatusNotEquals: domain.StatusDone, DueBefore: now.Format(time.RFC3339)}
	if resp.OverdueTaskCount, resp.OverdueTaskDifference, err = monthPair(overdue); err != nil {
		return analyticsResponse{}, err
	}
	return resp, nil
}
