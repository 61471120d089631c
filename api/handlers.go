package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/lanre-19/WorkAura/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, events *EventDispatcher, logger *log.Logger) {
	updater := NewBulkUpdater(store, logger)

	e.GET("/api/tasks", getTasks(store, auth, logger))
	e.POST("/api/tasks", createTask(store, auth, events))
	e.GET("/api/tasks/:taskId", getTask(store, auth))
	e.PATCH("/api/tasks/:taskId", updateTask(store, auth, events))
	e.DELETE("/api/tasks/:taskId", deleteTask(store, auth, events))
	e.POST("/api/tasks/bulk-update", bulkUpdateTasks(auth, updater, events))
	e.POST("/api/tasks/:taskId/move", moveTask(store, auth, updater, events, logger))
	e.GET("/api/projects/:projectId/analytics", getProjectAnalytics(store, auth))
	e.GET("/api/workspaces/:workspaceId/analytics", getWorkspaceAnalytics(store, auth))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// requireMember resolves the acting user's membership in the workspace.
// A missing membership row maps to 401 without leaking which part failed.
func requireMember(ctx context.Context, store Storage, workspaceID, userID string) (domain.Member, error) {
	member, err := store.FindMember(ctx, workspaceID, userID)
	if err != nil {
		var nf NotFoundError
		if errors.As(err, &nf) {
			return domain.Member{}, ErrUnauthorized
		}
		return domain.Member{}, err
	}
	return member, nil
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func getTasks(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics := newBoardRequestMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
			return err
		}

		filter := domain.TaskFilter{
			WorkspaceID: c.QueryParam("workspaceId"),
			ProjectID:   c.QueryParam("projectId"),
			AssigneeID:  c.QueryParam("assigneeId"),
			Status:      domain.TaskStatus(c.QueryParam("status")),
			DueDate:     c.QueryParam("dueDate"),
			Search:      c.QueryParam("search"),
		}
		if filter.WorkspaceID == "" {
			metrics.SetErrorStage("missing_workspace")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "workspaceId is required"})
			return err
		}
		if filter.Status != "" && !filter.Status.Valid() {
			metrics.SetErrorStage("invalid_status")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown status"})
			return err
		}

		if _, err = requireMember(ctx, store, filter.WorkspaceID, userID); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				metrics.SetErrorStage("membership")
				err = c.JSON(http.StatusUnauthorized, errorResponse{Error: ErrUnauthorized.Error()})
				return err
			}
			metrics.SetErrorStage("storage")
			c.Logger().Error(err)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return err
		}

		fetchStart := time.Now()
		tasks, fetchErr := store.ListTasks(ctx, filter)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: fetchErr.Error()})
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		populateStart := time.Now()
		populated, popErr := populateTasks(ctx, store, tasks)
		metrics.ObservePopulate(time.Since(populateStart))
		if popErr != nil {
			metrics.SetErrorStage("populate")
			c.Logger().Error(popErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: popErr.Error()})
			return err
		}

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, taskListResponse{Tasks: populated, Total: len(populated)})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

// populateTasks batch-fetches the projects and members the tasks point at
// and attaches their summaries.
func populateTasks(ctx context.Context, store Storage, tasks []domain.Task) ([]domain.PopulatedTask, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "tasks.populate")
	defer span.End()

	projectIDs := distinct(tasks, func(t domain.Task) string { return t.ProjectID })
	assigneeIDs := distinct(tasks, func(t domain.Task) string { return t.AssigneeID })

	projects, err := store.ProjectsByIDs(ctx, projectIDs)
	if err != nil {
		return nil, err
	}
	members, err := store.MembersByIDs(ctx, assigneeIDs)
	if err != nil {
		return nil, err
	}

	projectByID := make(map[string]domain.Project, len(projects))
	for _, p := range projects {
		projectByID[p.ID] = p
	}
	memberByID := make(map[string]domain.Member, len(members))
	for _, m := range members {
		memberByID[m.ID] = m
	}

	populated := make([]domain.PopulatedTask, len(tasks))
	for i, t := range tasks {
		pt := domain.PopulatedTask{Task: t}
		if p, ok := projectByID[t.ProjectID]; ok {
			pt.Project = &domain.ProjectSummary{ID: p.ID, Name: p.Name, ImageURL: p.ImageURL}
		}
		if m, ok := memberByID[t.AssigneeID]; ok {
			pt.Assignee = &domain.AssigneeSummary{ID: m.ID, Name: m.Name, Email: m.Email}
		}
		populated[i] = pt
	}
	return populated, nil
}

func distinct(tasks []domain.Task, key func(domain.Task) string) []string {
	seen := make(map[string]struct{}, len(tasks))
	var out []string
	for _, t := range tasks {
		k := key(t)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func createTask(store Storage, auth Authenticator, events *EventDispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if req.Name == "" || req.WorkspaceID == "" || req.ProjectID == "" || req.AssigneeID == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "name, workspaceId, projectId and assigneeId are required"})
		}
		if !req.Status.Valid() {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown status"})
		}
		if req.DueDate == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "dueDate is required"})
		}
		if _, err := time.Parse(time.RFC3339, req.DueDate); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "dueDate must be RFC 3339"})
		}

		if _, err := requireMember(ctx, store, req.WorkspaceID, userID); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: ErrUnauthorized.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		// New cards land at the top of their column: one step above the
		// current minimum position, or the base position for an empty column.
		top, found, err := store.TopPosition(ctx, req.WorkspaceID, req.Status)
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		position := domain.MinPosition
		if found {
			position = top + domain.PositionStep
			if position > domain.MaxPosition {
				position = domain.MaxPosition
			}
		}

		task := domain.Task{
			ID:          uuid.NewString(),
			Name:        req.Name,
			Description: req.Description,
			Status:      req.Status,
			Position:    position,
			WorkspaceID: req.WorkspaceID,
			ProjectID:   req.ProjectID,
			AssigneeID:  req.AssigneeID,
			DueDate:     req.DueDate,
			CreatedAt:   time.Now().UTC(),
		}
		if err := store.CreateTask(ctx, task); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		events.Publish(domain.Event{
			Type:        domain.EventTaskCreated,
			WorkspaceID: task.WorkspaceID,
			TaskIDs:     []string{task.ID},
			ActorID:     userID,
			Timestamp:   time.Now().UnixNano(),
		})
		return c.JSON(http.StatusCreated, task)
	}
}

func getTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		task, err := store.GetTask(ctx, c.Param("taskId"))
		if err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		if _, err := requireMember(ctx, store, task.WorkspaceID, userID); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: ErrUnauthorized.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		populated, err := populateTasks(ctx, store, []domain.Task{task})
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, populated[0])
	}
}

func updateTask(store Storage, auth Authenticator, events *EventDispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		var req updateTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}

		task, err := store.GetTask(ctx, c.Param("taskId"))
		if err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		if _, err := requireMember(ctx, store, task.WorkspaceID, userID); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: ErrUnauthorized.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		if req.Name != nil {
			if *req.Name == "" {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "name cannot be empty"})
			}
			task.Name = *req.Name
		}
		if req.Description != nil {
			task.Description = *req.Description
		}
		if req.Status != nil {
			if !req.Status.Valid() {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown status"})
			}
			task.Status = *req.Status
		}
		if req.ProjectID != nil {
			task.ProjectID = *req.ProjectID
		}
		if req.AssigneeID != nil {
			task.AssigneeID = *req.AssigneeID
		}
		if req.DueDate != nil {
			if _, err := time.Parse(time.RFC3339, *req.DueDate); err != nil {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "dueDate must be RFC 3339"})
			}
			task.DueDate = *req.DueDate
		}

		if err := store.UpdateTask(ctx, task); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		events.Publish(domain.Event{
			Type:        domain.EventTaskUpdated,
			WorkspaceID: task.WorkspaceID,
			TaskIDs:     []string{task.ID},
			ActorID:     userID,
			Timestamp:   time.Now().UnixNano(),
		})
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(store Storage, auth Authenticator, events *EventDispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		task, err := store.GetTask(ctx, c.Param("taskId"))
		if err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		if _, err := requireMember(ctx, store, task.WorkspaceID, userID); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: ErrUnauthorized.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		if err := store.DeleteTask(ctx, task); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		events.Publish(domain.Event{
			Type:        domain.EventTaskDeleted,
			WorkspaceID: task.WorkspaceID,
			TaskIDs:     []string{task.ID},
			ActorID:     userID,
			Timestamp:   time.Now().UnixNano(),
		})
		return c.JSON(http.StatusOK, map[string]string{"id": task.ID})
	}
}

func bulkUpdateTasks(auth Authenticator, updater *BulkUpdater, events *EventDispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		var req bulkUpdateRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}

		updated, err := updater.Apply(ctx, userID, req.Tasks)
		if err != nil {
			return respondBulkError(c, err)
		}

		events.Publish(reorderEvent(updated, userID))
		return c.JSON(http.StatusOK, bulkUpdateResponse{Tasks: updated})
	}
}

func respondBulkError(c echo.Context, err error) error {
	var partial *PartialWriteError
	var nf NotFoundError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrCrossWorkspaceBatch):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &partial):
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "some task updates failed", FailedIDs: partial.FailedIDs})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func reorderEvent(updated []domain.Task, userID string) domain.Event {
	ev := domain.Event{
		Type:      domain.EventTasksReordered,
		ActorID:   userID,
		Timestamp: time.Now().UnixNano(),
	}
	for _, t := range updated {
		ev.WorkspaceID = t.WorkspaceID
		ev.TaskIDs = append(ev.TaskIDs, t.ID)
	}
	return ev
}

// moveTask accepts one drag gesture, replays it against a server-side board
// snapshot and persists the resulting batch through the same trust boundary
// as bulk-update.
func moveTask(store Storage, auth Authenticator, updater *BulkUpdater, events *EventDispatcher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		var req moveTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}

		taskID := c.Param("taskId")
		task, err := store.GetTask(ctx, taskID)
		if err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		if _, err := requireMember(ctx, store, task.WorkspaceID, userID); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: ErrUnauthorized.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		tasks, err := store.ListTasks(ctx, domain.TaskFilter{WorkspaceID: task.WorkspaceID, ProjectID: req.ProjectID})
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		board := domain.NewBoard(tasks)
		next, batch, err := board.Move(domain.Move{
			TaskID:       taskID,
			SourceStatus: req.SourceStatus,
			SourceIndex:  req.SourceIndex,
			DestStatus:   req.DestStatus,
			DestIndex:    req.DestIndex,
		})
		if err != nil {
			if errors.Is(err, domain.ErrUnknownStatus) {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			}
			if errors.Is(err, domain.ErrStaleSnapshot) {
				return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}

		if destLen := len(next.Column(req.DestStatus)); domain.ColumnSaturated(destLen) {
			logger.WithFields(log.Fields{
				"workspace_id": task.WorkspaceID,
				"status":       req.DestStatus,
				"column_size":  destLen,
			}).Warn("column saturated position range; tail cards share the capped position")
		}

		items := make([]BulkTaskUpdate, len(batch))
		for i, u := range batch {
			items[i] = BulkTaskUpdate{ID: u.ID, Status: u.Status, Position: u.Position}
		}
		updated, err := updater.Apply(ctx, userID, items)
		if err != nil {
			return respondBulkError(c, err)
		}

		events.Publish(reorderEvent(updated, userID))
		return c.JSON(http.StatusOK, bulkUpdateResponse{Tasks: updated})
	}
}

