package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lanre-19/WorkAura/domain"
)

// BulkTaskUpdate is one entry of a reorder batch as it crosses the API
// boundary.
type BulkTaskUpdate struct {
	ID       string            `json:"id"`
	Status   domain.TaskStatus `json:"status"`
	Position int               `json:"position"`
}

type missingTasksError struct{ ids []string }

func (e missingTasksError) Error() string {
	return "tasks not found: " + strings.Join(e.ids, ", ")
}
func (e missingTasksError) NotFound() {}

// BulkUpdater is the trust boundary between a client-computed reorder batch
// and the store. It validates the batch shape, proves every referenced task
// lives in one workspace, proves the acting user is a member of that
// workspace, and only then writes.
type BulkUpdater struct {
	store  Storage
	logger *log.Logger
}

// NewBulkUpdater creates a BulkUpdater backed by the given store.
func NewBulkUpdater(store Storage, logger *log.Logger) *BulkUpdater {
	return &BulkUpdater{store: store, logger: logger}
}

func validateBatch(items []BulkTaskUpdate) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("%w: task %d has no id", ErrInvalidRequest, i)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: duplicate task %s", ErrInvalidRequest, item.ID)
		}
		seen[item.ID] = struct{}{}
		if !item.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, item.Status)
		}
		if !domain.ValidPosition(item.Position) {
			return fmt.Errorf("%w: position %d out of range", ErrInvalidRequest, item.Position)
		}
	}
	return nil
}

// Apply authorizes and persists a reorder batch on behalf of userID. It
// returns the tasks with the batch applied. Before authorization passes no
// write happens; after it, each record's write is independent and failures
// surface as a PartialWriteError without rolling the rest back.
func (u *BulkUpdater) Apply(ctx context.Context, userID string, items []BulkTaskUpdate) ([]domain.Task, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "tasks.bulk_update")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(items)))

	if err := validateBatch(items); err != nil {
		return nil, err
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	current, err := u.store.GetTasksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Task, len(current))
	workspaces := make(map[string]struct{})
	for _, t := range current {
		byID[t.ID] = t
		workspaces[t.WorkspaceID] = struct{}{}
	}
	if len(byID) != len(ids) {
		var missing []string
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, missingTasksError{ids: missing}
	}
	if len(workspaces) != 1 {
		return nil, ErrCrossWorkspaceBatch
	}
	var workspaceID string
	for ws := range workspaces {
		workspaceID = ws
	}
	if workspaceID == "" {
		return nil, ErrCrossWorkspaceBatch
	}

	if _, err := u.store.FindMember(ctx, workspaceID, userID); err != nil {
		var nf NotFoundError
		if errors.As(err, &nf) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	// Authorized. Writes from here on are independent per record.
	updated := make([]domain.Task, 0, len(items))
	var failed []string
	for _, item := range items {
		task := byID[item.ID]
		update := domain.TaskUpdate{ID: item.ID, Status: item.Status, Position: item.Position}
		if err := u.store.ApplyTaskUpdate(ctx, task, update); err != nil {
			u.logger.WithFields(log.Fields{
				"task_id":      item.ID,
				"workspace_id": workspaceID,
				"error":        err.Error(),
			}).Error("bulk update write failed")
			failed = append(failed, item.ID)
			continue
		}
		task.Status = item.Status
		task.Position = item.Position
		updated = append(updated, task)
	}
	if len(failed) > 0 {
		return updated, &PartialWriteError{FailedIDs: failed}
	}
	return updated, nil
}
