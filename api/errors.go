package api

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds for the bulk-update boundary. All of them are fail-fast and
// carry zero side effects; PartialWriteError is the one exception, reported
// after authorization once some writes have already landed.
var (
	// ErrInvalidRequest marks a malformed batch: empty, unknown status or
	// position outside the accepted range. Raised before any store access.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrCrossWorkspaceBatch marks a batch referencing tasks from more than
	// one workspace. The batch is rejected whole.
	ErrCrossWorkspaceBatch = errors.New("all tasks must belong to the same workspace")
	// ErrUnauthorized marks a principal without membership in the resolved
	// workspace.
	ErrUnauthorized = errors.New("unauthorized")
)

// PartialWriteError reports the ids whose writes failed after the batch was
// authorized. The remaining writes are not rolled back; clients recover by
// re-fetching the board.
type PartialWriteError struct {
	FailedIDs []string
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("failed to update tasks: %s", strings.Join(e.FailedIDs, ", "))
}
