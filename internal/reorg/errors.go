// Package reorg coordinates structural mutations of the category
// hierarchy: category creation, item transfer, and batch moves. All
// category writes funnel through the Controller, which is what makes its
// single-occupancy guard sufficient to prevent overlapping mutations.
package reorg

import (
	"errors"
	"fmt"
)

// Validation errors. These never leave the dialog: the flow returns to the
// awaiting-input state so the user can correct the name.
var (
	// ErrEmptyName is returned when the candidate category name is empty
	// after trimming.
	ErrEmptyName = errors.New("category name is empty")
	// ErrPathExists is returned when the fully-qualified path already
	// exists in the current tree (exact lookup, not prefix).
	ErrPathExists = errors.New("category already exists")
)

// ErrParentHasItems signals that the parent category targeted for
// subcategory creation already owns items. Not a failure: it triggers the
// transfer sub-flow, which asks whether to move those items into the new
// subcategory.
var ErrParentHasItems = errors.New("parent category already has items")

// ErrBusy is returned when a mutating operation is triggered while another
// is already in flight. Triggers are rejected, never queued.
var ErrBusy = errors.New("another operation is in flight")

// BatchError reports a batch move in which one or more item mutations
// failed. Mutations that already completed are not rolled back; the caller
// reconciles by refetching the item list.
type BatchError struct {
	Dest      string
	Total     int
	FailedIDs []string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("move to %q: %d of %d items failed", e.Dest, len(e.FailedIDs), e.Total)
}

// Partial reports whether some mutations succeeded before the batch
// failed.
func (e *BatchError) Partial() bool {
	return len(e.FailedIDs) < e.Total
}
