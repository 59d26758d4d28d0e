package reorg

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"lattice/internal/items"
)

// BatchResult is the outcome of a batch move.
type BatchResult struct {
	Moved     int      `json:"moved"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// Move reassigns every item in ids to dest, issuing one update per item
// concurrently. Individual mutations have no ordering guarantee; only the
// aggregate outcome matters. The batch is successful only if every update
// succeeds; otherwise a *BatchError is returned, with completed updates
// left in place. When ctx is cancelled mid-flight, ctx.Err() is returned
// and responses from already-sent requests are not reflected in the
// result.
func Move(ctx context.Context, store items.Store, ids []string, dest string) (BatchResult, error) {
	var (
		mu     sync.Mutex
		moved  int
		failed []string
		wg     sync.WaitGroup
	)

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := store.Update(ctx, id, items.Update{CategoryPath: items.Ptr(dest)})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, id)
			} else {
				moved++
			}
		}(id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Cancelled: the writes may or may not have landed. Report nothing;
		// the next refresh reconciles with the remote state.
		slog.Debug("reorg: batch move aborted", "dest", dest, "count", len(ids))
		return BatchResult{}, err
	}

	sort.Strings(failed)
	result := BatchResult{Moved: moved, FailedIDs: failed}
	if len(failed) > 0 {
		return result, &BatchError{Dest: dest, Total: len(ids), FailedIDs: failed}
	}
	return result, nil
}

// DragSet resolves which items a drop should move: if the dragged item is
// part of the current selection, the whole selection moves; otherwise only
// the dragged item moves and the selection is left untouched.
func DragSet(draggedID string, selected map[string]struct{}) []string {
	if _, ok := selected[draggedID]; !ok {
		return []string{draggedID}
	}
	ids := make([]string, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
