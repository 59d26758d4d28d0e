package reorg

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"

	"lattice/internal/items"
)

// stubStore implements items.Store for testing. Individual ids can be
// made to fail, and every call is recorded.
type stubStore struct {
	mu      sync.Mutex
	items   map[string]items.Item
	failIDs map[string]struct{}
	creates []items.Draft
	updates []string
	block   chan struct{} // when non-nil, Update waits on it
}

func newStubStore(ids ...string) *stubStore {
	s := &stubStore{
		items:   make(map[string]items.Item),
		failIDs: make(map[string]struct{}),
	}
	for _, id := range ids {
		s.items[id] = items.Item{ID: id, Title: id, CategoryPath: "Old"}
	}
	return s
}

func (s *stubStore) List(ctx context.Context) ([]items.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []items.Item
	for _, it := range s.items {
		out = append(out, it)
	}
	return out, nil
}

func (s *stubStore) Create(ctx context.Context, d items.Draft) (*items.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates = append(s.creates, d)
	it := items.Item{ID: items.NewID(), Title: d.Title, CategoryPath: d.CategoryPath, Placeholder: d.Placeholder}
	s.items[it.ID] = it
	return &it, nil
}

func (s *stubStore) Update(ctx context.Context, id string, u items.Update) (*items.Item, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, id)
	if _, fail := s.failIDs[id]; fail {
		return nil, fmt.Errorf("update %s: boom", id)
	}
	it, ok := s.items[id]
	if !ok {
		return nil, items.ErrNotFound
	}
	if u.CategoryPath != nil {
		it.CategoryPath = *u.CategoryPath
	}
	s.items[id] = it
	return &it, nil
}

func (s *stubStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *stubStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *stubStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creates)
}

func TestMove_AllSucceed(t *testing.T) {
	store := newStubStore("a", "b", "c")

	result, err := Move(context.Background(), store, []string{"a", "b", "c"}, "New")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if result.Moved != 3 || len(result.FailedIDs) != 0 {
		t.Errorf("result = %+v", result)
	}

	list, _ := store.List(context.Background())
	for _, it := range list {
		if it.CategoryPath != "New" {
			t.Errorf("item %s not moved: %q", it.ID, it.CategoryPath)
		}
	}
}

func TestMove_PartialFailureNoRollback(t *testing.T) {
	store := newStubStore("a", "b", "c")
	store.failIDs["b"] = struct{}{}

	result, err := Move(context.Background(), store, []string{"a", "b", "c"}, "New")
	if err == nil {
		t.Fatal("expected batch error")
	}

	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BatchError, got %T", err)
	}
	if !be.Partial() {
		t.Error("expected partial failure")
	}
	if !reflect.DeepEqual(be.FailedIDs, []string{"b"}) {
		t.Errorf("failed ids = %v", be.FailedIDs)
	}
	if result.Moved != 2 {
		t.Errorf("moved = %d, want 2", result.Moved)
	}

	// Completed mutations stay in place.
	list, _ := store.List(context.Background())
	moved := 0
	for _, it := range list {
		if it.CategoryPath == "New" {
			moved++
		}
	}
	if moved != 2 {
		t.Errorf("expected 2 items left at destination, got %d", moved)
	}
}

func TestMove_TotalFailure(t *testing.T) {
	store := newStubStore("a", "b")
	store.failIDs["a"] = struct{}{}
	store.failIDs["b"] = struct{}{}

	_, err := Move(context.Background(), store, []string{"a", "b"}, "New")
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BatchError, got %v", err)
	}
	if be.Partial() {
		t.Error("total failure must not report as partial")
	}
	if len(be.FailedIDs) != 2 {
		t.Errorf("failed ids = %v", be.FailedIDs)
	}
}

func TestMove_CancelledReportsNothing(t *testing.T) {
	store := newStubStore("a", "b")
	store.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var err error
	go func() {
		_, err = Move(ctx, store, []string{"a", "b"}, "New")
		close(done)
	}()

	cancel()
	<-done

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDragSet_UnselectedDraggedMovesAlone(t *testing.T) {
	selected := map[string]struct{}{"a": {}, "b": {}}

	got := DragSet("c", selected)
	if !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("DragSet = %v, want [c]", got)
	}
	if len(selected) != 2 {
		t.Error("selection must be left untouched")
	}
}

func TestDragSet_SelectedDraggedMovesSelection(t *testing.T) {
	selected := map[string]struct{}{"a": {}, "b": {}, "c": {}}

	got := DragSet("b", selected)
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("DragSet = %v, want the whole selection", got)
	}
}
