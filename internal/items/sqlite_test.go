package items

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// openTestStore creates a temporary sqlite store for testing.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := OpenSQLite(filepath.Join(dir, "items.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSQLite_MigrateIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.db")

	s1, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s2.Close()
}

func TestCreate_AssignsIDAndTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	it, err := s.Create(ctx, Draft{Title: "Goroutines", CategoryPath: "Go > Concurrency"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if it.ID == "" {
		t.Error("expected non-empty id")
	}
	if it.CreatedAt == "" {
		t.Error("expected created_at to be set")
	}
	if it.CategoryPath != "Go > Concurrency" {
		t.Errorf("category_path = %q", it.CategoryPath)
	}
}

func TestList_ReturnsAllItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Create(ctx, Draft{Title: "A", CategoryPath: "X"})
	s.Create(ctx, Draft{Title: "B", CategoryPath: "Y"})

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 items, got %d", len(list))
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	it, _ := s.Create(ctx, Draft{Title: "Indexes", CategoryPath: "Databases", Summary: "b-trees"})

	got, err := s.Update(ctx, it.ID, Update{Notes: Ptr("covering indexes")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Notes != "covering indexes" {
		t.Errorf("notes = %q", got.Notes)
	}
	if got.Title != "Indexes" || got.Summary != "b-trees" || got.CategoryPath != "Databases" {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestUpdate_CategoryMoveRecorded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	it, _ := s.Create(ctx, Draft{Title: "Indexes", CategoryPath: "Databases"})

	_, err := s.Update(ctx, it.ID, Update{CategoryPath: Ptr("Backend > Databases")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	moves, err := s.MoveHistory(ctx, 10)
	if err != nil {
		t.Fatalf("MoveHistory: %v", err)
	}
	if len(moves) != 1 {
		t.Fatalf("expected 1 recorded move, got %d", len(moves))
	}
	if moves[0].OldPath != "Databases" || moves[0].NewPath != "Backend > Databases" {
		t.Errorf("move = %+v", moves[0])
	}
}

func TestUpdate_PlaceholderMoveNotRecorded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	it, _ := s.Create(ctx, Draft{Title: "New Category", CategoryPath: "A", Placeholder: true})

	s.Update(ctx, it.ID, Update{CategoryPath: Ptr("B")})

	moves, _ := s.MoveHistory(ctx, 10)
	if len(moves) != 0 {
		t.Errorf("placeholder move should not be audited, got %d entries", len(moves))
	}
}

func TestUpdate_FailedUpdateLeavesNoAuditRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	it, _ := s.Create(ctx, Draft{Title: "Indexes", CategoryPath: "Databases"})

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Update(cancelled, it.ID, Update{CategoryPath: Ptr("Backend")}); err == nil {
		t.Fatal("expected update with cancelled context to fail")
	}

	moves, err := s.MoveHistory(ctx, 10)
	if err != nil {
		t.Fatalf("MoveHistory: %v", err)
	}
	if len(moves) != 0 {
		t.Errorf("audit must only record moves that happened, got %+v", moves)
	}

	got, err := s.get(ctx, it.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CategoryPath != "Databases" {
		t.Errorf("category = %q, want the original path", got.CategoryPath)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Update(context.Background(), "missing", Update{Title: Ptr("x")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	it, _ := s.Create(ctx, Draft{Title: "A", CategoryPath: "X"})

	if err := s.Delete(ctx, it.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	list, _ := s.List(ctx)
	if len(list) != 0 {
		t.Errorf("expected empty store, got %d items", len(list))
	}

	if err := s.Delete(ctx, it.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestNewID_Format(t *testing.T) {
	id := NewID()
	if len(id) != 36 {
		t.Errorf("expected 36-char uuid, got %q (len %d)", id, len(id))
	}
	if id == NewID() {
		t.Error("expected unique ids")
	}
}
