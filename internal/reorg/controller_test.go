package reorg

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lattice/internal/hier"
	"lattice/internal/items"
)

func forestOf(list ...items.Item) hier.Forest {
	return hier.BuildTree(list)
}

func TestController_CreateTopLevel(t *testing.T) {
	store := newStubStore()
	c := New(store, nil)

	if err := c.BeginCreate(""); err != nil {
		t.Fatalf("BeginCreate: %v", err)
	}
	if c.Phase() != AwaitingInput {
		t.Fatalf("phase = %v, want awaiting-input", c.Phase())
	}

	if err := c.ConfirmCreate(context.Background(), forestOf(), "Reading"); err != nil {
		t.Fatalf("ConfirmCreate: %v", err)
	}

	if store.createCount() != 1 {
		t.Fatalf("expected 1 creation, got %d", store.createCount())
	}
	d := store.creates[0]
	if d.CategoryPath != "Reading" || !d.Placeholder {
		t.Errorf("created draft = %+v", d)
	}
	if c.Phase() != Idle {
		t.Errorf("phase after success = %v, want idle", c.Phase())
	}
}

func TestController_EmptyNameKeepsDialogOpen(t *testing.T) {
	store := newStubStore()
	c := New(store, nil)
	c.BeginCreate("")

	err := c.ConfirmCreate(context.Background(), forestOf(), "   ")
	if !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if c.Phase() != AwaitingInput {
		t.Errorf("phase = %v, want awaiting-input (dialog context kept)", c.Phase())
	}
	if store.createCount() != 0 {
		t.Error("no network call may happen on validation failure")
	}
}

func TestController_ExistingPathKeepsDialogOpen(t *testing.T) {
	store := newStubStore()
	c := New(store, nil)
	c.BeginCreate("")

	forest := forestOf(items.Item{ID: "1", CategoryPath: "Reading"})
	err := c.ConfirmCreate(context.Background(), forest, "Reading")
	if !errors.Is(err, ErrPathExists) {
		t.Fatalf("expected ErrPathExists, got %v", err)
	}
	if c.Phase() != AwaitingInput {
		t.Errorf("phase = %v, want awaiting-input", c.Phase())
	}
}

func TestController_ParentWithItemsEntersTransferPending(t *testing.T) {
	store := newStubStore()
	c := New(store, nil)
	c.BeginCreate("Backend")

	forest := forestOf(
		items.Item{ID: "i1", CategoryPath: "Backend"},
		items.Item{ID: "i2", CategoryPath: "Backend"},
	)
	err := c.ConfirmCreate(context.Background(), forest, "Databases")
	if !errors.Is(err, ErrParentHasItems) {
		t.Fatalf("expected ErrParentHasItems, got %v", err)
	}
	if c.Phase() != TransferPending {
		t.Fatalf("phase = %v, want transfer-pending", c.Phase())
	}
	if store.createCount() != 0 {
		t.Error("creation must be deferred until the transfer dialog resolves")
	}
	if got := c.PendingIDs(); len(got) != 2 {
		t.Errorf("pending ids = %v, want the parent's 2 items", got)
	}
	if c.TargetPath() != "Backend > Databases" {
		t.Errorf("target = %q", c.TargetPath())
	}
}

func TestController_ConfirmTransferMovesItems(t *testing.T) {
	store := newStubStore("i1", "i2")
	c := New(store, nil)
	c.BeginCreate("Backend")

	forest := forestOf(
		items.Item{ID: "i1", CategoryPath: "Backend"},
		items.Item{ID: "i2", CategoryPath: "Backend"},
	)
	c.ConfirmCreate(context.Background(), forest, "Databases")

	result, err := c.ConfirmTransfer(context.Background(), true)
	if err != nil {
		t.Fatalf("ConfirmTransfer: %v", err)
	}
	if result.Moved != 2 {
		t.Errorf("moved = %d, want 2", result.Moved)
	}
	if store.createCount() != 1 {
		t.Errorf("expected the placeholder creation, got %d creates", store.createCount())
	}
	if c.Phase() != Idle {
		t.Errorf("phase = %v, want idle", c.Phase())
	}
}

func TestController_DeclinedTransferStillCreates(t *testing.T) {
	store := newStubStore("i1")
	c := New(store, nil)
	c.BeginCreate("Backend")

	forest := forestOf(items.Item{ID: "i1", CategoryPath: "Backend"})
	c.ConfirmCreate(context.Background(), forest, "Databases")

	result, err := c.ConfirmTransfer(context.Background(), false)
	if err != nil {
		t.Fatalf("ConfirmTransfer: %v", err)
	}
	if result.Moved != 0 {
		t.Errorf("moved = %d, want 0", result.Moved)
	}
	if store.createCount() != 1 {
		t.Errorf("creates = %d, want 1", store.createCount())
	}
	if store.updateCount() != 0 {
		t.Error("declined transfer must not move items")
	}
}

func TestController_ReentrantConfirmCreatesOnce(t *testing.T) {
	store := newStubStore()
	c := New(store, nil)
	c.BeginCreate("")

	// Two rapid triggers: the second must be rejected before any network
	// effect, leaving exactly one creation call.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.ConfirmCreate(context.Background(), forestOf(), "Reading")
		}(i)
	}
	wg.Wait()

	if store.createCount() != 1 {
		t.Fatalf("expected exactly 1 creation, got %d", store.createCount())
	}
	busy := 0
	for _, err := range errs {
		if errors.Is(err, ErrBusy) {
			busy++
		}
	}
	if busy != 1 {
		t.Errorf("expected exactly 1 rejected trigger, got %d (errs=%v)", busy, errs)
	}
}

func TestController_MoveRejectedWhileBusy(t *testing.T) {
	store := newStubStore("i1")
	c := New(store, nil)
	c.BeginCreate("")

	_, err := c.MoveItems(context.Background(), []string{"i1"}, "Elsewhere")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if store.updateCount() != 0 {
		t.Error("rejected trigger must not touch the store")
	}
}

func TestController_ResetIdempotent(t *testing.T) {
	notes := 0
	store := newStubStore()
	c := New(store, func(string) { notes++ })

	c.Reset()
	c.Reset()

	if c.Phase() != Idle {
		t.Errorf("phase = %v, want idle", c.Phase())
	}
	if notes != 0 {
		t.Errorf("reset while idle must have no observable side effect, got %d notifications", notes)
	}
	if store.createCount() != 0 || store.updateCount() != 0 {
		t.Error("reset must not trigger network calls")
	}
}

func TestController_ResetCancelsInFlightMove(t *testing.T) {
	store := newStubStore("i1", "i2")
	store.block = make(chan struct{})

	var mu sync.Mutex
	var notes []string
	c := New(store, func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		notes = append(notes, msg)
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.MoveItems(context.Background(), []string{"i1", "i2"}, "New")
		done <- err
	}()

	// Wait for the operation to be armed, then reset while it is blocked.
	for c.Phase() != InFlight {
		time.Sleep(time.Millisecond)
	}
	c.Reset()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(notes) != 0 {
		t.Errorf("aborted operation must be silent, got notifications %v", notes)
	}
}

func TestController_MoveNotifiesPartialFailure(t *testing.T) {
	store := newStubStore("a", "b")
	store.failIDs["b"] = struct{}{}

	var notes []string
	c := New(store, func(msg string) { notes = append(notes, msg) })

	_, err := c.MoveItems(context.Background(), []string{"a", "b"}, "New")
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BatchError, got %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification, got %v", notes)
	}
	if c.Phase() != Idle {
		t.Errorf("phase = %v, want idle so the user can retry", c.Phase())
	}
}
