package reorg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"lattice/internal/hier"
	"lattice/internal/items"
)

// Phase is the controller's coordination state.
type Phase int

const (
	// Idle: no dialog open, no operation in flight.
	Idle Phase = iota
	// AwaitingInput: a create/transfer dialog is open; no network effects
	// yet.
	AwaitingInput
	// InFlight: a mutating operation is running against the store.
	InFlight
	// TransferPending: a subcategory creation hit a parent that already
	// owns items; the candidate item set is captured and the follow-up
	// transfer dialog is waiting on the user.
	TransferPending
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingInput:
		return "awaiting-input"
	case InFlight:
		return "in-flight"
	case TransferPending:
		return "transfer-pending"
	default:
		return "unknown"
	}
}

// Controller is the single owner of structural hierarchy mutations. At
// most one operation may be in flight at a time; concurrent triggers are
// rejected deterministically rather than queued.
type Controller struct {
	store  items.Store
	notify func(msg string)

	mu         sync.Mutex
	phase      Phase
	parentPath string
	targetPath string
	pending    []string
	cancel     context.CancelFunc
	resetting  bool
}

// New creates a controller over the given store. notify, if non-nil,
// receives user-visible messages (network failures, batch outcomes).
func New(store items.Store, notify func(msg string)) *Controller {
	return &Controller{store: store, notify: notify}
}

// Phase returns the current coordination phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// TargetPath returns the category path under construction or serving as
// the move destination.
func (c *Controller) TargetPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetPath
}

// PendingIDs returns the item ids captured for the transfer sub-flow.
func (c *Controller) PendingIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pending...)
}

// BeginCreate opens the create-subcategory dialog under parentPath (""
// for a new top-level category). No network effects. Rejected if an
// operation is already active.
func (c *Controller) BeginCreate(parentPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Idle {
		slog.Debug("reorg: create trigger rejected", "phase", c.phase)
		return ErrBusy
	}
	c.phase = AwaitingInput
	c.parentPath = parentPath
	return nil
}

// ConfirmCreate validates the candidate name against the current tree and
// creates the category. Validation failures (empty name, existing path)
// keep the dialog open: the phase stays AwaitingInput so the user can
// correct input without losing context. If the parent already owns direct
// items, no creation happens yet: the controller captures those items and
// moves to TransferPending, returning ErrParentHasItems so the caller can
// open the transfer dialog.
func (c *Controller) ConfirmCreate(ctx context.Context, forest hier.Forest, name string) error {
	c.mu.Lock()
	if c.phase != AwaitingInput {
		c.mu.Unlock()
		slog.Debug("reorg: confirm rejected", "phase", c.phase)
		return ErrBusy
	}

	name = strings.TrimSpace(name)
	if name == "" {
		c.mu.Unlock()
		return ErrEmptyName
	}

	full := hier.ChildPath(c.parentPath, name)
	if forest.Lookup(full) != nil {
		c.mu.Unlock()
		return ErrPathExists
	}

	if parent := forest.Lookup(c.parentPath); c.parentPath != "" && parent != nil && len(parent.Direct) > 0 {
		c.targetPath = full
		c.pending = c.pending[:0]
		for _, it := range parent.Direct {
			c.pending = append(c.pending, it.ID)
		}
		c.phase = TransferPending
		c.mu.Unlock()
		return ErrParentHasItems
	}

	c.phase = InFlight
	c.targetPath = full
	opCtx := c.arm(ctx)
	c.mu.Unlock()

	err := c.createPlaceholder(opCtx, full, name)
	if opCtx.Err() != nil {
		// Cancelled mid-flight: discard the stale response silently.
		c.Reset()
		return context.Canceled
	}
	if err != nil {
		c.say(fmt.Sprintf("Failed to create %q: %v", full, err))
		c.Reset()
		return fmt.Errorf("create category: %w", err)
	}

	c.say(fmt.Sprintf("Created category %q", full))
	c.Reset()
	return nil
}

// ConfirmTransfer resolves the transfer sub-flow: the new subcategory is
// created, and when transfer is true the captured parent items are moved
// into it as one batch.
func (c *Controller) ConfirmTransfer(ctx context.Context, transfer bool) (BatchResult, error) {
	c.mu.Lock()
	if c.phase != TransferPending {
		c.mu.Unlock()
		slog.Debug("reorg: transfer confirm rejected", "phase", c.phase)
		return BatchResult{}, ErrBusy
	}
	c.phase = InFlight
	target := c.targetPath
	ids := append([]string(nil), c.pending...)
	opCtx := c.arm(ctx)
	c.mu.Unlock()

	if err := c.createPlaceholder(opCtx, target, hier.LeafName(target)); err != nil {
		if opCtx.Err() != nil {
			c.Reset()
			return BatchResult{}, context.Canceled
		}
		c.say(fmt.Sprintf("Failed to create %q: %v", target, err))
		c.Reset()
		return BatchResult{}, fmt.Errorf("create category: %w", err)
	}

	if !transfer {
		c.say(fmt.Sprintf("Created category %q", target))
		c.Reset()
		return BatchResult{}, nil
	}

	result, err := Move(opCtx, c.store, ids, target)
	c.finishMove(opCtx, target, result, err)
	c.Reset()
	return result, err
}

// MoveItems executes a drag-and-drop or dialog-driven batch move of ids
// into dest. Rejected unless the controller is idle.
func (c *Controller) MoveItems(ctx context.Context, ids []string, dest string) (BatchResult, error) {
	c.mu.Lock()
	if c.phase != Idle {
		c.mu.Unlock()
		slog.Debug("reorg: move trigger rejected", "phase", c.phase)
		return BatchResult{}, ErrBusy
	}
	c.phase = InFlight
	c.targetPath = dest
	opCtx := c.arm(ctx)
	c.mu.Unlock()

	result, err := Move(opCtx, c.store, ids, dest)
	c.finishMove(opCtx, dest, result, err)
	c.Reset()
	return result, err
}

// Reset returns the controller to Idle, cancelling any in-flight network
// work and clearing dialog state in one step. Safe to call at any time:
// resetting while already Idle is a no-op, and overlapping resets fire the
// cancel side effect only once.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.resetting {
		c.mu.Unlock()
		return
	}
	c.resetting = true
	cancel := c.cancel
	wasIdle := c.phase == Idle
	c.cancel = nil
	c.phase = Idle
	c.parentPath = ""
	c.targetPath = ""
	c.pending = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !wasIdle {
		slog.Debug("reorg: reset to idle")
	}

	c.mu.Lock()
	c.resetting = false
	c.mu.Unlock()
}

// arm installs a fresh cancel token for an operation entering InFlight.
// Callers must hold c.mu.
func (c *Controller) arm(ctx context.Context) context.Context {
	opCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return opCtx
}

// createPlaceholder synthesizes the item that makes an otherwise-empty
// category visible and selectable.
func (c *Controller) createPlaceholder(ctx context.Context, path, name string) error {
	_, err := c.store.Create(ctx, items.Draft{
		Title:        name,
		CategoryPath: path,
		Placeholder:  true,
	})
	return err
}

// finishMove reports a settled batch to the user. Aborted batches are
// discarded silently: the cancel token means the response must not be
// surfaced.
func (c *Controller) finishMove(ctx context.Context, dest string, result BatchResult, err error) {
	if err == nil {
		c.say(fmt.Sprintf("Moved %d item(s) to %q", result.Moved, dest))
		return
	}
	if ctx.Err() != nil {
		return
	}
	var be *BatchError
	if errors.As(err, &be) {
		if be.Partial() {
			c.say(fmt.Sprintf("Moved %d of %d item(s) to %q; %d failed", result.Moved, be.Total, dest, len(be.FailedIDs)))
		} else {
			c.say(fmt.Sprintf("Failed to move items to %q", dest))
		}
		return
	}
	c.say(fmt.Sprintf("Move to %q failed: %v", dest, err))
}

func (c *Controller) say(msg string) {
	if c.notify != nil {
		c.notify(msg)
	}
}
