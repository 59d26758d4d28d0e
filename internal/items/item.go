// Package items defines the knowledge base item model and the store
// contract through which items are read and mutated. The category tree is
// never persisted: it is always derived from the flat item list, so the
// store only ever deals in items.
package items

import (
	"context"
	"crypto/rand"
	"fmt"
)

// Item is a single extracted concept.
type Item struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CategoryPath string `json:"category_path"`
	Summary      string `json:"summary,omitempty"`
	Notes        string `json:"notes,omitempty"`
	NeedsReview  bool   `json:"needs_review"`
	Placeholder  bool   `json:"placeholder"`
	CreatedAt    string `json:"created_at"`
}

// Update carries a partial item mutation. Nil fields are left untouched.
type Update struct {
	Title        *string `json:"title,omitempty"`
	CategoryPath *string `json:"category_path,omitempty"`
	Summary      *string `json:"summary,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	NeedsReview  *bool   `json:"needs_review,omitempty"`
}

// Draft describes a new item to be created.
type Draft struct {
	Title        string `json:"title"`
	CategoryPath string `json:"category_path"`
	Summary      string `json:"summary,omitempty"`
	Notes        string `json:"notes,omitempty"`
	NeedsReview  bool   `json:"needs_review"`
	Placeholder  bool   `json:"placeholder"`
}

// Store is the remote item store contract. List is the single source of
// truth: callers re-read the full item list after mutations rather than
// trusting their own optimistic state.
type Store interface {
	List(ctx context.Context) ([]Item, error)
	Create(ctx context.Context, d Draft) (*Item, error)
	Update(ctx context.Context, id string, u Update) (*Item, error)
	Delete(ctx context.Context, id string) error
}

// NewID generates a v4 UUID using crypto/rand.
func NewID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 2
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// Ptr returns a pointer to v. Convenience for building partial Updates.
func Ptr[T any](v T) *T { return &v }
