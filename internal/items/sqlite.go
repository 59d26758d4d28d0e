package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an item id does not exist in the store.
var ErrNotFound = errors.New("item not found")

// SQLiteStore is the daemon-side Store implementation backed by a SQLite
// database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the item database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			category_path TEXT NOT NULL DEFAULT '',
			summary       TEXT NOT NULL DEFAULT '',
			notes         TEXT NOT NULL DEFAULT '',
			needs_review  INTEGER NOT NULL DEFAULT 0,
			placeholder   INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_category ON items(category_path)`,
		`CREATE TABLE IF NOT EXISTS category_moves (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			item_id   TEXT NOT NULL,
			old_path  TEXT NOT NULL,
			new_path  TEXT NOT NULL,
			moved_at  TEXT NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}

	return nil
}

// List returns all items, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, category_path, summary, notes, needs_review, placeholder, created_at
		 FROM items ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var result []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Title, &it.CategoryPath, &it.Summary,
			&it.Notes, &it.NeedsReview, &it.Placeholder, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

// Create inserts a new item and returns it with its generated id.
func (s *SQLiteStore) Create(ctx context.Context, d Draft) (*Item, error) {
	it := Item{
		ID:           NewID(),
		Title:        d.Title,
		CategoryPath: d.CategoryPath,
		Summary:      d.Summary,
		Notes:        d.Notes,
		NeedsReview:  d.NeedsReview,
		Placeholder:  d.Placeholder,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (id, title, category_path, summary, notes, needs_review, placeholder, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Title, it.CategoryPath, it.Summary, it.Notes, it.NeedsReview, it.Placeholder, it.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	return &it, nil
}

// Update applies a partial mutation and returns the updated item. A
// category change is additionally recorded in the category_moves audit
// table so manual reorganizations can inform future categorization.
func (s *SQLiteStore) Update(ctx context.Context, id string, u Update) (*Item, error) {
	cur, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Title != nil {
		cur.Title = *u.Title
	}
	if u.Summary != nil {
		cur.Summary = *u.Summary
	}
	if u.Notes != nil {
		cur.Notes = *u.Notes
	}
	if u.NeedsReview != nil {
		cur.NeedsReview = *u.NeedsReview
	}

	oldPath := cur.CategoryPath
	if u.CategoryPath != nil {
		cur.CategoryPath = *u.CategoryPath
	}

	// Update and audit record commit together: an audit row must never
	// exist for a move that did not happen.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE items SET title = ?, category_path = ?, summary = ?, notes = ?, needs_review = ? WHERE id = ?`,
		cur.Title, cur.CategoryPath, cur.Summary, cur.Notes, cur.NeedsReview, id)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	// Placeholder shuffles are synthetic; only real items feed the log.
	if !cur.Placeholder && oldPath != cur.CategoryPath {
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO category_moves (item_id, old_path, new_path, moved_at) VALUES (?, ?, ?, ?)`,
			id, oldPath, cur.CategoryPath, now); err != nil {
			return nil, fmt.Errorf("record move: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return cur, nil
}

// Delete removes an item by id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MoveHistory returns the recorded manual category moves, newest first.
func (s *SQLiteStore) MoveHistory(ctx context.Context, limit int) ([]Move, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, old_path, new_path, moved_at FROM category_moves ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("move history: %w", err)
	}
	defer rows.Close()

	var result []Move
	for rows.Next() {
		var m Move
		if err := rows.Scan(&m.ItemID, &m.OldPath, &m.NewPath, &m.MovedAt); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// Move is a single entry in the manual reorganization audit log.
type Move struct {
	ItemID  string `json:"item_id"`
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
	MovedAt string `json:"moved_at"`
}

func (s *SQLiteStore) get(ctx context.Context, id string) (*Item, error) {
	var it Item
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, category_path, summary, notes, needs_review, placeholder, created_at
		 FROM items WHERE id = ?`, id).
		Scan(&it.ID, &it.Title, &it.CategoryPath, &it.Summary,
			&it.Notes, &it.NeedsReview, &it.Placeholder, &it.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}
