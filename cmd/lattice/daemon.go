package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"lattice/internal/hier"
	"lattice/internal/items"
	"lattice/internal/reorg"
)

// ServeCmd runs the lattice daemon (item store + HTTP API + MCP server).
type ServeCmd struct {
	Port int `short:"p" help:"Port for the HTTP server (overrides config)." name:"port"`
}

// Run opens the database and serves until interrupted.
func (cmd *ServeCmd) Run(cfg *Config) error {
	port := cmd.Port
	if port == 0 {
		port = cfg.Daemon.Port
	}

	state, err := stateDir()
	if err != nil {
		return err
	}
	store, err := items.OpenSQLite(filepath.Join(state, "lattice.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	mux := setupHTTPMux(store)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	slog.Info("daemon listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

// setupHTTPMux creates an http.ServeMux with all routes registered.
func setupHTTPMux(store *items.SQLiteStore) *http.ServeMux {
	sseHandler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return newMCPServer(store)
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/sse", sseHandler)
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/items", handleListItems(store))
	mux.HandleFunc("POST /api/items", handleCreateItem(store))
	mux.HandleFunc("PATCH /api/items/{id}", handleUpdateItem(store))
	mux.HandleFunc("DELETE /api/items/{id}", handleDeleteItem(store))
	mux.HandleFunc("GET /api/tree", handleTree(store))
	mux.HandleFunc("GET /api/moves", handleMoves(store))
	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleListItems(store *items.SQLiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context())
		if err != nil {
			httpError(w, err)
			return
		}
		if list == nil {
			list = []items.Item{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleCreateItem(store *items.SQLiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft items.Draft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		it, err := store.Create(r.Context(), draft)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, it)
	}
}

func handleUpdateItem(store *items.SQLiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update items.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		it, err := store.Update(r.Context(), r.PathValue("id"), update)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, it)
	}
}

func handleDeleteItem(store *items.SQLiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), r.PathValue("id")); err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleTree serves the aggregated category forest as JSON, roots in
// sorted order.
func handleTree(store *items.SQLiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context())
		if err != nil {
			httpError(w, err)
			return
		}
		forest := hier.BuildTree(list)
		writeJSON(w, http.StatusOK, map[string]any{"roots": forest.Roots()})
	}
}

func handleMoves(store *items.SQLiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if q := r.URL.Query().Get("limit"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n < 1 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		moves, err := store.MoveHistory(r.Context(), limit)
		if err != nil {
			httpError(w, err)
			return
		}
		if moves == nil {
			moves = []items.Move{}
		}
		writeJSON(w, http.StatusOK, moves)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, err error) {
	if errors.Is(err, items.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	slog.Error("request failed", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// MCP tool args

type searchArgs struct {
	Query       string `json:"query" jsonschema:"Free text to match against item titles, notes and summaries"`
	Category    string `json:"category,omitempty" jsonschema:"Exact category path to restrict the search to"`
	NeedsReview bool   `json:"needs_review,omitempty" jsonschema:"Only return items flagged for review"`
}

type treeArgs struct{}

type moveArgs struct {
	IDs         []string `json:"ids" jsonschema:"Item ids to move"`
	Destination string   `json:"destination" jsonschema:"Category path to move the items to"`
}

// newMCPServer creates a fresh MCP server with all tools registered.
// Called once per SSE connection so each session gets its own
// initialization lifecycle.
func newMCPServer(store *items.SQLiteStore) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "lattice",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "kb_search",
		Description: "Search knowledge base items by free text, category path and review flag. Returns a JSON array of items.",
	}, handleSearchTool(store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "kb_tree",
		Description: "Return the category hierarchy with aggregate item counts as a JSON forest.",
	}, handleTreeTool(store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "kb_move_items",
		Description: "Move items to a category path. Completed moves are kept even when some items fail.",
	}, handleMoveTool(store))

	return server
}

func handleSearchTool(store *items.SQLiteStore) func(context.Context, *mcp.CallToolRequest, searchArgs) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args searchArgs) (*mcp.CallToolResult, any, error) {
		slog.Debug("kb_search called", "query", args.Query, "category", args.Category)

		list, err := store.List(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("list items: %w", err)
		}

		f := hier.Filter{Query: args.Query, NeedsReview: args.NeedsReview}
		if args.Category != "" {
			f.Category = &args.Category
		}
		return jsonResult(f.Apply(list))
	}
}

func handleTreeTool(store *items.SQLiteStore) func(context.Context, *mcp.CallToolRequest, treeArgs) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args treeArgs) (*mcp.CallToolResult, any, error) {
		slog.Debug("kb_tree called")

		list, err := store.List(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("list items: %w", err)
		}

		return jsonResult(hier.BuildTree(list).Roots())
	}
}

func handleMoveTool(store *items.SQLiteStore) func(context.Context, *mcp.CallToolRequest, moveArgs) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args moveArgs) (*mcp.CallToolResult, any, error) {
		slog.Debug("kb_move_items called", "count", len(args.IDs), "destination", args.Destination)

		result, err := reorg.Move(ctx, store, args.IDs, args.Destination)
		var be *reorg.BatchError
		if err != nil && !errors.As(err, &be) {
			return nil, nil, fmt.Errorf("move failed: %w", err)
		}
		// Partial failures still report what moved; the caller decides
		// whether to retry the failed ids.
		return jsonResult(result)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(payload)},
		},
	}, nil, nil
}
