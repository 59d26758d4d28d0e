package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"lattice/internal/hier"
	"lattice/internal/items"
	"lattice/internal/reorg"
)

// AddCmd adds a single item manually.
type AddCmd struct {
	Title    string `arg:"" help:"Item title."`
	Category string `short:"c" help:"Category path, segments joined by ' > '."`
	Summary  string `short:"s" help:"One-line summary."`
	Notes    string `short:"n" help:"Free-form notes."`
}

func (cmd *AddCmd) Run(cfg *Config) error {
	client := NewClient(cfg.Daemon.Port)
	it, err := client.Create(context.Background(), items.Draft{
		Title:        cmd.Title,
		CategoryPath: hier.JoinPath(hier.SplitPath(cmd.Category)),
		Summary:      cmd.Summary,
		Notes:        cmd.Notes,
	})
	if err != nil {
		return err
	}
	fmt.Printf("added %s (%s)\n", it.Title, it.ID)
	return nil
}

// ListCmd lists items grouped by category.
type ListCmd struct {
	Category    string `short:"c" help:"Only show items in this exact category path."`
	NeedsReview bool   `short:"r" help:"Only show items flagged for review."`
	Tree        bool   `short:"t" help:"Show the category tree with counts instead of items."`
}

func (cmd *ListCmd) Run(cfg *Config) error {
	client := NewClient(cfg.Daemon.Port)
	list, err := client.List(context.Background())
	if err != nil {
		return err
	}

	if cmd.Tree {
		printTree(os.Stdout, hier.BuildTree(list))
		return nil
	}

	f := hier.Filter{NeedsReview: cmd.NeedsReview}
	if cmd.Category != "" {
		f.Category = &cmd.Category
	}
	printGrouped(os.Stdout, f.Grouped(list))
	return nil
}

// SearchCmd searches items by free text.
type SearchCmd struct {
	Query    string `arg:"" help:"Text to match against titles, notes and summaries."`
	Category string `short:"c" help:"Restrict to this exact category path."`
}

func (cmd *SearchCmd) Run(cfg *Config) error {
	client := NewClient(cfg.Daemon.Port)
	list, err := client.List(context.Background())
	if err != nil {
		return err
	}

	f := hier.Filter{Query: cmd.Query}
	if cmd.Category != "" {
		f.Category = &cmd.Category
	}
	printGrouped(os.Stdout, f.Grouped(list))
	return nil
}

// MoveCmd moves items to a category path.
type MoveCmd struct {
	Destination string   `arg:"" help:"Category path to move the items to."`
	IDs         []string `arg:"" help:"Item ids to move."`
}

func (cmd *MoveCmd) Run(cfg *Config) error {
	client := NewClient(cfg.Daemon.Port)
	result, err := reorg.Move(context.Background(), client, cmd.IDs, cmd.Destination)
	if result.Moved > 0 {
		fmt.Printf("moved %d item(s) to %s\n", result.Moved, cmd.Destination)
	}
	return err
}

// AnalyzeCmd extracts concepts from text and adds them as items.
type AnalyzeCmd struct {
	File string `arg:"" optional:"" help:"File to analyze. Reads stdin when omitted."`
}

func (cmd *AnalyzeCmd) Run(cfg *Config) error {
	text, err := cmd.readInput()
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("nothing to analyze")
	}

	extractor := &Extractor{URL: cfg.Extractor.URL, Model: cfg.Extractor.Model}
	concepts, err := extractor.Extract(context.Background(), text)
	if err != nil {
		return fmt.Errorf("extract concepts: %w", err)
	}
	if len(concepts) == 0 {
		fmt.Println("no concepts found")
		return nil
	}
	slog.Debug("extraction complete", "concepts", len(concepts))

	client := NewClient(cfg.Daemon.Port)
	created := make([]*items.Item, len(concepts))

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(4)
	for i, c := range concepts {
		g.Go(func() error {
			it, err := client.Create(ctx, items.Draft{
				Title:        c.Title,
				CategoryPath: hier.JoinPath(hier.SplitPath(c.Category)),
				Summary:      c.Summary,
				NeedsReview:  c.ConfidenceScore < cfg.Extractor.ReviewThreshold,
			})
			if err != nil {
				return fmt.Errorf("create %q: %w", c.Title, err)
			}
			created[i] = it
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, it := range created {
		flag := ""
		if it.NeedsReview {
			flag = " (needs review)"
		}
		fmt.Printf("%-40s %s%s\n", it.Title, it.CategoryPath, flag)
	}
	fmt.Printf("added %d item(s)\n", len(created))
	return nil
}

func (cmd *AnalyzeCmd) readInput() (string, error) {
	if cmd.File != "" {
		data, err := os.ReadFile(cmd.File)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", cmd.File, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// outputWidth returns the terminal width, or a fixed width when stdout
// is not a terminal.
func outputWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 100
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w < 40 {
		return 100
	}
	return w
}

// printGrouped writes items bucketed by category path, paths in sorted
// order, one line per item.
func printGrouped(w io.Writer, grouped map[string][]items.Item) {
	if len(grouped) == 0 {
		fmt.Fprintln(w, "no items")
		return
	}

	width := outputWidth()
	for _, path := range sortedKeys(grouped) {
		header := path
		if header == "" {
			header = hier.UncategorizedName
		}
		fmt.Fprintf(w, "%s\n", header)
		for _, it := range grouped[path] {
			line := fmt.Sprintf("  %s  %s", it.ID[:8], it.Title)
			if it.Summary != "" {
				line += "  " + it.Summary
			}
			if it.NeedsReview {
				line += "  [review]"
			}
			fmt.Fprintln(w, clip(line, width))
		}
	}
}

// printTree writes the category forest with aggregate counts, indented
// two spaces per level.
func printTree(w io.Writer, forest hier.Forest) {
	for _, root := range forest.Roots() {
		printNode(w, root, 0)
	}
}

func printNode(w io.Writer, n *hier.Node, depth int) {
	fmt.Fprintf(w, "%s%s (%d)\n", strings.Repeat("  ", depth), n.Name, n.Total)
	for _, child := range n.SortedChildren() {
		printNode(w, child, depth+1)
	}
}

func sortedKeys(m map[string][]items.Item) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Uncategorized (the empty path) sorts first already.
	sort.Strings(keys)
	return keys
}

// clip truncates s to width cells, rune-aware. Inputs must be plain
// text: truncating styled text could split an escape sequence.
func clip(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width < 4 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
