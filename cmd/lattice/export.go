package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"lattice/internal/hier"
	"lattice/internal/items"
)

// ExportCmd writes every item as a markdown file with YAML frontmatter,
// one directory per category segment.
type ExportCmd struct {
	Dir string `short:"d" help:"Export directory (overrides config)."`
}

func (cmd *ExportCmd) Run(cfg *Config) error {
	dir := cmd.Dir
	if dir == "" {
		var err error
		dir, err = vaultDir(cfg)
		if err != nil {
			return err
		}
	}

	client := NewClient(cfg.Daemon.Port)
	list, err := client.List(context.Background())
	if err != nil {
		return err
	}

	count := 0
	for _, it := range list {
		if it.Placeholder {
			continue
		}
		if err := exportItem(dir, it); err != nil {
			return err
		}
		count++
	}

	fmt.Printf("exported %d item(s) to %s\n", count, dir)
	return nil
}

type frontmatter struct {
	ID          string `yaml:"id"`
	Category    string `yaml:"category,omitempty"`
	Summary     string `yaml:"summary,omitempty"`
	NeedsReview bool   `yaml:"needs_review,omitempty"`
	CreatedAt   string `yaml:"created_at,omitempty"`
}

func exportItem(root string, it items.Item) error {
	dir := root
	for _, segment := range hier.SplitPath(it.CategoryPath) {
		dir = filepath.Join(dir, fileSafe(segment))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	meta, err := yaml.Marshal(frontmatter{
		ID:          it.ID,
		Category:    it.CategoryPath,
		Summary:     it.Summary,
		NeedsReview: it.NeedsReview,
		CreatedAt:   it.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(meta)
	b.WriteString("---\n\n")
	b.WriteString("# " + it.Title + "\n")
	if it.Notes != "" {
		b.WriteString("\n" + it.Notes + "\n")
	}

	path := filepath.Join(dir, fileSafe(it.Title)+".md")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// fileSafe replaces characters that do not belong in file names.
func fileSafe(s string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "\x00", "")
	out := strings.TrimSpace(replacer.Replace(s))
	if out == "" {
		return "untitled"
	}
	return out
}
