package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// CLI is the top-level command structure for lattice.
type CLI struct {
	Debug bool `env:"LATTICE_DEBUG" help:"Enable debug logging."`

	Serve   ServeCmd   `cmd:"" help:"Run the lattice daemon (item store + MCP server)."`
	Browse  BrowseCmd  `cmd:"" help:"Browse the knowledge base in an interactive explorer."`
	Analyze AnalyzeCmd `cmd:"" help:"Extract concepts from text and add them as items."`
	Add     AddCmd     `cmd:"" help:"Add a single item manually."`
	List    ListCmd    `cmd:"" help:"List items, optionally filtered."`
	Search  SearchCmd  `cmd:"" help:"Search items by free text."`
	Move    MoveCmd    `cmd:"" help:"Move items to a category."`
	Export  ExportCmd  `cmd:"" help:"Export all items as markdown files with YAML frontmatter."`
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("lattice"),
		kong.Description("A personal knowledge base of extracted concepts, organized by category."),
		kong.UsageOnError(),
	)

	setupLogger(cli.Debug)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lattice: %v\n", err)
		os.Exit(1)
	}

	ctx.Bind(cfg)
	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
