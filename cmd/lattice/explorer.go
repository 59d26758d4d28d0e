package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lattice/internal/hier"
	"lattice/internal/items"
	"lattice/internal/reorg"
)

// BrowseCmd shows the interactive knowledge base explorer: category tree
// on the left, items on the right, with search, multi-select and
// drag-style moves.
type BrowseCmd struct{}

func (cmd *BrowseCmd) Run(cfg *Config) error {
	client := NewClient(cfg.Daemon.Port)
	if err := client.Ping(context.Background()); err != nil {
		return fmt.Errorf("daemon unreachable on port %d (start it with 'lattice serve'): %w", cfg.Daemon.Port, err)
	}

	p := tea.NewProgram(initialExplorerModel(client), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type focusArea int

const (
	focusTree focusArea = iota
	focusList
	focusSearch
)

type dialogMode int

const (
	dialogNone dialogMode = iota
	dialogCreate
	dialogTransfer
)

type treeRow struct {
	node  *hier.Node
	depth int
}

// Messages

type itemsMsg struct {
	list []items.Item
	err  error
}

type createDoneMsg struct{ err error }
type transferDoneMsg struct{ err error }
type moveDoneMsg struct{ err error }
type noticeMsg string

// Styles
var (
	explorerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#89b4fa"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#89b4fa"))

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#f9e2af"))

	reviewStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f38ba8"))

	faintStyle = lipgloss.NewStyle().
			Faint(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a6e3a1"))
)

// explorerModel is the Bubble Tea model for the knowledge base explorer.
type explorerModel struct {
	client  *Client
	ctrl    *reorg.Controller
	notices chan string

	items  []items.Item
	forest hier.Forest
	rows   []treeRow

	focus      focusArea
	treeCursor int
	listCursor int
	collapsed  map[string]bool

	search      textinput.Model
	needsReview bool

	selection map[string]struct{}
	grabbed   string
	// selectionMoved marks the in-flight move as a whole-selection move,
	// so the selection is cleared only when it was actually what moved.
	selectionMoved bool

	mode      dialogMode
	nameInput textinput.Model
	dialogErr string

	status string
	width  int
	height int
}

func initialExplorerModel(client *Client) *explorerModel {
	search := textinput.New()
	search.Placeholder = "search titles, notes, summaries"
	search.Prompt = "/ "
	search.CharLimit = 200

	name := textinput.New()
	name.Placeholder = "category name"
	name.CharLimit = 80

	notices := make(chan string, 8)
	notify := func(msg string) {
		select {
		case notices <- msg:
		default:
		}
	}

	return &explorerModel{
		client:    client,
		ctrl:      reorg.New(client, notify),
		notices:   notices,
		collapsed: make(map[string]bool),
		selection: make(map[string]struct{}),
		search:    search,
		nameInput: name,
		width:     100,
		height:    30,
	}
}

func (m *explorerModel) Init() tea.Cmd {
	return tea.Batch(m.loadItems, m.listenNotices, textinput.Blink)
}

// Commands

func (m *explorerModel) loadItems() tea.Msg {
	list, err := m.client.List(context.Background())
	return itemsMsg{list: list, err: err}
}

func (m *explorerModel) listenNotices() tea.Msg {
	return noticeMsg(<-m.notices)
}

func (m *explorerModel) confirmCreate(forest hier.Forest, name string) tea.Cmd {
	return func() tea.Msg {
		return createDoneMsg{err: m.ctrl.ConfirmCreate(context.Background(), forest, name)}
	}
}

func (m *explorerModel) confirmTransfer(transfer bool) tea.Cmd {
	return func() tea.Msg {
		_, err := m.ctrl.ConfirmTransfer(context.Background(), transfer)
		return transferDoneMsg{err: err}
	}
}

func (m *explorerModel) moveItems(ids []string, dest string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.ctrl.MoveItems(context.Background(), ids, dest)
		return moveDoneMsg{err: err}
	}
}

// Update

func (m *explorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case itemsMsg:
		if msg.err != nil {
			m.status = "load failed: " + msg.err.Error()
			return m, nil
		}
		m.items = msg.list
		m.rebuildTree()
		return m, nil

	case noticeMsg:
		m.status = string(msg)
		return m, m.listenNotices

	case createDoneMsg:
		return m.handleCreateDone(msg.err)

	case transferDoneMsg:
		m.mode = dialogNone
		m.dialogErr = ""
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.status = msg.err.Error()
		}
		return m, m.loadItems

	case moveDoneMsg:
		m.grabbed = ""
		// Only a whole-selection move consumes the selection. Dragging an
		// unselected item leaves it untouched.
		if m.selectionMoved {
			m.selection = make(map[string]struct{})
		}
		m.selectionMoved = false
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) && !errors.Is(msg.err, reorg.ErrBusy) {
			var be *reorg.BatchError
			if !errors.As(msg.err, &be) {
				m.status = msg.err.Error()
			}
		}
		return m, m.loadItems

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *explorerModel) handleCreateDone(err error) (tea.Model, tea.Cmd) {
	switch {
	case err == nil:
		m.mode = dialogNone
		m.dialogErr = ""
		m.nameInput.Reset()
		return m, m.loadItems
	case errors.Is(err, reorg.ErrEmptyName):
		m.dialogErr = "name cannot be empty"
		return m, nil
	case errors.Is(err, reorg.ErrPathExists):
		m.dialogErr = "that category already exists"
		return m, nil
	case errors.Is(err, reorg.ErrParentHasItems):
		// The parent's items can ride along into the new subcategory.
		m.mode = dialogTransfer
		m.dialogErr = ""
		return m, nil
	case errors.Is(err, context.Canceled), errors.Is(err, reorg.ErrBusy):
		m.mode = dialogNone
		m.dialogErr = ""
		return m, nil
	default:
		m.mode = dialogNone
		m.dialogErr = ""
		m.status = err.Error()
		return m, m.loadItems
	}
}

func (m *explorerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Dialogs capture all input first.
	switch m.mode {
	case dialogCreate:
		return m.handleCreateDialogKey(msg)
	case dialogTransfer:
		return m.handleTransferDialogKey(msg)
	}

	if m.focus == focusSearch {
		switch msg.Type {
		case tea.KeyEsc:
			m.search.Blur()
			m.focus = focusTree
			return m, nil
		case tea.KeyEnter:
			m.search.Blur()
			m.focus = focusList
			m.listCursor = 0
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.listCursor = 0
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc":
		if m.grabbed != "" {
			m.grabbed = ""
			return m, nil
		}
		m.ctrl.Reset()
		return m, tea.Quit
	case "tab":
		if m.focus == focusTree {
			m.focus = focusList
		} else {
			m.focus = focusTree
		}
		return m, nil
	case "/":
		m.focus = focusSearch
		m.search.Focus()
		return m, textinput.Blink
	case "r":
		m.needsReview = !m.needsReview
		m.listCursor = 0
		return m, nil
	case "R":
		return m, m.loadItems
	}

	if m.focus == focusTree {
		return m.handleTreeKey(msg)
	}
	return m.handleListKey(msg)
}

func (m *explorerModel) handleTreeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.treeCursor > 0 {
			m.treeCursor--
			m.listCursor = 0
		}
	case "down", "j":
		if m.treeCursor < len(m.rows)-1 {
			m.treeCursor++
			m.listCursor = 0
		}
	case " ":
		if node := m.currentNode(); node != nil && len(node.Children) > 0 {
			m.collapsed[node.FullPath] = !m.collapsed[node.FullPath]
			m.rebuildRows()
		}
	case "n":
		parent := ""
		if node := m.currentNode(); node != nil {
			parent = node.FullPath
		}
		return m.openCreateDialog(parent)
	case "N":
		return m.openCreateDialog("")
	case "enter", "d":
		return m.dropOnCurrent()
	}
	return m, nil
}

func (m *explorerModel) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.visibleItems()
	switch msg.String() {
	case "up", "k":
		if m.listCursor > 0 {
			m.listCursor--
		}
	case "down", "j":
		if m.listCursor < len(visible)-1 {
			m.listCursor++
		}
	case " ":
		if m.listCursor < len(visible) {
			id := visible[m.listCursor].ID
			if _, ok := m.selection[id]; ok {
				delete(m.selection, id)
			} else {
				m.selection[id] = struct{}{}
			}
		}
	case "g":
		if m.listCursor < len(visible) {
			m.grabbed = visible[m.listCursor].ID
			m.focus = focusTree
			m.status = "drop with enter on a category, esc to cancel"
		}
	case "x":
		m.selection = make(map[string]struct{})
	}
	return m, nil
}

func (m *explorerModel) handleCreateDialogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.ctrl.Reset()
		m.mode = dialogNone
		m.dialogErr = ""
		m.nameInput.Reset()
		return m, nil
	case tea.KeyEnter:
		return m, m.confirmCreate(m.forest, m.nameInput.Value())
	}
	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

func (m *explorerModel) handleTransferDialogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		return m, m.confirmTransfer(true)
	case "n", "N":
		return m, m.confirmTransfer(false)
	case "esc":
		m.ctrl.Reset()
		m.mode = dialogNone
		return m, nil
	}
	return m, nil
}

func (m *explorerModel) openCreateDialog(parent string) (tea.Model, tea.Cmd) {
	if err := m.ctrl.BeginCreate(parent); err != nil {
		return m, nil
	}
	m.mode = dialogCreate
	m.dialogErr = ""
	m.nameInput.Reset()
	m.nameInput.Focus()
	return m, textinput.Blink
}

// dropOnCurrent moves the grabbed item (and, when the grabbed item is
// part of the selection, the whole selection) into the category under
// the tree cursor.
func (m *explorerModel) dropOnCurrent() (tea.Model, tea.Cmd) {
	node := m.currentNode()
	if node == nil {
		return m, nil
	}
	var ids []string
	switch {
	case m.grabbed != "":
		ids = reorg.DragSet(m.grabbed, m.selection)
		_, m.selectionMoved = m.selection[m.grabbed]
	case len(m.selection) > 0:
		for id := range m.selection {
			ids = append(ids, id)
		}
		m.selectionMoved = true
	default:
		return m, nil
	}

	dest := node.FullPath
	if node.Name == hier.UncategorizedName && node.FullPath == hier.UncategorizedName {
		dest = ""
	}
	return m, m.moveItems(ids, dest)
}

// State helpers

func (m *explorerModel) rebuildTree() {
	m.forest = hier.BuildTree(m.items)
	m.rebuildRows()
}

func (m *explorerModel) rebuildRows() {
	m.rows = m.rows[:0]
	var walk func(n *hier.Node, depth int)
	walk = func(n *hier.Node, depth int) {
		m.rows = append(m.rows, treeRow{node: n, depth: depth})
		if m.collapsed[n.FullPath] {
			return
		}
		for _, child := range n.SortedChildren() {
			walk(child, depth+1)
		}
	}
	for _, root := range m.forest.Roots() {
		walk(root, 0)
	}
	if m.treeCursor >= len(m.rows) {
		m.treeCursor = len(m.rows) - 1
	}
	if m.treeCursor < 0 {
		m.treeCursor = 0
	}
}

func (m *explorerModel) currentNode() *hier.Node {
	if m.treeCursor < 0 || m.treeCursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.treeCursor].node
}

// visibleItems returns the item pane contents: the current category's
// direct items (the whole list when no category is selected), narrowed
// by the search query and the review toggle.
func (m *explorerModel) visibleItems() []items.Item {
	source := m.items
	if node := m.currentNode(); node != nil {
		source = node.Direct
	}
	f := hier.Filter{Query: m.search.Value(), NeedsReview: m.needsReview}
	return f.Apply(source)
}

// View

func (m *explorerModel) View() string {
	var b strings.Builder

	b.WriteString("  ")
	b.WriteString(explorerTitleStyle.Render("lattice"))
	if m.needsReview {
		b.WriteString("  ")
		b.WriteString(reviewStyle.Render("[review only]"))
	}
	b.WriteString("\n  ")
	b.WriteString(m.search.View())
	b.WriteString("\n\n")

	paneHeight := m.height - 9
	if paneHeight < 5 {
		paneHeight = 5
	}
	treeWidth := m.width / 3
	if treeWidth < 24 {
		treeWidth = 24
	}

	tree := m.renderTree(treeWidth, paneHeight)
	list := m.renderList(m.width-treeWidth-4, paneHeight)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tree, "  ", list))
	b.WriteString("\n")

	switch m.mode {
	case dialogCreate:
		b.WriteString(m.renderCreateDialog())
	case dialogTransfer:
		b.WriteString(m.renderTransferDialog())
	default:
		if m.status != "" {
			b.WriteString("  " + statusStyle.Render(m.status) + "\n")
		} else {
			b.WriteString("\n")
		}
	}

	b.WriteString(faintStyle.Render("  tab panes · / search · space select · g grab · enter drop · n new subcategory · r review · q quit"))
	return b.String()
}

func (m *explorerModel) renderTree(width, height int) string {
	lines := make([]string, 0, height)
	start := 0
	if m.treeCursor >= height {
		start = m.treeCursor - height + 1
	}
	for i := start; i < len(m.rows) && len(lines) < height; i++ {
		row := m.rows[i]
		label := fmt.Sprintf("%s%s (%d)", strings.Repeat("  ", row.depth), row.node.Name, row.node.Total)
		label = clip(label, width-4)
		switch {
		case i == m.treeCursor && m.focus == focusTree:
			lines = append(lines, cursorStyle.Render("> "+label))
		case i == m.treeCursor:
			lines = append(lines, "> "+label)
		default:
			lines = append(lines, "  "+label)
		}
	}
	if len(m.rows) == 0 {
		lines = append(lines, faintStyle.Render("  no categories yet"))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (m *explorerModel) renderList(width, height int) string {
	visible := m.visibleItems()
	lines := make([]string, 0, height)
	start := 0
	if m.listCursor >= height {
		start = m.listCursor - height + 1
	}
	for i := start; i < len(visible) && len(lines) < height; i++ {
		it := visible[i]
		marker := "  "
		if _, ok := m.selection[it.ID]; ok {
			marker = selectedItemStyle.Render("* ")
		}
		if it.ID == m.grabbed {
			marker = selectedItemStyle.Render("@ ")
		}
		// Clip the raw title before any styling so truncation never lands
		// inside an escape sequence.
		budget := width - 6
		if it.NeedsReview {
			budget -= len(" [review]")
		}
		label := clip(it.Title, budget)
		if it.Placeholder {
			label = faintStyle.Render(label)
		}
		if it.NeedsReview {
			label += " " + reviewStyle.Render("[review]")
		}
		line := marker + label
		if i == m.listCursor && m.focus == focusList {
			line = cursorStyle.Render(">") + " " + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	if len(visible) == 0 {
		lines = append(lines, faintStyle.Render("  no items"))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (m *explorerModel) renderCreateDialog() string {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(explorerTitleStyle.Render("New subcategory"))
	parent := m.dialogParent()
	if parent != "" {
		b.WriteString(faintStyle.Render(" under " + parent))
	}
	b.WriteString("\n  ")
	b.WriteString(m.nameInput.View())
	if m.dialogErr != "" {
		b.WriteString("  ")
		b.WriteString(reviewStyle.Render(m.dialogErr))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *explorerModel) renderTransferDialog() string {
	n := len(m.ctrl.PendingIDs())
	return fmt.Sprintf("  %s\n",
		explorerTitleStyle.Render(
			fmt.Sprintf("Move %d item(s) into %q? (y/n, esc cancels)", n, m.ctrl.TargetPath())))
}

// dialogParent derives the parent path of the category being created
// from the tree cursor; the controller owns the authoritative value but
// only exposes it once a target is confirmed.
func (m *explorerModel) dialogParent() string {
	if node := m.currentNode(); node != nil {
		return node.FullPath
	}
	return ""
}
