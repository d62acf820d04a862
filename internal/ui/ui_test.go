package ui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"tasklist/internal/config"
	"tasklist/internal/dispatch"
	"tasklist/internal/storage"
)

func newTestModel(t *testing.T) (Model, *storage.Store) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.LoadOrCreate(filepath.Join(dir, config.DefaultConfigFileName))
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	queue := dispatch.New(zerolog.Nop(), 4)
	t.Cleanup(func() {
		queue.Close()
		store.Close()
	})
	return NewModel(store, cfg, zerolog.Nop(), queue), store
}

// send delivers msg and runs every command it produces until the model
// settles. Only the model's own commands are executed.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil {
		next, cmd = m.Update(cmd())
		m = next.(Model)
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		m = send(t, m, key(k))
	}
	return m
}

func typeTitle(t *testing.T, m Model, title string) Model {
	t.Helper()
	m.input.SetValue(title)
	return send(t, m, key("enter"))
}

func taskTitles(tasks []storage.Task) string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Title
	}
	return strings.Join(out, ",")
}

func TestCategoryAndTaskFlow(t *testing.T) {
	m, store := newTestModel(t)
	m = send(t, m, m.Init()())

	m = press(t, m, "a")
	m = typeTitle(t, m, "Groceries")
	if len(m.categories) != 1 || m.categories[0].Title != "Groceries" {
		t.Fatalf("categories = %+v", m.categories)
	}

	m = press(t, m, "enter")
	if m.screen != screenTasks {
		t.Fatalf("expected task screen, status %q", m.status)
	}
	for _, title := range []string{"A", "B", "C"} {
		m = press(t, m, "a")
		m = typeTitle(t, m, title)
	}
	if got := taskTitles(m.tasks.ctrl.Tasks()); got != "A,B,C" {
		t.Fatalf("tasks = %s", got)
	}
	if m.cursor != 2 {
		t.Fatalf("cursor should follow the added task, got %d", m.cursor)
	}

	// check(1)
	m = press(t, m, "k", " ")
	tasks := m.tasks.ctrl.Tasks()
	if !tasks[1].Done || tasks[0].Done || tasks[2].Done {
		t.Fatalf("after toggle: %+v", tasks)
	}

	// moveTo(0,2) as two drag steps: C up twice, then A down once
	m = press(t, m, "j", "K", "K")
	if got := taskTitles(m.tasks.ctrl.Tasks()); got != "C,A,B" {
		t.Fatalf("after moving up: %s", got)
	}
	if m.cursor != 0 {
		t.Fatalf("cursor should follow the moved task, got %d", m.cursor)
	}
	m = press(t, m, "j", "J")
	if got := taskTitles(m.tasks.ctrl.Tasks()); got != "C,B,A" {
		t.Fatalf("after moving down: %s", got)
	}
	stored, err := store.FindAllByCategory(context.Background(), m.tasks.ctrl.Category().ID)
	if err != nil {
		t.Fatalf("FindAllByCategory failed: %v", err)
	}
	if got := taskTitles(stored); got != "C,B,A" {
		t.Fatalf("stored order %s", got)
	}

	// deleteAt(1) with confirmation
	m = press(t, m, "k", "d")
	if !m.confirmDel {
		t.Fatal("expected delete confirmation")
	}
	m = press(t, m, "y")
	if got := taskTitles(m.tasks.ctrl.Tasks()); got != "C,A" {
		t.Fatalf("after delete: %s", got)
	}

	view := m.View()
	if !strings.Contains(view, "Groceries") || !strings.Contains(view, "C") || strings.Contains(view, "[x]") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}

func TestRenameThroughOpen(t *testing.T) {
	m, store := newTestModel(t)
	c, err := store.CreateCategory(context.Background(), "Work")
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	if _, err := store.CreateTask(context.Background(), c.ID, "Draft"); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	m = send(t, m, m.Init()())
	m = press(t, m, "enter", "enter")
	if m.mode != modeRename || m.input.Value() != "Draft" {
		t.Fatalf("expected rename prompt, mode %v value %q", m.mode, m.input.Value())
	}
	builds := m.tasks.adapter.Builds()

	m = typeTitle(t, m, "Final draft")
	if got := m.tasks.ctrl.Tasks()[0].Title; got != "Final draft" {
		t.Fatalf("title = %q", got)
	}
	if m.tasks.adapter.Builds() != builds+1 {
		t.Fatalf("rename should rebuild exactly one row")
	}
}

func TestCancelAndBack(t *testing.T) {
	m, store := newTestModel(t)
	if _, err := store.CreateCategory(context.Background(), "Home"); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	m = send(t, m, m.Init()())

	m = press(t, m, "a", "esc")
	if m.mode != modeList || m.status != "Cancelled" {
		t.Fatalf("mode %v status %q", m.mode, m.status)
	}

	m = press(t, m, "enter", "esc")
	if m.screen != screenCategories || m.tasks != nil {
		t.Fatal("esc should return to the category screen")
	}

	m = press(t, m, "d", "n")
	if len(m.categories) != 1 {
		t.Fatal("cancelled delete removed the category")
	}
	m = press(t, m, "d", "y")
	if len(m.categories) != 0 {
		t.Fatalf("categories = %+v", m.categories)
	}
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	m, _ := newTestModel(t)
	m.busy = true
	next, cmd := m.Update(key("a"))
	if cmd != nil || next.(Model).mode != modeList {
		t.Fatal("keys must be ignored while an operation is running")
	}
}
