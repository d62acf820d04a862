package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"tasklist/internal/config"
	"tasklist/internal/dispatch"
	"tasklist/internal/storage"
	"tasklist/internal/tasklist"
)

var titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)

type screen int

const (
	screenCategories screen = iota
	screenTasks
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeRename
)

// editor receives the controller's open requests; the model turns them
// into a rename prompt.
type editor struct {
	task *storage.Task
}

func (e *editor) OpenTask(_ storage.Category, t storage.Task) {
	e.task = &t
}

type taskScreen struct {
	ctrl    *tasklist.Controller
	adapter *Adapter
	editor  *editor
}

type categoriesLoadedMsg struct {
	categories []storage.Category
	err        error
}

type tasksLoadedMsg struct {
	screen *taskScreen
	err    error
}

// opDoneMsg reports a finished store operation. cursor < 0 keeps the
// current cursor.
type opDoneMsg struct {
	status string
	err    error
	cursor int
	reload bool
}

type Model struct {
	store  *storage.Store
	cfg    config.Config
	log    zerolog.Logger
	queue  *dispatch.Queue
	screen screen
	mode   mode
	input  textinput.Model
	status string
	cursor int
	busy   bool

	categories []storage.Category
	tasks      *taskScreen

	confirmDel bool
	pendingDel int
}

func NewModel(store *storage.Store, cfg config.Config, log zerolog.Logger, queue *dispatch.Queue) Model {
	ti := textinput.New()
	ti.Placeholder = "Title"
	ti.CharLimit = 256
	ti.Width = 40

	return Model{
		store:  store,
		cfg:    cfg,
		log:    log.With().Str("component", "ui").Logger(),
		queue:  queue,
		screen: screenCategories,
		mode:   modeList,
		input:  ti,
		status: "Press 'a' to add a category, enter to open it.",
	}
}

func Run(store *storage.Store, cfg config.Config, log zerolog.Logger) error {
	queue := dispatch.New(log, 16)
	defer queue.Close()

	program := tea.NewProgram(NewModel(store, cfg, log, queue))
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.loadCategories()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.busy && msg.String() != "ctrl+c" {
			return m, nil
		}
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		if m.mode != modeList {
			return m.updateInputMode(msg.String(), msg)
		}
		if m.screen == screenTasks {
			return m.updateTaskList(msg.String())
		}
		return m.updateCategoryList(msg.String())
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	case categoriesLoadedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = fmt.Sprintf("reload failed: %v", msg.err)
			return m, nil
		}
		m.categories = msg.categories
		m.cursor = clampCursor(m.cursor, len(m.categories))
	case tasksLoadedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = fmt.Sprintf("open failed: %v", msg.err)
			return m, nil
		}
		m.tasks = msg.screen
		m.screen = screenTasks
		m.cursor = 0
		m.status = "space check • d delete • K/J move • enter rename • esc back"
	case opDoneMsg:
		m.busy = false
		switch {
		case errors.Is(msg.err, tasklist.ErrStaleGeneration):
			m.status = "List changed, try again"
		case msg.err != nil:
			m.status = fmt.Sprintf("failed: %v", msg.err)
			m.log.Error().Err(msg.err).Str("op", msg.status).Msg("operation failed")
		default:
			m.status = msg.status
		}
		if msg.cursor >= 0 && msg.err == nil {
			m.cursor = msg.cursor
		}
		if msg.reload {
			m.busy = true
			return m, m.loadCategories()
		}
		m.cursor = clampCursor(m.cursor, m.rowCount())
	}
	return m, nil
}

func (m Model) rowCount() int {
	if m.screen == screenTasks && m.tasks != nil {
		return m.tasks.adapter.Len()
	}
	return len(m.categories)
}

func (m Model) loadCategories() tea.Cmd {
	store, queue := m.store, m.queue
	return func() tea.Msg {
		var categories []storage.Category
		err := queue.Do(context.Background(), "load categories", func(ctx context.Context) error {
			var err error
			categories, err = store.FindCategories(ctx)
			return err
		})
		return categoriesLoadedMsg{categories: categories, err: err}
	}
}

func (m Model) openCategory(c storage.Category) tea.Cmd {
	store, queue, log := m.store, m.queue, m.log
	return func() tea.Msg {
		ts := &taskScreen{adapter: NewAdapter(), editor: &editor{}}
		ts.ctrl = tasklist.New(store, ts.adapter, ts.editor, log, c.ID)
		err := queue.Do(context.Background(), "load tasks", ts.ctrl.Load)
		return tasksLoadedMsg{screen: ts, err: err}
	}
}

// run executes job on the dispatch queue. The model stays busy until
// the job's opDoneMsg arrives, so the next gesture always sees the
// refreshed list.
func (m Model) run(status string, cursor int, reload bool, job dispatch.Job) (Model, tea.Cmd) {
	m.busy = true
	queue := m.queue
	return m, func() tea.Msg {
		err := queue.Do(context.Background(), status, job)
		return opDoneMsg{status: status, err: err, cursor: cursor, reload: reload}
	}
}

// gesture runs fn against the row under the cursor, checked against the
// render generation it was captured in.
func (m Model) gesture(status string, cursor int, fn func(ctx context.Context, index int) error) (Model, tea.Cmd) {
	ctrl := m.tasks.ctrl
	g := ctrl.Capture(m.cursor)
	return m.run(status, cursor, false, func(ctx context.Context) error {
		index, err := ctrl.Resolve(g)
		if err != nil {
			return err
		}
		return fn(ctx, index)
	})
}

func (m Model) updateCategoryList(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		m.cursor = clampCursor(m.cursor+1, len(m.categories))
	case m.cfg.Keys.Up, "up":
		m.cursor = clampCursor(m.cursor-1, len(m.categories))
	case m.cfg.Keys.Add:
		m.mode = modeAdd
		m.input.Placeholder = "Category title"
		m.input.Focus()
		m.status = "New category: type a title and press Enter"
	case m.cfg.Keys.Delete:
		if len(m.categories) == 0 {
			return m, nil
		}
		m.confirmDel = true
		m.pendingDel = m.cursor
		m.status = fmt.Sprintf("Delete category \"%s\" and its tasks? y/n", m.categories[m.cursor].Title)
	case m.cfg.Keys.Open:
		if len(m.categories) == 0 {
			m.status = "No categories"
			return m, nil
		}
		m.busy = true
		return m, m.openCategory(m.categories[m.cursor])
	}
	return m, nil
}

func (m Model) updateTaskList(key string) (tea.Model, tea.Cmd) {
	ctrl := m.tasks.ctrl
	n := m.tasks.adapter.Len()
	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Back:
		m.screen = screenCategories
		m.tasks = nil
		m.cursor = 0
		m.status = "Back to categories"
		m.busy = true
		return m, m.loadCategories()
	case m.cfg.Keys.Down, "down":
		m.cursor = clampCursor(m.cursor+1, n)
	case m.cfg.Keys.Up, "up":
		m.cursor = clampCursor(m.cursor-1, n)
	case m.cfg.Keys.Add:
		m.mode = modeAdd
		m.input.Placeholder = "Task title"
		m.input.Focus()
		m.status = "Add mode: type a title and press Enter"
	case m.cfg.Keys.Toggle:
		if n == 0 {
			return m, nil
		}
		return m.gesture("Toggled task", -1, ctrl.Check)
	case m.cfg.Keys.Delete:
		if n == 0 {
			return m, nil
		}
		m.confirmDel = true
		m.pendingDel = m.cursor
		m.status = fmt.Sprintf("Delete \"%s\"? y/n", ctrl.Tasks()[m.cursor].Title)
	case m.cfg.Keys.MoveUp:
		if m.cursor == 0 || n == 0 {
			return m, nil
		}
		return m.gesture("Moved task up", m.cursor-1, func(ctx context.Context, i int) error {
			return ctrl.MoveTo(ctx, i, i-1)
		})
	case m.cfg.Keys.MoveDown:
		if m.cursor >= n-1 {
			return m, nil
		}
		return m.gesture("Moved task down", m.cursor+1, func(ctx context.Context, i int) error {
			return ctrl.MoveTo(ctx, i, i+1)
		})
	case m.cfg.Keys.Open:
		if n == 0 {
			m.status = "No tasks"
			return m, nil
		}
		if err := ctrl.Open(m.cursor); err != nil {
			m.status = fmt.Sprintf("open failed: %v", err)
			return m, nil
		}
		return m.startRename()
	}
	return m, nil
}

func (m Model) startRename() (tea.Model, tea.Cmd) {
	t := m.tasks.editor.task
	if t == nil {
		return m, nil
	}
	m.mode = modeRename
	m.input.Placeholder = "Task title"
	m.input.SetValue(t.Title)
	m.input.Focus()
	m.status = fmt.Sprintf("Rename task #%d, Enter to save, Esc to cancel", t.ID)
	return m, nil
}

func (m Model) updateInputMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel:
		m.mode = modeList
		m.input.SetValue("")
		m.input.Blur()
		if m.tasks != nil {
			m.tasks.editor.task = nil
		}
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.Confirm:
		title := strings.TrimSpace(m.input.Value())
		if title == "" {
			m.status = "Title cannot be empty"
			return m, nil
		}
		current := m.mode
		m.mode = modeList
		m.input.SetValue("")
		m.input.Blur()
		return m.submit(current, title)
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) submit(current mode, title string) (tea.Model, tea.Cmd) {
	if m.screen == screenCategories {
		store := m.store
		return m.run("Added category", len(m.categories), true, func(ctx context.Context) error {
			_, err := store.CreateCategory(ctx, title)
			return err
		})
	}

	ctrl := m.tasks.ctrl
	if current == modeRename {
		target := m.tasks.editor.task
		m.tasks.editor.task = nil
		if target == nil {
			return m, nil
		}
		id := target.ID
		return m.run("Renamed task", -1, false, func(ctx context.Context) error {
			index := ctrl.IndexOf(id)
			if index < 0 {
				return fmt.Errorf("task %d: %w", id, storage.ErrNotFound)
			}
			return ctrl.Rename(ctx, index, title)
		})
	}
	return m.run("Added task", m.tasks.adapter.Len(), false, func(ctx context.Context) error {
		_, err := ctrl.Add(ctx, title)
		return err
	})
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", m.cfg.Keys.Cancel:
		m.status = "Delete cancelled"
		m.confirmDel = false
		return m, nil
	case "y", "Y":
		m.confirmDel = false
		index := m.pendingDel
		if m.screen == screenCategories {
			if index >= len(m.categories) {
				m.status = "Nothing to delete"
				return m, nil
			}
			store, id := m.store, m.categories[index].ID
			return m.run("Deleted category", -1, true, func(ctx context.Context) error {
				return store.DeleteCategory(ctx, id)
			})
		}
		m.cursor = index
		return m.gesture("Deleted task", -1, m.tasks.ctrl.DeleteAt)
	default:
		return m, nil
	}
}

func (m Model) View() string {
	var b strings.Builder

	if m.screen == screenTasks && m.tasks != nil {
		b.WriteString(titleStyle.Render(m.tasks.ctrl.Category().Title))
		b.WriteString("\n\n")
		if m.tasks.adapter.Len() == 0 {
			b.WriteString("No tasks yet. Press 'a' to add one.\n")
		} else {
			cursor := -1
			if m.mode == modeList {
				cursor = m.cursor
			}
			b.WriteString(m.tasks.adapter.Render(cursor))
		}
	} else {
		b.WriteString(titleStyle.Render("Categories"))
		b.WriteString("\n\n")
		if len(m.categories) == 0 {
			b.WriteString("No categories yet. Press 'a' to add one.\n")
		} else {
			b.WriteString(m.renderCategories())
		}
	}

	b.WriteString("---\n")
	if m.mode != modeList {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderCategories() string {
	var b strings.Builder
	for i, c := range m.categories {
		cursor := " "
		if m.cursor == i && m.mode == modeList {
			cursor = ">"
		}
		b.WriteString(fmt.Sprintf("%s %s\n", cursor, c.Title))
	}
	return b.String()
}

func (m Model) renderHelp() string {
	k := m.cfg.Keys
	if m.screen == screenTasks {
		return fmt.Sprintf("%s/%s move • %s add • %s toggle • %s delete • %s/%s reorder • %s rename • %s back • %s quit",
			k.Up, k.Down, k.Add, keyLabel(k.Toggle), k.Delete, k.MoveUp, k.MoveDown, k.Open, k.Back, k.Quit)
	}
	return fmt.Sprintf("%s/%s move • %s add • %s delete • %s open • %s quit",
		k.Up, k.Down, k.Add, k.Delete, k.Open, k.Quit)
}

func keyLabel(k string) string {
	if k == " " {
		return "space"
	}
	return k
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
