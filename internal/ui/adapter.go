package ui

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"tasklist/internal/diff"
	"tasklist/internal/storage"
)

var (
	doneStyle    = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	pendingStyle = lipgloss.NewStyle()
	cursorStyle  = lipgloss.NewStyle().Bold(true)
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// row is the rendered form of one task. It is rebuilt only when the task
// is inserted or its content changes.
type row struct {
	taskID int64
	line   string
	builds int
}

func (r *row) build(t storage.Task) {
	checkbox := "[ ]"
	style := pendingStyle
	if t.Done {
		checkbox = "[x]"
		style = doneStyle
	}
	r.taskID = t.ID
	r.line = fmt.Sprintf("%s %s", checkbox, style.Render(lineBreaks.Replace(t.Title)))
	r.builds++
}

// Adapter keeps the rows on screen in step with the controller's list.
// SetItems diffs against the last rendered list; NotifyMoved and
// NotifyChanged are the fast paths for a swap and a single-row edit.
// Methods are safe to call from the dispatch worker while the UI renders.
type Adapter struct {
	mu     sync.Mutex
	items  []storage.Task
	rows   []*row
	builds int
}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func taskKey(t storage.Task) int64 {
	return t.ID
}

func (a *Adapter) SetItems(tasks []storage.Task) {
	a.mu.Lock()
	defer a.mu.Unlock()

	script := diff.Compute(a.items, tasks, taskKey, storage.Task.SameContent)
	for _, op := range script {
		switch op.Kind {
		case diff.Insert:
			r := &row{}
			r.build(op.Item)
			a.builds++
			a.rows = slices.Insert(a.rows, op.Index, r)
		case diff.Remove:
			a.rows = slices.Delete(a.rows, op.Index, op.Index+1)
		case diff.Move:
			r := a.rows[op.Index]
			a.rows = slices.Delete(a.rows, op.Index, op.Index+1)
			a.rows = slices.Insert(a.rows, op.To, r)
		case diff.Change:
			a.rows[op.Index].build(op.Item)
			a.builds++
		}
	}
	a.items = slices.Clone(tasks)
}

// NotifyMoved records that the tasks at i and j exchanged slots.
func (a *Adapter) NotifyMoved(i, j int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.valid(i) || !a.valid(j) {
		return
	}
	a.rows[i], a.rows[j] = a.rows[j], a.rows[i]
	a.items[i], a.items[j] = a.items[j], a.items[i]
	a.items[i].Position = i
	a.items[j].Position = j
}

// NotifyChanged rebuilds the row at i from t.
func (a *Adapter) NotifyChanged(i int, t storage.Task) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.valid(i) {
		return
	}
	a.items[i] = t
	a.rows[i].build(t)
	a.builds++
}

func (a *Adapter) valid(i int) bool {
	return i >= 0 && i < len(a.rows)
}

func (a *Adapter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rows)
}

// Items returns the last rendered list.
func (a *Adapter) Items() []storage.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.items)
}

// Lines returns the rendered line of every row, one per task.
func (a *Adapter) Lines() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	lines := make([]string, len(a.rows))
	for i, r := range a.rows {
		lines[i] = r.line
	}
	return lines
}

// Builds returns how many row builds happened since the adapter was created.
func (a *Adapter) Builds() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.builds
}

// Render draws the rows, marking cursor. A negative cursor draws none.
func (a *Adapter) Render(cursor int) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var b strings.Builder
	for i, r := range a.rows {
		if i == cursor {
			b.WriteString(cursorStyle.Render(">") + " " + r.line)
		} else {
			b.WriteString("  " + r.line)
		}
		b.WriteString("\n")
	}
	return b.String()
}
