// Package tasklist holds the ordered task list of one category and
// applies gestures to it: check, delete, swap, rename, add and open.
//
// A Controller is not safe for concurrent use. Callers serialize
// operations, either by calling from a single goroutine or through a
// dispatch.Queue, so every mutation is persisted and the list refreshed
// before the next gesture is interpreted.
package tasklist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"tasklist/internal/storage"
)

var (
	ErrNotLoaded       = errors.New("task list not loaded")
	ErrInvalidIndex    = errors.New("invalid index")
	ErrStaleGeneration = errors.New("stale render generation")
	ErrEmptyTitle      = errors.New("title cannot be empty")
)

type Store interface {
	FindCategoryByID(ctx context.Context, id int64) (storage.Category, error)
	FindAllByCategory(ctx context.Context, categoryID int64) ([]storage.Task, error)
	FindByID(ctx context.Context, id int64) (storage.Task, error)
	CreateTask(ctx context.Context, categoryID int64, title string) (storage.Task, error)
	Update(ctx context.Context, t storage.Task) error
	Delete(ctx context.Context, t storage.Task) error
}

// BatchUpdater is implemented by stores that can persist several tasks
// atomically. MoveTo uses it so a swap never half-persists.
type BatchUpdater interface {
	UpdateAll(ctx context.Context, tasks ...storage.Task) error
}

type Renderer interface {
	SetItems(tasks []storage.Task)
	NotifyMoved(i, j int)
	NotifyChanged(i int, t storage.Task)
}

type Navigator interface {
	OpenTask(c storage.Category, t storage.Task)
}

type state int

const (
	stateUnloaded state = iota
	stateLoaded
)

// Gesture is a row reference captured at render time.
type Gesture struct {
	Generation uint64
	Index      int
}

type Controller struct {
	store      Store
	renderer   Renderer
	navigator  Navigator
	log        zerolog.Logger
	categoryID int64

	state      state
	category   storage.Category
	tasks      []storage.Task
	generation uint64
}

func New(store Store, renderer Renderer, navigator Navigator, log zerolog.Logger, categoryID int64) *Controller {
	return &Controller{
		store:      store,
		renderer:   renderer,
		navigator:  navigator,
		log:        log.With().Str("component", "tasklist").Int64("category_id", categoryID).Logger(),
		categoryID: categoryID,
	}
}

// Load fetches the category and its tasks and renders them. It may be
// called again to refresh a loaded list.
func (c *Controller) Load(ctx context.Context) error {
	category, err := c.store.FindCategoryByID(ctx, c.categoryID)
	if err != nil {
		return fmt.Errorf("load category: %w", err)
	}
	c.category = category
	if err := c.reload(ctx); err != nil {
		return err
	}
	c.state = stateLoaded
	c.log.Debug().Int("tasks", len(c.tasks)).Msg("loaded")
	return nil
}

func (c *Controller) Loaded() bool {
	return c.state == stateLoaded
}

func (c *Controller) Category() storage.Category {
	return c.category
}

// Tasks returns a copy of the list in display order.
func (c *Controller) Tasks() []storage.Task {
	out := make([]storage.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

func (c *Controller) Len() int {
	return len(c.tasks)
}

// Generation is bumped on every render. Indices captured under an older
// generation may point at a different task.
func (c *Controller) Generation() uint64 {
	return c.generation
}

// Capture returns a gesture for the row at index in the current render.
func (c *Controller) Capture(index int) Gesture {
	return Gesture{Generation: c.generation, Index: index}
}

// Resolve maps g to the index it names now.
func (c *Controller) Resolve(g Gesture) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	if g.Generation != c.generation {
		return 0, fmt.Errorf("gesture from generation %d, current %d: %w", g.Generation, c.generation, ErrStaleGeneration)
	}
	if err := c.checkIndex(g.Index); err != nil {
		return 0, err
	}
	return g.Index, nil
}

// Check toggles the done flag of the task at index.
func (c *Controller) Check(ctx context.Context, index int) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.checkIndex(index); err != nil {
		return err
	}
	t := c.tasks[index]
	t.Done = !t.Done
	if err := c.store.Update(ctx, t); err != nil {
		return fmt.Errorf("check task %d: %w", t.ID, err)
	}
	c.log.Info().Int64("task_id", t.ID).Bool("done", t.Done).Msg("task checked")
	return c.reload(ctx)
}

// DeleteAt removes the task at index from the store.
func (c *Controller) DeleteAt(ctx context.Context, index int) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.checkIndex(index); err != nil {
		return err
	}
	t := c.tasks[index]
	if err := c.store.Delete(ctx, t); err != nil {
		return fmt.Errorf("delete task %d: %w", t.ID, err)
	}
	c.log.Info().Int64("task_id", t.ID).Msg("task deleted")
	return c.reload(ctx)
}

// MoveTo swaps the tasks at a and b. Both are persisted with their new
// positions before the in-memory list changes; on failure the list is
// left as it was.
func (c *Controller) MoveTo(ctx context.Context, a, b int) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.checkIndex(a); err != nil {
		return err
	}
	if err := c.checkIndex(b); err != nil {
		return err
	}
	if a == b {
		return nil
	}

	first, second := c.tasks[a], c.tasks[b]
	first.Position = b
	second.Position = a
	if err := c.persistPair(ctx, first, second); err != nil {
		return fmt.Errorf("swap tasks %d and %d: %w", first.ID, second.ID, err)
	}

	c.tasks[a], c.tasks[b] = second, first
	c.generation++
	c.renderer.NotifyMoved(a, b)
	c.log.Info().Int("from", a).Int("to", b).Msg("tasks swapped")
	return nil
}

func (c *Controller) persistPair(ctx context.Context, first, second storage.Task) error {
	if batch, ok := c.store.(BatchUpdater); ok {
		return batch.UpdateAll(ctx, first, second)
	}
	if err := c.store.Update(ctx, first); err != nil {
		return err
	}
	return c.store.Update(ctx, second)
}

// Open hands the task at index to the navigator.
func (c *Controller) Open(index int) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.checkIndex(index); err != nil {
		return err
	}
	c.navigator.OpenTask(c.category, c.tasks[index])
	return nil
}

// Add appends a new task to the category.
func (c *Controller) Add(ctx context.Context, title string) (storage.Task, error) {
	if err := c.ready(); err != nil {
		return storage.Task{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return storage.Task{}, ErrEmptyTitle
	}
	t, err := c.store.CreateTask(ctx, c.categoryID, title)
	if err != nil {
		return storage.Task{}, fmt.Errorf("add task: %w", err)
	}
	c.log.Info().Int64("task_id", t.ID).Msg("task added")
	return t, c.reload(ctx)
}

// Rename changes the title of the task at index and redraws only that
// row. The task is re-read first so the edit applies to the stored copy.
func (c *Controller) Rename(ctx context.Context, index int, title string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.checkIndex(index); err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	t, err := c.store.FindByID(ctx, c.tasks[index].ID)
	if err != nil {
		return fmt.Errorf("rename task: %w", err)
	}
	t.Title = title
	if err := c.store.Update(ctx, t); err != nil {
		return fmt.Errorf("rename task %d: %w", t.ID, err)
	}
	c.tasks[index] = t
	c.generation++
	c.renderer.NotifyChanged(index, t)
	c.log.Info().Int64("task_id", t.ID).Msg("task renamed")
	return nil
}

// IndexOf returns the current index of the task with id, or -1.
func (c *Controller) IndexOf(id int64) int {
	for i, t := range c.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) reload(ctx context.Context) error {
	tasks, err := c.store.FindAllByCategory(ctx, c.categoryID)
	if err != nil {
		return fmt.Errorf("reload tasks: %w", err)
	}
	c.tasks = tasks
	c.generation++
	c.renderer.SetItems(c.Tasks())
	return nil
}

func (c *Controller) ready() error {
	if c.state != stateLoaded {
		return ErrNotLoaded
	}
	return nil
}

func (c *Controller) checkIndex(index int) error {
	if index < 0 || index >= len(c.tasks) {
		return fmt.Errorf("index %d of %d: %w", index, len(c.tasks), ErrInvalidIndex)
	}
	return nil
}
