package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a category or task does not exist.
var ErrNotFound = errors.New("not found")

type Category struct {
	ID        int64
	Title     string
	CreatedAt time.Time
}

type Task struct {
	ID         int64
	CategoryID int64
	Title      string
	Done       bool
	Position   int
	CreatedAt  time.Time
}

// SameItem reports whether t and o are the same row.
func (t Task) SameItem(o Task) bool {
	return t.ID == o.ID
}

// SameContent reports whether t and o render identically. Position is
// not content: a row that only changed slot is moved, not rebuilt.
func (t Task) SameContent(o Task) bool {
	return t.Title == o.Title && t.Done == o.Done
}

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	done INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := s.ensureTaskColumns(); err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS tasks_category_position ON tasks (category_id, position);`); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// ensureTaskColumns upgrades databases created before tasks were
// ordered within their category. Existing tasks keep their insertion
// order as their position.
func (s *Store) ensureTaskColumns() error {
	required := map[string][]string{
		"position": {
			`ALTER TABLE tasks ADD COLUMN position INTEGER NOT NULL DEFAULT 0;`,
			`UPDATE tasks SET position = (SELECT COUNT(*) FROM tasks t2 WHERE t2.category_id = tasks.category_id AND t2.id < tasks.id);`,
		},
	}
	existing, err := s.taskColumns()
	if err != nil {
		return err
	}
	for col, stmts := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("add column %s: %w", col, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// taskColumns lists the columns of the tasks table. The rows are closed
// before returning so the single connection is free for the migration.
func (s *Store) taskColumns() (map[string]struct{}, error) {
	rows, err := s.db.Query(`PRAGMA table_info(tasks);`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := map[string]struct{}{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		existing[name] = struct{}{}
	}
	return existing, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, title string) (Category, error) {
	c := Category{Title: title, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	res, err := s.db.ExecContext(ctx, `INSERT INTO categories (title, created_at) VALUES (?, ?);`,
		title, c.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return Category{}, err
	}
	return c, nil
}

func (s *Store) FindCategoryByID(ctx context.Context, id int64) (Category, error) {
	var c Category
	var createdStr string
	err := s.db.QueryRowContext(ctx, `SELECT id, title, created_at FROM categories WHERE id = ?;`, id).
		Scan(&c.ID, &c.Title, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Category{}, err
	}
	c.CreatedAt = parseTime(createdStr)
	return c, nil
}

func (s *Store) FindCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, created_at FROM categories ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		var createdStr string
		if err := rows.Scan(&c.ID, &c.Title, &createdStr); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdStr)
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

// DeleteCategory removes the category and, through the foreign key,
// all of its tasks.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE category_id = ?;`, id); err != nil {
		return fmt.Errorf("delete tasks of category %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if err := expectOneRow(res, "category", id); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateTask appends a task to the end of its category.
func (s *Store) CreateTask(ctx context.Context, categoryID int64, title string) (Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE id = ?;`, categoryID).Scan(&exists)
	if err != nil {
		return Task{}, err
	}
	if exists == 0 {
		return Task{}, fmt.Errorf("category %d: %w", categoryID, ErrNotFound)
	}

	t := Task{CategoryID: categoryID, Title: title, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE category_id = ?;`, categoryID).Scan(&t.Position); err != nil {
		return Task{}, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO tasks (category_id, title, done, position, created_at) VALUES (?, ?, 0, ?, ?);`,
		categoryID, title, t.Position, t.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return Task{}, err
	}
	return t, tx.Commit()
}

func (s *Store) FindAllByCategory(ctx context.Context, categoryID int64) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, category_id, title, done, position, created_at FROM tasks WHERE category_id = ? ORDER BY position, id;`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, category_id, title, done, position, created_at FROM tasks WHERE id = ?;`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return t, err
}

// Update writes the mutable fields of t. The category is never changed.
func (s *Store) Update(ctx context.Context, t Task) error {
	return s.UpdateAll(ctx, t)
}

// UpdateAll writes every task in one transaction: either all rows are
// updated or none is.
func (s *Store) UpdateAll(ctx context.Context, tasks ...Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range tasks {
		res, err := tx.ExecContext(ctx, `UPDATE tasks SET title = ?, done = ?, position = ? WHERE id = ?;`,
			t.Title, boolToInt(t.Done), t.Position, t.ID)
		if err != nil {
			return fmt.Errorf("update task %d: %w", t.ID, err)
		}
		if err := expectOneRow(res, "task", t.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes t and shifts the later tasks of its category up by one
// so positions stay contiguous.
func (s *Store) Delete(ctx context.Context, t Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var categoryID int64
	var position int
	err = tx.QueryRowContext(ctx, `SELECT category_id, position FROM tasks WHERE id = ?;`, t.ID).Scan(&categoryID, &position)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("task %d: %w", t.ID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?;`, t.ID); err != nil {
		return fmt.Errorf("delete task %d: %w", t.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET position = position - 1 WHERE category_id = ? AND position > ?;`, categoryID, position); err != nil {
		return fmt.Errorf("compact positions: %w", err)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (Task, error) {
	var t Task
	var doneInt int
	var createdStr string
	if err := row.Scan(&t.ID, &t.CategoryID, &t.Title, &doneInt, &t.Position, &createdStr); err != nil {
		return Task{}, err
	}
	t.Done = doneInt == 1
	t.CreatedAt = parseTime(createdStr)
	return t, nil
}

func expectOneRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	u.RawQuery = q.Encode()
	return u.String()
}
