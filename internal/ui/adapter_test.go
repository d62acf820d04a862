package ui

import (
	"strings"
	"testing"

	"tasklist/internal/storage"
)

func task(id int64, title string, done bool, pos int) storage.Task {
	return storage.Task{ID: id, CategoryID: 1, Title: title, Done: done, Position: pos}
}

func rowIDs(a *Adapter) []int64 {
	ids := make([]int64, len(a.rows))
	for i, r := range a.rows {
		ids[i] = r.taskID
	}
	return ids
}

func assertRows(t *testing.T, a *Adapter, want ...int64) {
	t.Helper()
	got := rowIDs(a)
	if len(got) != len(want) {
		t.Fatalf("rows %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rows %v, want %v", got, want)
		}
		if a.items[i].ID != want[i] {
			t.Fatalf("baseline %v out of step with rows %v", a.items, got)
		}
	}
}

func TestSetItemsBuildsOnlyWhatChanged(t *testing.T) {
	a := NewAdapter()
	a.SetItems([]storage.Task{task(1, "A", false, 0), task(2, "B", false, 1), task(3, "C", false, 2)})
	assertRows(t, a, 1, 2, 3)
	if a.Builds() != 3 {
		t.Fatalf("initial builds = %d, want 3", a.Builds())
	}

	// Reorder only: rows move, nothing is rebuilt.
	a.SetItems([]storage.Task{task(3, "C", false, 0), task(1, "A", false, 1), task(2, "B", false, 2)})
	assertRows(t, a, 3, 1, 2)
	if a.Builds() != 3 {
		t.Fatalf("reorder rebuilt rows: builds = %d", a.Builds())
	}

	// Content change rebuilds one row.
	a.SetItems([]storage.Task{task(3, "C", false, 0), task(1, "A", true, 1), task(2, "B", false, 2)})
	if a.Builds() != 4 {
		t.Fatalf("builds = %d, want 4", a.Builds())
	}
	if a.rows[1].builds != 2 || a.rows[0].builds != 1 {
		t.Fatal("wrong row rebuilt")
	}

	// Delete and insert.
	a.SetItems([]storage.Task{task(3, "C", false, 0), task(4, "D", false, 1), task(2, "B", false, 2)})
	assertRows(t, a, 3, 4, 2)
	if a.Builds() != 5 {
		t.Fatalf("builds = %d, want 5", a.Builds())
	}

	a.SetItems(nil)
	if a.Len() != 0 {
		t.Fatalf("expected empty adapter, got %d rows", a.Len())
	}
}

func TestSetItemsSameListIsNoop(t *testing.T) {
	a := NewAdapter()
	list := []storage.Task{task(1, "A", false, 0), task(2, "B", true, 1)}
	a.SetItems(list)
	before := a.Builds()
	a.SetItems(list)
	if a.Builds() != before {
		t.Fatal("identical list rebuilt rows")
	}
}

func TestNotifyMovedSwapsRows(t *testing.T) {
	a := NewAdapter()
	a.SetItems([]storage.Task{task(1, "A", false, 0), task(2, "B", false, 1), task(3, "C", false, 2)})

	a.NotifyMoved(0, 2)
	assertRows(t, a, 3, 2, 1)
	for i, item := range a.Items() {
		if item.Position != i {
			t.Fatalf("positions not updated: %+v", a.Items())
		}
	}
	if a.Builds() != 3 {
		t.Fatal("swap must not rebuild rows")
	}

	// A following reload of the same order is a no-op.
	a.SetItems([]storage.Task{task(3, "C", false, 0), task(2, "B", false, 1), task(1, "A", false, 2)})
	if a.Builds() != 3 {
		t.Fatal("reload after swap rebuilt rows")
	}

	a.NotifyMoved(0, 9)
	assertRows(t, a, 3, 2, 1)
}

func TestNotifyChangedRebuildsOneRow(t *testing.T) {
	a := NewAdapter()
	a.SetItems([]storage.Task{task(1, "A", false, 0), task(2, "B", false, 1)})

	a.NotifyChanged(1, task(2, "Bread", false, 1))
	if !strings.Contains(a.rows[1].line, "Bread") {
		t.Fatalf("row not rebuilt: %q", a.rows[1].line)
	}
	if a.rows[0].builds != 1 || a.rows[1].builds != 2 {
		t.Fatal("unexpected rebuilds")
	}
	a.NotifyChanged(-1, task(9, "X", false, 0))
	if a.Builds() != 3 {
		t.Fatalf("builds = %d, want 3", a.Builds())
	}
}

func TestRenderMarksCursorAndDone(t *testing.T) {
	a := NewAdapter()
	a.SetItems([]storage.Task{task(1, "Milk", true, 0), task(2, "Eggs", false, 1)})

	out := a.Render(1)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[0], "[x]") || !strings.Contains(lines[0], "Milk") {
		t.Errorf("done row = %q", lines[0])
	}
	if !strings.Contains(lines[1], ">") || !strings.Contains(lines[1], "[ ] Eggs") {
		t.Errorf("cursor row = %q", lines[1])
	}
	if strings.Contains(a.Render(-1), ">") {
		t.Error("negative cursor must not draw a marker")
	}
}

func TestLinesKeepOneRowPerTask(t *testing.T) {
	a := NewAdapter()
	a.SetItems([]storage.Task{task(1, "first\nsecond", false, 0), task(2, "C", true, 1)})

	lines := a.Lines()
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if strings.Contains(lines[0], "\n") || !strings.Contains(lines[0], "[ ] first second") {
		t.Errorf("multi-line title = %q", lines[0])
	}
	if !strings.Contains(lines[1], "[x]") {
		t.Errorf("done row = %q", lines[1])
	}
	if got := strings.Count(a.Render(-1), "\n"); got != 2 {
		t.Errorf("render has %d lines, want 2", got)
	}
}
