// Package diff computes the row operations that turn one rendered list
// into another.
package diff

import (
	"fmt"
	"slices"
	"sort"
)

type Kind int

const (
	Insert Kind = iota
	Remove
	Move
	Change
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Remove:
		return "remove"
	case Move:
		return "move"
	case Change:
		return "change"
	default:
		return "unknown"
	}
}

// Op is one row operation. Insert, Remove and Move indices refer to the
// list as left by the previous op; Change indices refer to the final list.
type Op[T any] struct {
	Kind  Kind
	Index int
	To    int // Move only
	Item  T   // Insert and Change only
}

func (o Op[T]) String() string {
	if o.Kind == Move {
		return fmt.Sprintf("move(%d,%d)", o.Index, o.To)
	}
	return fmt.Sprintf("%s(%d)", o.Kind, o.Index)
}

type Script[T any] []Op[T]

// Counts returns how many ops of each kind the script holds.
func (s Script[T]) Counts() map[Kind]int {
	counts := make(map[Kind]int, 4)
	for _, op := range s {
		counts[op.Kind]++
	}
	return counts
}

// Compute returns the script turning old into new. Rows are matched by
// key, which must be unique within each list; same reports whether two
// rows with the same key render identically.
//
// Removed rows are removed once, added rows inserted once, the longest
// run of kept rows that are already in order never moves, and every
// other kept row moves exactly once. Change is emitted only for kept
// rows whose content differs.
func Compute[T any, K comparable](old, new []T, key func(T) K, same func(a, b T) bool) Script[T] {
	newIndex := make(map[K]int, len(new))
	for i, item := range new {
		newIndex[key(item)] = i
	}
	oldIndex := make(map[K]int, len(old))
	for i, item := range old {
		oldIndex[key(item)] = i
	}

	var script Script[T]
	for i := len(old) - 1; i >= 0; i-- {
		if _, ok := newIndex[key(old[i])]; !ok {
			script = append(script, Op[T]{Kind: Remove, Index: i})
		}
	}

	working := make([]K, 0, len(old))
	order := make([]int, 0, len(old))
	for _, item := range old {
		k := key(item)
		if j, ok := newIndex[k]; ok {
			working = append(working, k)
			order = append(order, j)
		}
	}
	stable := make(map[K]bool, len(working))
	for i, in := range longestIncreasing(order) {
		if in {
			stable[working[i]] = true
		}
	}

	// Every row that is not stable is placed right after its predecessor
	// in new. Stable rows keep their relative order, so once all others
	// are placed the list equals new.
	for t, item := range new {
		k := key(item)
		if stable[k] {
			continue
		}
		target := 0
		if t > 0 {
			target = slices.Index(working, key(new[t-1])) + 1
		}
		if _, ok := oldIndex[k]; !ok {
			script = append(script, Op[T]{Kind: Insert, Index: target, Item: item})
			working = slices.Insert(working, target, k)
			continue
		}
		from := slices.Index(working, k)
		to := target
		if from < target {
			to--
		}
		if from == to {
			continue
		}
		script = append(script, Op[T]{Kind: Move, Index: from, To: to})
		working = slices.Delete(working, from, from+1)
		working = slices.Insert(working, to, k)
	}

	for t, item := range new {
		if i, ok := oldIndex[key(item)]; ok && !same(old[i], item) {
			script = append(script, Op[T]{Kind: Change, Index: t, Item: item})
		}
	}
	return script
}

// Apply replays script on a copy of state.
func Apply[T any](state []T, script Script[T]) []T {
	out := slices.Clone(state)
	for _, op := range script {
		switch op.Kind {
		case Insert:
			out = slices.Insert(out, op.Index, op.Item)
		case Remove:
			out = slices.Delete(out, op.Index, op.Index+1)
		case Move:
			item := out[op.Index]
			out = slices.Delete(out, op.Index, op.Index+1)
			out = slices.Insert(out, op.To, item)
		case Change:
			out[op.Index] = op.Item
		}
	}
	return out
}

// longestIncreasing marks the members of one longest strictly increasing
// subsequence of seq.
func longestIncreasing(seq []int) []bool {
	in := make([]bool, len(seq))
	if len(seq) == 0 {
		return in
	}
	tails := make([]int, 0, len(seq))
	prev := make([]int, len(seq))
	for i, v := range seq {
		j := sort.Search(len(tails), func(n int) bool { return seq[tails[n]] >= v })
		prev[i] = -1
		if j > 0 {
			prev[i] = tails[j-1]
		}
		if j == len(tails) {
			tails = append(tails, i)
		} else {
			tails[j] = i
		}
	}
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		in[i] = true
	}
	return in
}
