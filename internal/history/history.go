// Package history keeps a linear undo/redo history of snapshots.
//
// A History value is immutable: every transition returns a new History and leaves the
// receiver untouched, so a value can be read concurrently while an edit is composed.
// Snapshots are stored as given and must not be mutated after being committed.
package history

import (
	"slices"
	"strings"

	"github.com/pipeconf/pipeconf/internal/jsontree"
	"github.com/pipeconf/pipeconf/internal/logger"
)

// History is an undo/redo history of T. The zero value has no current snapshot.
type History[T any] struct {
	current    T
	hasCurrent bool
	undoStack  []T // oldest first
	redoStack  []T // most recently undone last
	maxDepth   int
}

// Option configures a new History.
type Option func(*options)

type options struct {
	maxDepth int
}

// WithMaxDepth bounds the undo stack. The oldest snapshots are dropped first.
// Zero or a negative value means unbounded.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		o.maxDepth = n
	}
}

// New returns a history whose current snapshot is initial.
func New[T any](initial T, opts ...Option) History[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return History[T]{current: initial, hasCurrent: true, maxDepth: max(o.maxDepth, 0)}
}

// Current returns the current snapshot. ok is false for the zero History.
func (h History[T]) Current() (T, bool) {
	return h.current, h.hasCurrent
}

// HasCurrent reports whether a snapshot has been committed.
func (h History[T]) HasCurrent() bool {
	return h.hasCurrent
}

// ChangeTo commits item as the new current snapshot. The previous current snapshot, if
// any, becomes undoable and the redo stack is cleared.
func (h History[T]) ChangeTo(item T) History[T] {
	next := History[T]{current: item, hasCurrent: true, maxDepth: h.maxDepth}
	if h.hasCurrent {
		next.undoStack = push(h.undoStack, h.current)
		if h.maxDepth > 0 && len(next.undoStack) > h.maxDepth {
			dropped := len(next.undoStack) - h.maxDepth
			next.undoStack = slices.Clone(next.undoStack[dropped:])
			GetLogger().Trace("undo history truncated", logger.Int("dropped", dropped))
		}
	} else {
		next.undoStack = h.undoStack
	}
	return next
}

// CanUndo reports whether Undo has an effect.
func (h History[T]) CanUndo() bool {
	return len(h.undoStack) > 0
}

// CanRedo reports whether Redo has an effect.
func (h History[T]) CanRedo() bool {
	return len(h.redoStack) > 0
}

// Undo steps back one snapshot. Without undoable snapshots the receiver is returned.
func (h History[T]) Undo() History[T] {
	if !h.CanUndo() {
		return h
	}
	last := len(h.undoStack) - 1
	return History[T]{
		current:    h.undoStack[last],
		hasCurrent: true,
		undoStack:  slices.Clip(h.undoStack[:last]),
		redoStack:  push(h.redoStack, h.current),
		maxDepth:   h.maxDepth,
	}
}

// Redo re-applies the most recently undone snapshot. Without one the receiver is returned.
func (h History[T]) Redo() History[T] {
	if !h.CanRedo() {
		return h
	}
	last := len(h.redoStack) - 1
	return History[T]{
		current:    h.redoStack[last],
		hasCurrent: true,
		undoStack:  push(h.undoStack, h.current),
		redoStack:  slices.Clip(h.redoStack[:last]),
		maxDepth:   h.maxDepth,
	}
}

// UndoDepth and RedoDepth return the number of steps available in each direction.
func (h History[T]) UndoDepth() int { return len(h.undoStack) }
func (h History[T]) RedoDepth() int { return len(h.redoStack) }

// UndoDiff describes the changes Undo would apply, or "" when Undo is unavailable.
func (h History[T]) UndoDiff() string {
	if !h.CanUndo() {
		return ""
	}
	return Diff(h.current, h.undoStack[len(h.undoStack)-1])
}

// RedoDiff describes the changes Redo would apply, or "" when Redo is unavailable.
func (h History[T]) RedoDiff() string {
	if !h.CanRedo() {
		return ""
	}
	return Diff(h.current, h.redoStack[len(h.redoStack)-1])
}

// push appends v without writing into a backing array shared with s.
func push[T any](s []T, v T) []T {
	return append(slices.Clip(s), v)
}

// Missing is rendered for a leaf present on only one side of a diff.
const Missing = "(none)"

// Diff lists the leaves that differ between from and to as "a > b: old => new" lines,
// leaves of from first, then leaves only present in to. Array elements are compared by index. Values that cannot be encoded as
// JSON produce an empty diff.
func Diff(from, to any) string {
	fromTree, err := jsontree.From(from)
	if err != nil {
		GetLogger().Warn("diff source not encodable", logger.Error(err))
		return ""
	}
	toTree, err := jsontree.From(to)
	if err != nil {
		GetLogger().Warn("diff target not encodable", logger.Error(err))
		return ""
	}

	type pair struct {
		from, to       any
		hasFrom, hasTo bool
	}
	var order []string
	byPath := map[string]*pair{}
	key := func(path []string) string {
		k := strings.Join(path, " > ")
		if _, ok := byPath[k]; !ok {
			byPath[k] = &pair{}
			order = append(order, k)
		}
		return k
	}
	for _, leaf := range jsontree.Leaves(fromTree) {
		p := byPath[key(leaf.Path)]
		p.from, p.hasFrom = leaf.Value, true
	}
	for _, leaf := range jsontree.Leaves(toTree) {
		p := byPath[key(leaf.Path)]
		p.to, p.hasTo = leaf.Value, true
	}

	var lines []string
	for _, k := range order {
		p := byPath[k]
		if p.hasFrom && p.hasTo && jsontree.Equal(p.from, p.to) {
			continue
		}
		old, updated := Missing, Missing
		if p.hasFrom {
			old = jsontree.Render(p.from)
		}
		if p.hasTo {
			updated = jsontree.Render(p.to)
		}
		if k == "" {
			lines = append(lines, old+" => "+updated)
			continue
		}
		lines = append(lines, k+": "+old+" => "+updated)
	}
	return strings.Join(lines, "\n")
}
