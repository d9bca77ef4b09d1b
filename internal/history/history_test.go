package history

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUndoRedoLifecycle(t *testing.T) {
	t.Parallel()

	h := New(0)
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
	assert.Empty(t, h.UndoDiff())
	assert.Empty(t, h.RedoDiff())

	h = h.ChangeTo(1)
	cur, ok := h.Current()
	require.True(t, ok)
	assert.Equal(t, 1, cur)
	assert.True(t, h.CanUndo())
	assert.Equal(t, "1 => 0", h.UndoDiff())

	undone := h.Undo()
	cur, _ = undone.Current()
	assert.Equal(t, 0, cur)
	assert.True(t, undone.CanRedo())
	assert.False(t, undone.CanUndo())
	assert.Equal(t, "0 => 1", undone.RedoDiff())
	assert.Empty(t, undone.UndoDiff())

	redone := undone.Redo()
	cur, _ = redone.Current()
	assert.Equal(t, 1, cur)
	assert.False(t, redone.CanRedo())

	cur, _ = h.Current()
	assert.Equal(t, 1, cur, "transitions do not modify the receiver")
}

func TestChangeToClearsRedo(t *testing.T) {
	t.Parallel()

	h := New("a").ChangeTo("b").ChangeTo("c").Undo().Undo()
	require.Equal(t, 2, h.RedoDepth())

	h = h.ChangeTo("d")
	assert.False(t, h.CanRedo())
	assert.Equal(t, 1, h.UndoDepth())

	h = h.Undo()
	cur, _ := h.Current()
	assert.Equal(t, "a", cur)
}

func TestZeroHistory(t *testing.T) {
	t.Parallel()

	var h History[string]
	_, ok := h.Current()
	assert.False(t, ok)

	h = h.ChangeTo("first")
	assert.True(t, h.HasCurrent())
	assert.False(t, h.CanUndo(), "the first snapshot is not pushed onto the undo stack")

	assert.Equal(t, h, h.Undo())
	assert.Equal(t, h, h.Redo())
}

func TestBranchesDoNotShareStacks(t *testing.T) {
	t.Parallel()

	base := New(0).ChangeTo(1).ChangeTo(2).Undo()

	left := base.ChangeTo(10)
	right := base.ChangeTo(20)

	l, _ := left.Undo().Current()
	r, _ := right.Undo().Current()
	assert.Equal(t, 1, l)
	assert.Equal(t, 1, r)

	leftTop, _ := left.Current()
	rightTop, _ := right.Current()
	assert.Equal(t, 10, leftTop)
	assert.Equal(t, 20, rightTop)

	redo, _ := base.Redo().Current()
	assert.Equal(t, 2, redo)
}

func TestMaxDepth(t *testing.T) {
	t.Parallel()

	h := New(0, WithMaxDepth(2))
	for i := 1; i <= 5; i++ {
		h = h.ChangeTo(i)
	}
	assert.Equal(t, 2, h.UndoDepth())

	oldest, _ := h.Undo().Undo().Current()
	assert.Equal(t, 3, oldest)
}

func TestDiff(t *testing.T) {
	t.Parallel()

	before := map[string]any{
		"filters": map[string]any{
			"lowpass": map[string]any{"type": "Biquad", "parameters": map[string]any{"freq": 1000.0}},
		},
		"pipeline": []any{
			map[string]any{"type": "Filter", "names": []any{"lowpass", "gain"}},
		},
	}
	after := map[string]any{
		"filters": map[string]any{
			"lowpass": map[string]any{"type": "Biquad", "parameters": map[string]any{"freq": 500.0}},
		},
		"pipeline": []any{
			map[string]any{"type": "Filter", "names": []any{"lowpass"}},
		},
		"title": "new",
	}

	assert.Equal(t,
		"filters > lowpass > parameters > freq: 1000 => 500\n"+
			"pipeline > 0 > names > 1: gain => (none)\n"+
			"title: (none) => new",
		Diff(before, after))
	assert.Empty(t, Diff(before, before))
}

func TestDiffUnencodable(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Diff(make(chan int), 1))
}

func TestConcurrentReads(t *testing.T) {
	t.Parallel()

	h := New(map[string]any{"v": 0.0}).ChangeTo(map[string]any{"v": 1.0})

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			assert.Equal(t, "v: 1 => 0", h.UndoDiff())
			_ = h.Undo().ChangeTo(map[string]any{"v": 2.0})
		})
	}
	wg.Wait()
}
