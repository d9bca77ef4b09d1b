package api

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/importer"
	"github.com/pipeconf/pipeconf/internal/validation"
)

func newTestStore(t *testing.T, cfg SessionStoreConfig) *SessionStore {
	t.Helper()
	st := NewSessionStore(cfg)
	t.Cleanup(st.Close)
	return st
}

func TestSessionStoreCloseStopsPurgeLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	st := NewSessionStore(SessionStoreConfig{TTL: time.Minute, CleanupInterval: time.Millisecond})
	st.Create(dspconfig.DefaultConfig())
	time.Sleep(5 * time.Millisecond)
	st.Close()

	assert.Zero(t, st.Count())
}

func TestSessionStoreExpiry(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var counts []int
	st := newTestStore(t, SessionStoreConfig{
		TTL:             20 * time.Millisecond,
		CleanupInterval: 5 * time.Millisecond,
		OnCountChange: func(n int) {
			mu.Lock()
			defer mu.Unlock()
			counts = append(counts, n)
		},
	})

	s := st.Create(dspconfig.DefaultConfig())
	_, ok := st.Get(s.ID)
	require.True(t, ok)

	// Get extends the expiry, so only the count is polled.
	assert.Eventually(t, func() bool {
		return st.Count() == 0
	}, time.Second, 5*time.Millisecond)
	_, ok = st.Get(s.ID)
	assert.False(t, ok)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, counts)
	assert.Equal(t, 1, counts[0])
	assert.Equal(t, 0, counts[len(counts)-1])
}

func TestSessionStoreDelete(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, SessionStoreConfig{TTL: time.Minute})

	s := st.Create(dspconfig.DefaultConfig())
	assert.True(t, st.Delete(s.ID))
	assert.False(t, st.Delete(s.ID))
	_, ok := st.Get(s.ID)
	assert.False(t, ok)
}

func TestSessionChangeAndHistory(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, SessionStoreConfig{TTL: time.Minute, MaxHistory: 2})
	s := st.Create(dspconfig.DefaultConfig())

	// A failed change leaves the history untouched.
	_, err := s.Change(func(cfg *dspconfig.Config) error {
		cfg.Filters["dropped"] = dspconfig.DefaultFilter()
		return errors.ValidationError("rejected")
	})
	require.Error(t, err)
	assert.Empty(t, s.Config().Filters)
	assert.False(t, s.State().CanUndo)

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Change(func(cfg *dspconfig.Config) error {
			return cfg.AddFilter(name, dspconfig.DefaultFilter())
		})
		require.NoError(t, err)
	}

	state := s.State()
	assert.Equal(t, 2, state.UndoDepth, "history depth is bounded")
	assert.NotEmpty(t, state.UndoDiff)

	require.True(t, s.Undo())
	require.True(t, s.Undo())
	assert.False(t, s.Undo())
	assert.Len(t, s.Config().Filters, 1)

	require.True(t, s.Redo())
	assert.Len(t, s.Config().Filters, 2)
}

func TestSessionErrorsStaleness(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, SessionStoreConfig{TTL: time.Minute})
	s := st.Create(dspconfig.DefaultConfig())

	errs := validation.NewErrors(validation.Entry{Path: validation.NewPath("devices"), Message: "bad"})
	s.SetErrors(s.Config(), errs)

	got, stale := s.Errors()
	assert.Equal(t, 1, got.Len())
	assert.False(t, stale)

	_, err := s.Change(func(cfg *dspconfig.Config) error {
		return cfg.AddMixer("m", dspconfig.DefaultMixer())
	})
	require.NoError(t, err)
	_, stale = s.Errors()
	assert.True(t, stale)

	require.True(t, s.Undo())
	_, stale = s.Errors()
	assert.False(t, stale, "undo returns to the validated config")
}

func TestSessionImport(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, SessionStoreConfig{TTL: time.Minute})
	s := st.Create(dspconfig.DefaultConfig())

	_, err := s.ApplyImport()
	assert.True(t, errors.IsNotFound(err))

	s.StartImport(importer.New(map[string]any{
		"filters": map[string]any{"f": map[string]any{"type": "Gain", "parameters": map[string]any{"gain": 0.0}}},
	}))
	require.NoError(t, s.WithImport(func(im *importer.Import, _ *dspconfig.Config) error {
		return im.ToggleTopLevel("filters", importer.ActionImport)
	}))

	cfg, err := s.ApplyImport()
	require.NoError(t, err)
	assert.Contains(t, cfg.Filters, "f")
	assert.False(t, s.EndImport(), "apply ends the import")
	assert.True(t, s.State().CanUndo)
}
