package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/history"
	"github.com/pipeconf/pipeconf/internal/importer"
	"github.com/pipeconf/pipeconf/internal/logger"
	"github.com/pipeconf/pipeconf/internal/validation"
)

// Session is one logical editing session: a config history, the last validation result
// and an optional import in progress. All access goes through the session mutex.
type Session struct {
	ID      string
	Created time.Time

	mu        sync.Mutex
	history   history.History[*dspconfig.Config]
	errors    validation.Errors
	validated *dspconfig.Config // config the errors were computed for
	imp       *importer.Import
	filename  string // backend file the config was loaded from
}

// SessionState summarizes the undo/redo position of a session.
type SessionState struct {
	CanUndo   bool   `json:"can_undo"`
	CanRedo   bool   `json:"can_redo"`
	UndoDepth int    `json:"undo_depth"`
	RedoDepth int    `json:"redo_depth"`
	UndoDiff  string `json:"undo_diff"`
	RedoDiff  string `json:"redo_diff"`
}

// Config returns the current config. The returned value is shared with the history and
// must not be modified.
func (s *Session) Config() *dspconfig.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Session) currentLocked() *dspconfig.Config {
	cfg, _ := s.history.Current()
	return cfg
}

// Change applies fn to a copy of the current config and records the result. When fn
// fails the history is left untouched.
func (s *Session) Change(fn func(*dspconfig.Config) error) (*dspconfig.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.currentLocked().Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.history = s.history.ChangeTo(next)
	return next, nil
}

// Replace records cfg as the new current config.
func (s *Session) Replace(cfg *dspconfig.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.history.ChangeTo(cfg.Clone())
}

// Undo steps back. It reports false when there is nothing to undo.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.history.CanUndo() {
		return false
	}
	s.history = s.history.Undo()
	return true
}

// Redo steps forward. It reports false when there is nothing to redo.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.history.CanRedo() {
		return false
	}
	s.history = s.history.Redo()
	return true
}

// State returns the undo/redo summary.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		CanUndo:   s.history.CanUndo(),
		CanRedo:   s.history.CanRedo(),
		UndoDepth: s.history.UndoDepth(),
		RedoDepth: s.history.RedoDepth(),
		UndoDiff:  s.history.UndoDiff(),
		RedoDiff:  s.history.RedoDiff(),
	}
}

// SetErrors stores a validation result for cfg.
func (s *Session) SetErrors(cfg *dspconfig.Config, errs validation.Errors) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = errs
	s.validated = cfg
}

// Errors returns the stored validation result and whether it was computed for an older
// config than the current one.
func (s *Session) Errors() (errs validation.Errors, stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors, s.validated != nil && s.validated != s.currentLocked()
}

// Filename returns the backend file the session config was loaded from, if any.
func (s *Session) Filename() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filename
}

// SetFilename records the backend file the session config corresponds to.
func (s *Session) SetFilename(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filename = name
}

// WithImport runs fn with the import in progress. It fails with a not-found error when
// there is none.
func (s *Session) WithImport(fn func(im *importer.Import, current *dspconfig.Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.imp == nil {
		return errors.Newf("no import in progress").
			Category(errors.CategoryNotFound).
			Build()
	}
	return fn(s.imp, s.currentLocked())
}

// StartImport replaces any import in progress.
func (s *Session) StartImport(im *importer.Import) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imp = im
}

// EndImport discards the import in progress. It reports false if there was none.
func (s *Session) EndImport() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.imp != nil
	s.imp = nil
	return had
}

// ApplyImport merges the import into the current config, records it and ends the import.
func (s *Session) ApplyImport() (*dspconfig.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.imp == nil {
		return nil, errors.Newf("no import in progress").
			Category(errors.CategoryNotFound).
			Build()
	}
	merged, err := s.imp.ApplyTo(s.currentLocked())
	if err != nil {
		return nil, err
	}
	s.history = s.history.ChangeTo(merged)
	s.imp = nil
	return merged, nil
}

// SessionStoreConfig configures a SessionStore.
type SessionStoreConfig struct {
	TTL             time.Duration // idle time before a session expires
	CleanupInterval time.Duration // purge interval, 0 disables the purge loop
	MaxHistory      int           // undo depth per session, 0 for unbounded
	OnCountChange   func(count int)
}

// SessionStore keeps sessions in memory and expires idle ones.
type SessionStore struct {
	cache      *cache.Cache
	maxHistory int
	onCount    func(int)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionStore creates the store and starts its purge loop.
func NewSessionStore(cfg SessionStoreConfig) *SessionStore {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}

	// The cache's own janitor cannot be stopped; the purge loop below replaces it.
	st := &SessionStore{
		cache:      cache.New(ttl, 0),
		maxHistory: cfg.MaxHistory,
		onCount:    cfg.OnCountChange,
	}
	st.cache.OnEvicted(func(id string, _ any) {
		GetLogger().Debug("session removed", logger.String("session_id", id))
		st.notifyCount()
	})

	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel
	if cfg.CleanupInterval > 0 {
		st.wg.Go(func() {
			ticker := time.NewTicker(cfg.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					st.cache.DeleteExpired()
				}
			}
		})
	}
	return st
}

// Create starts a session whose history begins at initial.
func (st *SessionStore) Create(initial *dspconfig.Config) *Session {
	var opts []history.Option
	if st.maxHistory > 0 {
		opts = append(opts, history.WithMaxDepth(st.maxHistory))
	}

	s := &Session{
		ID:      uuid.NewString(),
		Created: time.Now(),
		history: history.New(initial.Clone(), opts...),
	}
	st.cache.Set(s.ID, s, cache.DefaultExpiration)
	st.notifyCount()

	GetLogger().Info("session created", logger.String("session_id", s.ID))
	return s
}

// Get returns a live session and extends its expiry.
func (st *SessionStore) Get(id string) (*Session, bool) {
	v, ok := st.cache.Get(id)
	if !ok {
		return nil, false
	}
	st.cache.Set(id, v, cache.DefaultExpiration)
	return v.(*Session), true
}

// Delete removes a session. It reports false if the session did not exist.
func (st *SessionStore) Delete(id string) bool {
	if _, ok := st.cache.Get(id); !ok {
		return false
	}
	st.cache.Delete(id)
	return true
}

// Count returns the number of stored sessions, including expired ones not yet purged.
func (st *SessionStore) Count() int {
	return st.cache.ItemCount()
}

// Close stops the purge loop and drops all sessions.
func (st *SessionStore) Close() {
	st.cancel()
	st.wg.Wait()
	st.cache.Flush()
	st.notifyCount()
}

func (st *SessionStore) notifyCount() {
	if st.onCount != nil {
		st.onCount(st.cache.ItemCount())
	}
}
