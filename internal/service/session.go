package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/set-night/imagebroker/internal/config"
	"github.com/set-night/imagebroker/internal/domain"
)

// SessionContext is the per-session state shared across tool calls.
type SessionContext struct {
	Key          string
	Transcript   []domain.Turn
	History      *MediaHistory
	DefaultRatio *domain.Ratio
	CreatedAt    time.Time

	transcriptLimit int
}

// AppendTurns adds turns to the transcript. When a transcript limit is set,
// the oldest turns are dropped in whole user/model pairs.
func (c *SessionContext) AppendTurns(turns ...domain.Turn) {
	c.Transcript = append(c.Transcript, turns...)
	if c.transcriptLimit <= 0 || len(c.Transcript) <= c.transcriptLimit {
		return
	}
	drop := len(c.Transcript) - c.transcriptLimit
	if drop%2 != 0 {
		drop++
	}
	drop = min(drop, len(c.Transcript))
	c.Transcript = slices.Clone(c.Transcript[drop:])
}

type sessionEntry struct {
	ctx  *SessionContext
	lock chan struct{}
}

// Registry stores session contexts by key. Contexts are created on first use
// and removed only by Clear. Operations on one key are serialized through
// With; different keys proceed independently.
type Registry struct {
	mu              sync.Mutex
	sessions        map[string]*sessionEntry
	historyCapacity int
	transcriptLimit int
	now             func() time.Time
}

type RegistryOption func(*Registry)

// WithTranscriptLimit caps transcript length in turns. Zero keeps it unbounded.
func WithTranscriptLimit(n int) RegistryOption {
	return func(r *Registry) { r.transcriptLimit = n }
}

func WithHistoryCapacity(n int) RegistryOption {
	return func(r *Registry) { r.historyCapacity = n }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:        make(map[string]*sessionEntry),
		historyCapacity: config.MaxHistory,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeKey maps an empty key to the default session.
func NormalizeKey(key string) string {
	if key == "" {
		return config.DefaultSessionKey
	}
	return key
}

func (r *Registry) entry(key string) *sessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[key]; ok {
		return e
	}
	e := &sessionEntry{
		ctx: &SessionContext{
			Key:             key,
			History:         NewMediaHistory(r.historyCapacity),
			CreatedAt:       r.now(),
			transcriptLimit: r.transcriptLimit,
		},
		lock: make(chan struct{}, 1),
	}
	r.sessions[key] = e
	return e
}

func (r *Registry) current(key string, e *sessionEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[key] == e
}

// With runs fn with exclusive access to the session context for key. If the
// session is cleared while fn waits, it runs against the fresh context.
func (r *Registry) With(ctx context.Context, key string, fn func(*SessionContext) error) error {
	key = NormalizeKey(key)
	for {
		e := r.entry(key)
		select {
		case e.lock <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		if !r.current(key, e) {
			<-e.lock
			continue
		}
		err := fn(e.ctx)
		<-e.lock
		return err
	}
}

// Clear removes the whole context. Absent keys are a no-op.
func (r *Registry) Clear(key string) {
	key = NormalizeKey(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

// Exists reports whether a context is currently registered for key.
func (r *Registry) Exists(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[NormalizeKey(key)]
	return ok
}

// SetDefaultRatio validates ratio and stores it as the session default.
func (r *Registry) SetDefaultRatio(ctx context.Context, key, ratio string) (domain.Ratio, error) {
	parsed, err := domain.ParseRatio(ratio)
	if err != nil {
		return "", err
	}
	err = r.With(ctx, key, func(sc *SessionContext) error {
		sc.DefaultRatio = &parsed
		return nil
	})
	if err != nil {
		return "", err
	}
	return parsed, nil
}

func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
