package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/imagebroker/internal/domain"
)

// getOrCreate exposes a context outside With for single-goroutine tests.
func (r *Registry) getOrCreate(key string) *SessionContext {
	return r.entry(NormalizeKey(key)).ctx
}

func TestRegistry_CreatesLazily(t *testing.T) {
	r := NewRegistry()

	sc := r.getOrCreate("")
	assert.Equal(t, "default", sc.Key)
	assert.Empty(t, sc.Transcript)
	assert.Equal(t, 0, sc.History.Len())
	assert.Equal(t, 10, sc.History.Capacity())
	assert.Nil(t, sc.DefaultRatio)

	assert.Same(t, sc, r.getOrCreate("default"))
	assert.NotSame(t, sc, r.getOrCreate("other"))
	assert.Equal(t, []string{"default", "other"}, r.Keys())
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	_, err := r.SetDefaultRatio(ctx, "s1", "16:9")
	require.NoError(t, err)
	r.getOrCreate("s1").History.Append(record(1))

	r.Clear("s1")
	assert.False(t, r.Exists("s1"))

	sc := r.getOrCreate("s1")
	assert.Nil(t, sc.DefaultRatio)
	assert.Equal(t, 0, sc.History.Len())

	r.Clear("never-created")
	assert.False(t, r.Exists("never-created"))
}

func TestRegistry_SetDefaultRatio(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	got, err := r.SetDefaultRatio(ctx, "a", "4:3")
	require.NoError(t, err)
	assert.Equal(t, domain.Ratio4x3, got)
	require.NotNil(t, r.getOrCreate("a").DefaultRatio)
	assert.Equal(t, domain.Ratio4x3, *r.getOrCreate("a").DefaultRatio)

	_, err = r.SetDefaultRatio(ctx, "a", "7:5")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, domain.Ratio4x3, *r.getOrCreate("a").DefaultRatio)

	assert.Nil(t, r.getOrCreate("b").DefaultRatio)
}

func TestRegistry_WithSerializesSameKey(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	var active, peak int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.With(ctx, "shared", func(sc *SessionContext) error {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				sc.History.Append(record(int(n)))
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak)
	assert.Equal(t, 8, r.getOrCreate("shared").History.Len())
}

func TestRegistry_WithHonorsContext(t *testing.T) {
	r := NewRegistry()

	hold := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = r.With(context.Background(), "k", func(*SessionContext) error {
			close(entered)
			<-hold
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.With(ctx, "k", func(*SessionContext) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(hold)
}

func TestRegistry_WithAfterClearUsesFreshContext(t *testing.T) {
	r := NewRegistry()
	old := r.getOrCreate("k")

	hold := make(chan struct{})
	entered := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.With(context.Background(), "k", func(*SessionContext) error {
			close(entered)
			<-hold
			return nil
		})
	}()
	<-entered

	var seen *SessionContext
	waiter := make(chan error, 1)
	go func() {
		waiter <- r.With(context.Background(), "k", func(sc *SessionContext) error {
			seen = sc
			return nil
		})
	}()

	r.Clear("k")
	close(hold)
	<-done
	require.NoError(t, <-waiter)
	assert.NotSame(t, old, seen)
}

func TestSessionContext_TranscriptLimit(t *testing.T) {
	r := NewRegistry(WithTranscriptLimit(4))
	sc := r.getOrCreate("t")

	for i := range 3 {
		sc.AppendTurns(
			domain.Turn{Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart(string(rune('a' + i)))}},
			domain.Turn{Role: domain.RoleModel, Parts: []domain.Part{domain.TextPart("ok")}},
		)
	}

	require.Len(t, sc.Transcript, 4)
	assert.Equal(t, domain.RoleUser, sc.Transcript[0].Role)
	assert.Equal(t, "b", sc.Transcript[0].Parts[0].Text)
}

func TestSessionContext_UnboundedTranscript(t *testing.T) {
	sc := NewRegistry().getOrCreate("t")
	for range 30 {
		sc.AppendTurns(domain.Turn{Role: domain.RoleUser}, domain.Turn{Role: domain.RoleModel})
	}
	assert.Len(t, sc.Transcript, 60)
}

func TestRegistry_HistoryCapacityOption(t *testing.T) {
	r := NewRegistry(WithHistoryCapacity(2))
	assert.Equal(t, 2, r.getOrCreate("x").History.Capacity())
}
