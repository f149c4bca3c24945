package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"annotator-be/pkg/annotation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSampler struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSampler) Sample(_ context.Context, annotator string, ledger *annotation.OffsetLedger) (*annotation.Candidate, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	// Widen the window between "need a candidate" and "append".
	time.Sleep(time.Millisecond)
	ledger.Record(n)
	return &annotation.Candidate{Subject: annotator, Offset: n}, nil
}

func newTestRepo(sampler annotation.Sampler) *SessionRepository {
	return NewSessionRepository(time.Minute, time.Minute, func(email string) *annotation.SessionCandidateCache {
		return annotation.NewSessionCandidateCache(email, sampler)
	})
}

func TestGetOrCreateReturnsSameEntry(t *testing.T) {
	repo := newTestRepo(&countingSampler{})

	var wg sync.WaitGroup
	entries := make([]*SessionEntry, 32)
	for i := range entries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entries[i] = repo.GetOrCreate("s1", "ada@example.org")
		}(i)
	}
	wg.Wait()

	for _, e := range entries {
		assert.Same(t, entries[0], e)
	}
	assert.Equal(t, 1, repo.Count())
}

func TestConcurrentAdvanceOnOneSession(t *testing.T) {
	sampler := &countingSampler{}
	repo := newTestRepo(sampler)

	const requests = 20
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.WithSession("s1", "ada@example.org", func(e *SessionEntry) error {
				_, err := e.Cache.Advance(context.Background())
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entry, ok := repo.Get("s1")
	require.True(t, ok)
	assert.Equal(t, requests, entry.Cache.Len())
	assert.Equal(t, requests-1, entry.Cache.Position())
	assert.Equal(t, requests, sampler.calls)
	assert.Equal(t, requests, entry.Cache.Ledger().Len())
}

func TestSessionsAreIndependent(t *testing.T) {
	repo := newTestRepo(&countingSampler{})

	block := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = repo.WithSession("slow", "a@example.org", func(*SessionEntry) error {
			close(held)
			<-block
			return nil
		})
	}()
	<-held

	done := make(chan struct{})
	go func() {
		_ = repo.WithSession("other", "b@example.org", func(*SessionEntry) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unrelated session blocked behind another session's lock")
	}
	close(block)
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(&countingSampler{})
	repo.GetOrCreate("s1", "ada@example.org")
	repo.Delete("s1")

	_, ok := repo.Get("s1")
	assert.False(t, ok)
}

func TestRevoke(t *testing.T) {
	repo := newTestRepo(&countingSampler{})
	repo.GetOrCreate("s1", "ada@example.org")
	repo.Revoke("s1", time.Minute)

	_, ok := repo.Get("s1")
	assert.False(t, ok)
	assert.True(t, repo.IsRevoked("s1"))
	assert.False(t, repo.IsRevoked("s2"))
}

func TestRevokeExpires(t *testing.T) {
	repo := newTestRepo(&countingSampler{})
	repo.Revoke("s1", 20*time.Millisecond)
	require.True(t, repo.IsRevoked("s1"))

	assert.Eventually(t, func() bool { return !repo.IsRevoked("s1") }, time.Second, 10*time.Millisecond)
}
