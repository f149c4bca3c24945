package memory

import (
	"sync"
	"time"

	"annotator-be/pkg/annotation"

	"github.com/patrickmn/go-cache"
)

// SessionEntry is one annotation session. Mu guards Cache; hold it for the
// whole of any read-modify-write on the cache.
type SessionEntry struct {
	Mu    sync.Mutex
	ID    string
	Email string
	Cache *annotation.SessionCandidateCache
}

// CacheFactory builds the candidate cache for a new session.
type CacheFactory func(email string) *annotation.SessionCandidateCache

// SessionRepository maps session ids to their entries. Entries expire
// after ttl without access; each access slides the expiry.
type SessionRepository struct {
	cache    *cache.Cache
	revoked  *cache.Cache
	ttl      time.Duration
	newCache CacheFactory
}

func NewSessionRepository(ttl, purgeInterval time.Duration, newCache CacheFactory) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if purgeInterval <= 0 {
		purgeInterval = 10 * time.Minute
	}
	return &SessionRepository{
		cache:    cache.New(ttl, purgeInterval),
		revoked:  cache.New(ttl, purgeInterval),
		ttl:      ttl,
		newCache: newCache,
	}
}

// GetOrCreate returns the entry for sessionID, creating it for email when
// absent. Concurrent callers for the same id always get the same entry.
func (r *SessionRepository) GetOrCreate(sessionID, email string) *SessionEntry {
	if entry, ok := r.Get(sessionID); ok {
		return entry
	}

	fresh := &SessionEntry{ID: sessionID, Email: email, Cache: r.newCache(email)}
	if err := r.cache.Add(sessionID, fresh, cache.DefaultExpiration); err == nil {
		return fresh
	}
	// Lost the race: someone else added it first.
	if entry, ok := r.Get(sessionID); ok {
		return entry
	}
	r.cache.Set(sessionID, fresh, cache.DefaultExpiration)
	return fresh
}

// Get returns the entry and refreshes its expiry.
func (r *SessionRepository) Get(sessionID string) (*SessionEntry, bool) {
	x, found := r.cache.Get(sessionID)
	if !found {
		return nil, false
	}
	entry := x.(*SessionEntry)
	_ = r.cache.Replace(sessionID, entry, cache.DefaultExpiration)
	return entry, true
}

// WithSession runs fn while holding the session's lock. Sessions never
// share a lock with each other.
func (r *SessionRepository) WithSession(sessionID, email string, fn func(*SessionEntry) error) error {
	entry := r.GetOrCreate(sessionID, email)
	entry.Mu.Lock()
	defer entry.Mu.Unlock()
	return fn(entry)
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

// Revoke drops the session and refuses its id for the given period, which
// should cover the lifetime of any token still carrying it.
func (r *SessionRepository) Revoke(sessionID string, d time.Duration) {
	if d <= 0 {
		d = r.ttl
	}
	r.revoked.Set(sessionID, struct{}{}, d)
	r.cache.Delete(sessionID)
}

func (r *SessionRepository) IsRevoked(sessionID string) bool {
	_, found := r.revoked.Get(sessionID)
	return found
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
