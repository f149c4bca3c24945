package annotation

import (
	"context"
	"fmt"

	"annotator-be/pkg/cursor"
)

// SessionCandidateCache buffers the candidates one session has fetched and
// tracks where the session currently is in that buffer.
//
// The position always satisfies 0 <= position <= max(len-1, 0). The cache
// is not safe for concurrent use: callers hold the session lock for the
// whole of every operation, including the remote calls made by Advance.
type SessionCandidateCache struct {
	annotator  string
	sampler    Sampler
	candidates []*Candidate
	position   *cursor.Position
	ledger     *OffsetLedger
}

func NewSessionCandidateCache(annotator string, sampler Sampler) *SessionCandidateCache {
	pos, _ := cursor.New(0)
	return &SessionCandidateCache{
		annotator: annotator,
		sampler:   sampler,
		position:  pos,
		ledger:    NewOffsetLedger(),
	}
}

func (c *SessionCandidateCache) Annotator() string {
	return c.annotator
}

// Current returns the candidate under the cursor, or false when the
// buffer is empty.
func (c *SessionCandidateCache) Current() (*Candidate, bool) {
	p := c.position.Get()
	if p >= len(c.candidates) {
		return nil, false
	}
	return c.candidates[p], true
}

// Advance moves one candidate forward. Inside the buffer this is a replay;
// at the tail a new candidate is sampled and appended. On sampling failure
// neither the buffer nor the position change.
func (c *SessionCandidateCache) Advance(ctx context.Context) (*Candidate, error) {
	n := len(c.candidates)
	if n > 0 && c.position.Get() < n-1 {
		return c.candidates[c.position.PreIncrement()], nil
	}

	next, err := c.sampler.Sample(ctx, c.annotator, c.ledger)
	if err != nil {
		return nil, err
	}
	c.candidates = append(c.candidates, next)
	// The first candidate of an empty buffer is shown at position 0.
	if n > 0 {
		c.position.PreIncrement()
	}
	return next, nil
}

// Retreat replays the previous candidate. At position 0 it returns
// ErrNoPriorCandidate and leaves the cursor where it is.
func (c *SessionCandidateCache) Retreat() (*Candidate, error) {
	if c.position.Get() == 0 || len(c.candidates) == 0 {
		return nil, ErrNoPriorCandidate
	}
	return c.candidates[c.position.PreDecrement()], nil
}

// DiscardTail drops the most recently appended candidate. expected is the
// caller's count of pending triples and must be zero.
func (c *SessionCandidateCache) DiscardTail(expected int) error {
	if expected != 0 {
		return fmt.Errorf("%w: expected 0 pending triples, client reported %d", ErrPreconditionFailed, expected)
	}
	if len(c.candidates) == 0 {
		return ErrEmptyBuffer
	}
	last := len(c.candidates) - 1
	c.candidates[last] = nil
	c.candidates = c.candidates[:last]
	c.position.PostDecrement()
	return nil
}

// ResetWith replaces the buffer with seed alone and moves the cursor to it.
// The ledger is kept so the seed's own offset stays recorded.
func (c *SessionCandidateCache) ResetWith(seed *Candidate) {
	c.candidates = []*Candidate{seed}
	c.position.Reset()
}

// Clear empties the buffer and forgets every presented offset.
func (c *SessionCandidateCache) Clear() {
	c.candidates = nil
	c.position.Reset()
	c.ledger.Reset()
}

// Rotate clears the cache and primes it with one freshly sampled
// candidate. When sampling fails the cache is left empty.
func (c *SessionCandidateCache) Rotate(ctx context.Context) error {
	c.Clear()
	seed, err := c.sampler.Sample(ctx, c.annotator, c.ledger)
	if err != nil {
		return err
	}
	c.ResetWith(seed)
	return nil
}

func (c *SessionCandidateCache) At(i int) (*Candidate, error) {
	if i < 0 || i >= len(c.candidates) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrCandidateIndexOutOfRange, i, len(c.candidates))
	}
	return c.candidates[i], nil
}

func (c *SessionCandidateCache) Len() int {
	return len(c.candidates)
}

func (c *SessionCandidateCache) Position() int {
	return c.position.Get()
}

// Candidates returns a copy of the buffer in fetch order.
func (c *SessionCandidateCache) Candidates() []*Candidate {
	out := make([]*Candidate, len(c.candidates))
	copy(out, c.candidates)
	return out
}

func (c *SessionCandidateCache) Ledger() *OffsetLedger {
	return c.ledger
}
