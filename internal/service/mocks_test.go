package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"annotator-be/internal/entity"
	"annotator-be/internal/repository/contract"
	"annotator-be/internal/repository/specification"
	"annotator-be/internal/repository/unitofwork"
	"annotator-be/pkg/events"

	"github.com/google/uuid"
	"github.com/knakk/rdf"
	"github.com/stretchr/testify/mock"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *entity.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error) {
	args := m.Called(ctx, specs)
	u, _ := args.Get(0).(*entity.User)
	return u, args.Error(1)
}

func (m *mockUserRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	args := m.Called(ctx, specs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type mockSubmissionRepository struct {
	mock.Mock
}

func (m *mockSubmissionRepository) Create(ctx context.Context, s *entity.AnnotationSubmission) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSubmissionRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AnnotationSubmission, error) {
	args := m.Called(ctx, specs)
	rows, _ := args.Get(0).([]*entity.AnnotationSubmission)
	return rows, args.Error(1)
}

func (m *mockSubmissionRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	args := m.Called(ctx, specs)
	return args.Get(0).(int64), args.Error(1)
}

// fakeUnitOfWork hands out the same repositories for every unit of work.
type fakeUnitOfWork struct {
	users       *mockUserRepository
	submissions *mockSubmissionRepository
	committed   int
}

func (u *fakeUnitOfWork) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return u }
func (u *fakeUnitOfWork) Begin(ctx context.Context) error { return nil }
func (u *fakeUnitOfWork) Commit() error {
	u.committed++
	return nil
}
func (u *fakeUnitOfWork) Rollback() error { return nil }
func (u *fakeUnitOfWork) UserRepository() contract.UserRepository { return u.users }
func (u *fakeUnitOfWork) AnnotationSubmissionRepository() contract.AnnotationSubmissionRepository {
	return u.submissions
}

type recordingEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingEventPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingEventPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type recordingPublisherService struct {
	mu       sync.Mutex
	payloads []interface{}
}

func (p *recordingPublisherService) Publish(ctx context.Context, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

type fakeSessions struct {
	revoked []string
	periods []time.Duration
}

func (f *fakeSessions) Revoke(id string, d time.Duration) {
	f.revoked = append(f.revoked, id)
	f.periods = append(f.periods, d)
}

type fixedCounts struct {
	n           int
	invalidated []string
}

func (f *fixedCounts) Count(ctx context.Context, email string) int { return f.n }
func (f *fixedCounts) Invalidate(ctx context.Context, email string) {
	f.invalidated = append(f.invalidated, email)
}

// cachingCounts keeps the first count it sees per email until invalidated.
type cachingCounts struct {
	mu     sync.Mutex
	source func() int
	cached map[string]int
}

func (c *cachingCounts) Count(ctx context.Context, email string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.cached[email]; ok {
		return n
	}
	if c.cached == nil {
		c.cached = map[string]int{}
	}
	n := c.source()
	c.cached[email] = n
	return n
}

func (c *cachingCounts) Invalidate(ctx context.Context, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cached, email)
}

// tripleStore serves the built-in query bank: every count query returns
// size and construct queries describe http://example.org/r<offset>.
type tripleStore struct {
	mu      sync.Mutex
	size    int
	failing bool
	updates []string
	counts  int
}

func (s *tripleStore) Count(ctx context.Context, query string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts++
	if s.failing {
		return 0, fmt.Errorf("store down")
	}
	return s.size, nil
}

func (s *tripleStore) Construct(ctx context.Context, query string) ([]rdf.Triple, error) {
	idx := strings.Index(query, "OFFSET ")
	fields := strings.Fields(query[idx+len("OFFSET "):])
	offset, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, err
	}
	subj, _ := rdf.NewIRI(fmt.Sprintf("http://example.org/r%d", offset))
	pred, _ := rdf.NewIRI("http://www.w3.org/2000/01/rdf-schema#label")
	obj, _ := rdf.NewLiteral(fmt.Sprintf("resource %d", offset))
	return []rdf.Triple{{Subj: subj, Pred: pred, Obj: obj}}, nil
}

func (s *tripleStore) Update(ctx context.Context, update string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return fmt.Errorf("store down")
	}
	s.updates = append(s.updates, update)
	return nil
}

func (s *tripleStore) written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}
