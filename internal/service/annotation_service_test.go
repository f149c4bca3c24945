package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"annotator-be/internal/dto"
	"annotator-be/internal/entity"
	"annotator-be/internal/mapper"
	"annotator-be/internal/pkg/logger"
	"annotator-be/internal/repository/memory"
	"annotator-be/internal/repository/specification"
	"annotator-be/pkg/annotation"
	"annotator-be/pkg/sparql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type annotationFixture struct {
	svc       IAnnotationService
	store     *tripleStore
	sessions  *memory.SessionRepository
	uow       *fakeUnitOfWork
	publisher *recordingPublisherService
	counts    *fixedCounts

	newService func(counts IAnnotationCountService) IAnnotationService
}

func newAnnotationFixture(t *testing.T) *annotationFixture {
	t.Helper()
	bank, err := sparql.DefaultBank()
	require.NoError(t, err)

	log := logger.NewNopLogger()
	store := &tripleStore{size: 1000}
	// Fresh sampling only, so every forward page draws a new offset.
	cfg := annotation.DefaultSamplerConfig()
	cfg.AgreementWeight = 0
	sampler, err := annotation.NewCandidateSampler(store, bank, cfg, log)
	require.NoError(t, err)
	coordinator, err := annotation.NewSubmissionCoordinator(store, bank, time.Second, log)
	require.NoError(t, err)

	sessions := memory.NewSessionRepository(time.Minute, time.Minute, func(email string) *annotation.SessionCandidateCache {
		return annotation.NewSessionCandidateCache(email, sampler)
	})
	uow := &fakeUnitOfWork{users: &mockUserRepository{}, submissions: &mockSubmissionRepository{}}
	publisher := &recordingPublisherService{}
	counts := &fixedCounts{n: 4}

	newService := func(counts IAnnotationCountService) IAnnotationService {
		return NewAnnotationService(sessions, coordinator, counts, publisher, uow, mapper.NewCandidateMapper(nil), log)
	}

	return &annotationFixture{
		svc:        newService(counts),
		newService: newService,
		store:      store,
		sessions:   sessions,
		uow:        uow,
		publisher:  publisher,
		counts:     counts,
	}
}

var ada = dto.SessionIdentity{SessionId: "sess-ada", Email: "ada@example.org"}

func TestGetCurrentOnNewSession(t *testing.T) {
	f := newAnnotationFixture(t)

	res, ok := f.svc.GetCurrent(context.Background(), ada)
	assert.False(t, ok)
	assert.Nil(t, res)
}

func TestPagingThroughCandidates(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()

	first, err := f.svc.PageForward(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, 1, first.Buffered)
	assert.Equal(t, 4, first.NumberOfAnnotations)

	second, err := f.svc.PageForward(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)
	assert.NotEqual(t, first.Resource, second.Resource)

	back, err := f.svc.PageBackward(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, first.Resource, back.Resource)

	_, err = f.svc.PageBackward(ctx, ada)
	assert.ErrorIs(t, err, annotation.ErrNoPriorCandidate)

	cur, ok := f.svc.GetCurrent(ctx, ada)
	require.True(t, ok)
	assert.Equal(t, first.Resource, cur.Resource)
}

func TestPageForwardSurvivesCancelledRequest(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.PageForward(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Buffered)
}

func TestPageForwardExhausted(t *testing.T) {
	f := newAnnotationFixture(t)
	f.store.size = 0

	_, err := f.svc.PageForward(context.Background(), ada)
	assert.ErrorIs(t, err, annotation.ErrSamplingExhausted)
	assert.Equal(t, 0, f.svc.Snapshot(context.Background(), ada).Buffered)
}

func TestDiscardPending(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.DiscardPending(ctx, ada, 0), annotation.ErrEmptyBuffer)

	_, err := f.svc.PageForward(ctx, ada)
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.DiscardPending(ctx, ada, 3), annotation.ErrPreconditionFailed)
	require.NoError(t, f.svc.DiscardPending(ctx, ada, 0))
	assert.Equal(t, 0, f.svc.Snapshot(ctx, ada).Buffered)
}

func TestSubmitWritesLogsAndRotates(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()
	f.uow.submissions.On("Create", mock.Anything, mock.MatchedBy(func(s *entity.AnnotationSubmission) bool {
		return s.UserEmail == ada.Email && len(s.Annotations) == 1 && s.Annotations[0].Concept == "Work"
	})).Return(nil).Once()

	_, err := f.svc.PageForward(ctx, ada)
	require.NoError(t, err)
	second, err := f.svc.PageForward(ctx, ada)
	require.NoError(t, err)

	res, err := f.svc.Submit(ctx, ada, &dto.SubmitAnnotationsRequest{
		NumberOfAnnotations: 2,
		Annotations:         []*dto.AnnotationEntry{nil, {Order: 1, Type: "Work"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Written)
	assert.Equal(t, []string{second.Resource}, res.Subjects)
	require.NotNil(t, res.Current)
	assert.Equal(t, 0, res.Current.Position)
	assert.Equal(t, 1, res.Current.Buffered)

	require.Len(t, f.store.updates, 1)
	assert.Contains(t, f.store.updates[0], "<"+second.Resource+"> a <http://vocab.org/frbr/core.html#term-Work>")
	assert.Contains(t, f.store.updates[0], "ann:annotatedBy <mailto:ada@example.org>")

	assert.Equal(t, []string{ada.Email}, f.counts.invalidated)
	f.uow.submissions.AssertExpectations(t)
	require.Len(t, f.publisher.payloads, 1)
	msg := f.publisher.payloads[0].(dto.AnnotationsSubmittedMessage)
	assert.Equal(t, []string{"Work"}, msg.Concepts)
}

func TestSubmitRejections(t *testing.T) {
	tests := []struct {
		name string
		req  *dto.SubmitAnnotationsRequest
		want error
	}{
		{
			name: "count larger than entries",
			req:  &dto.SubmitAnnotationsRequest{NumberOfAnnotations: 3, Annotations: []*dto.AnnotationEntry{{Order: 0, Type: "Work"}}},
			want: annotation.ErrInvalidArgument,
		},
		{
			name: "unknown concept",
			req:  &dto.SubmitAnnotationsRequest{NumberOfAnnotations: 1, Annotations: []*dto.AnnotationEntry{{Order: 0, Type: "Person"}}},
			want: annotation.ErrInvalidAnnotationType,
		},
		{
			name: "order past buffer",
			req:  &dto.SubmitAnnotationsRequest{NumberOfAnnotations: 1, Annotations: []*dto.AnnotationEntry{{Order: 5, Type: "Item"}}},
			want: annotation.ErrCandidateIndexOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnnotationFixture(t)
			ctx := context.Background()
			_, err := f.svc.PageForward(ctx, ada)
			require.NoError(t, err)

			_, err = f.svc.Submit(ctx, ada, tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.store.updates)
			assert.Empty(t, f.publisher.payloads)
			assert.Equal(t, 1, f.svc.Snapshot(ctx, ada).Buffered)
		})
	}
}

func TestSubmitEntriesBeyondCountAreIgnored(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()
	_, err := f.svc.PageForward(ctx, ada)
	require.NoError(t, err)

	res, err := f.svc.Submit(ctx, ada, &dto.SubmitAnnotationsRequest{
		NumberOfAnnotations: 0,
		Annotations:         []*dto.AnnotationEntry{{Order: 0, Type: "Bogus"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Written)
	assert.Empty(t, f.store.updates)
	assert.Empty(t, f.publisher.payloads)
}

func TestSubmitRemoteFailureKeepsCache(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()
	_, err := f.svc.PageForward(ctx, ada)
	require.NoError(t, err)
	_, err = f.svc.PageForward(ctx, ada)
	require.NoError(t, err)

	f.store.failing = true
	_, err = f.svc.Submit(ctx, ada, &dto.SubmitAnnotationsRequest{
		NumberOfAnnotations: 1,
		Annotations:         []*dto.AnnotationEntry{{Order: 0, Type: "Item"}},
	})
	assert.ErrorIs(t, err, annotation.ErrRemoteWriteFailed)

	snap := f.svc.Snapshot(ctx, ada)
	assert.Equal(t, 2, snap.Buffered)
	assert.Equal(t, 1, snap.Position)
}

func TestSubmissionLogFailureDoesNotFailSubmit(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()
	f.uow.submissions.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := f.svc.PageForward(ctx, ada)
	require.NoError(t, err)
	res, err := f.svc.Submit(ctx, ada, &dto.SubmitAnnotationsRequest{
		NumberOfAnnotations: 1,
		Annotations:         []*dto.AnnotationEntry{{Order: 0, Type: "Expression"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
}

func TestConcurrentForwardOnSameSession(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PageForward(ctx, ada)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap := f.svc.Snapshot(ctx, ada)
	assert.Equal(t, n, snap.Buffered)
	assert.Equal(t, n-1, snap.Position)
	assert.Equal(t, n, snap.Ledger)
}

func TestHistory(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	f.uow.submissions.On("Count", mock.Anything, mock.Anything).Return(int64(7), nil).Once()
	f.uow.submissions.On("FindAll", mock.Anything, mock.MatchedBy(func(specs []specification.Specification) bool {
		return len(specs) == 2 && specs[1] == specification.Pagination{Limit: 5, Offset: 5}
	})).Return([]*entity.AnnotationSubmission{{
		SessionId:   "sess-ada",
		Annotations: []entity.SubmittedAnnotation{{Subject: "http://example.org/r1", Concept: "Item"}},
		CreatedAt:   created,
	}}, nil).Once()

	res, err := f.svc.History(ctx, ada, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Item", res.Items[0].Annotations[0].Concept)
	assert.Equal(t, created, res.Items[0].CreatedAt)
	f.uow.submissions.AssertExpectations(t)
}

func TestAnnotationCount(t *testing.T) {
	f := newAnnotationFixture(t)
	res := f.svc.AnnotationCount(context.Background(), ada)
	assert.Equal(t, 4, res.NumberOfAnnotations)
	assert.Equal(t, ada.Email, res.Email)
}

func TestSubmitResponseCountIncludesWrite(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()
	f.uow.submissions.On("Create", mock.Anything, mock.Anything).Return(nil)

	counts := &cachingCounts{source: f.store.written}
	svc := f.newService(counts)

	first, err := svc.PageForward(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, 0, first.NumberOfAnnotations)

	res, err := svc.Submit(ctx, ada, &dto.SubmitAnnotationsRequest{
		NumberOfAnnotations: 1,
		Annotations:         []*dto.AnnotationEntry{{Order: 0, Type: "Work"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Written)
	require.NotNil(t, res.Current)
	assert.Equal(t, 1, res.Current.NumberOfAnnotations)
	assert.Equal(t, 1, svc.AnnotationCount(ctx, ada).NumberOfAnnotations)
}
