package service

import (
	"context"
	"fmt"
	"time"

	"annotator-be/internal/dto"
	"annotator-be/internal/entity"
	"annotator-be/internal/mapper"
	"annotator-be/internal/pkg/logger"
	"annotator-be/internal/repository/memory"
	"annotator-be/internal/repository/specification"
	"annotator-be/internal/repository/unitofwork"
	"annotator-be/pkg/annotation"

	"github.com/google/uuid"
)

type IAnnotationService interface {
	// GetCurrent returns the candidate under the session cursor, or false
	// when the session has nothing buffered.
	GetCurrent(ctx context.Context, id dto.SessionIdentity) (*dto.CandidateResponse, bool)
	PageForward(ctx context.Context, id dto.SessionIdentity) (*dto.CandidateResponse, error)
	PageBackward(ctx context.Context, id dto.SessionIdentity) (*dto.CandidateResponse, error)
	DiscardPending(ctx context.Context, id dto.SessionIdentity, expected int) error
	Submit(ctx context.Context, id dto.SessionIdentity, req *dto.SubmitAnnotationsRequest) (*dto.SubmitAnnotationsResponse, error)
	Snapshot(ctx context.Context, id dto.SessionIdentity) *dto.SessionSnapshotResponse
	AnnotationCount(ctx context.Context, id dto.SessionIdentity) *dto.AnnotationCountResponse
	// History lists the annotator's logged submissions, newest first. page is 1-based.
	History(ctx context.Context, id dto.SessionIdentity, page, size int) (*dto.SubmissionHistoryResponse, error)
}

type annotationService struct {
	sessions    *memory.SessionRepository
	coordinator *annotation.SubmissionCoordinator
	counts      IAnnotationCountService
	publisher   IPublisherService
	uowFactory  unitofwork.RepositoryFactory
	mapper      *mapper.CandidateMapper
	logger      logger.ILogger
}

func NewAnnotationService(
	sessions *memory.SessionRepository,
	coordinator *annotation.SubmissionCoordinator,
	counts IAnnotationCountService,
	publisher IPublisherService,
	uowFactory unitofwork.RepositoryFactory,
	candidateMapper *mapper.CandidateMapper,
	log logger.ILogger,
) IAnnotationService {
	return &annotationService{
		sessions:    sessions,
		coordinator: coordinator,
		counts:      counts,
		publisher:   publisher,
		uowFactory:  uowFactory,
		mapper:      candidateMapper,
		logger:      log,
	}
}

// view is what a session operation hands back from inside the lock.
type view struct {
	candidate *annotation.Candidate
	position  int
	buffered  int
}

func snapshot(c *annotation.Candidate, cache *annotation.SessionCandidateCache) view {
	return view{candidate: c, position: cache.Position(), buffered: cache.Len()}
}

func (s *annotationService) render(ctx context.Context, email string, v view) *dto.CandidateResponse {
	if v.candidate == nil {
		return nil
	}
	return s.mapper.ToResponse(v.candidate, v.position, v.buffered, s.counts.Count(ctx, email))
}

func (s *annotationService) GetCurrent(ctx context.Context, id dto.SessionIdentity) (*dto.CandidateResponse, bool) {
	var v view
	_ = s.sessions.WithSession(id.SessionId, id.Email, func(e *memory.SessionEntry) error {
		if c, ok := e.Cache.Current(); ok {
			v = snapshot(c, e.Cache)
		}
		return nil
	})
	if v.candidate == nil {
		return nil, false
	}
	return s.render(ctx, id.Email, v), true
}

func (s *annotationService) PageForward(ctx context.Context, id dto.SessionIdentity) (*dto.CandidateResponse, error) {
	// Remote calls run to completion even if the client goes away.
	ctx = context.WithoutCancel(ctx)

	var v view
	err := s.sessions.WithSession(id.SessionId, id.Email, func(e *memory.SessionEntry) error {
		c, err := e.Cache.Advance(ctx)
		if err != nil {
			return err
		}
		v = snapshot(c, e.Cache)
		return nil
	})
	if err != nil {
		s.logger.Warn("ANNOTATION", "Page forward failed", map[string]interface{}{
			"session_id": id.SessionId,
			"error":      err.Error(),
		})
		return nil, err
	}
	return s.render(ctx, id.Email, v), nil
}

func (s *annotationService) PageBackward(ctx context.Context, id dto.SessionIdentity) (*dto.CandidateResponse, error) {
	var v view
	err := s.sessions.WithSession(id.SessionId, id.Email, func(e *memory.SessionEntry) error {
		c, err := e.Cache.Retreat()
		if err != nil {
			return err
		}
		v = snapshot(c, e.Cache)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.render(ctx, id.Email, v), nil
}

func (s *annotationService) DiscardPending(ctx context.Context, id dto.SessionIdentity, expected int) error {
	return s.sessions.WithSession(id.SessionId, id.Email, func(e *memory.SessionEntry) error {
		return e.Cache.DiscardTail(expected)
	})
}

func (s *annotationService) Submit(ctx context.Context, id dto.SessionIdentity, req *dto.SubmitAnnotationsRequest) (*dto.SubmitAnnotationsResponse, error) {
	n := req.NumberOfAnnotations
	if n < 0 || n > len(req.Annotations) {
		return nil, fmt.Errorf("%w: numberOfAnnotations %d but %d entries sent", annotation.ErrInvalidArgument, n, len(req.Annotations))
	}
	batch := make([]*annotation.PendingAnnotation, n)
	for i, a := range req.Annotations[:n] {
		if a != nil {
			batch[i] = &annotation.PendingAnnotation{CandidateIndex: a.Order, Concept: a.Type}
		}
	}

	ctx = context.WithoutCancel(ctx)

	var (
		result *annotation.SubmitResult
		v      view
	)
	err := s.sessions.WithSession(id.SessionId, id.Email, func(e *memory.SessionEntry) error {
		res, err := s.coordinator.Submit(ctx, e.Cache, batch)
		if err != nil {
			return err
		}
		result = res
		if c, ok := e.Cache.Current(); ok {
			v = snapshot(c, e.Cache)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("ANNOTATION", "Submission rejected", map[string]interface{}{
			"session_id": id.SessionId,
			"error":      err.Error(),
		})
		return nil, err
	}

	resp := &dto.SubmitAnnotationsResponse{
		Written:  len(result.Annotations),
		Subjects: make([]string, 0, len(result.Annotations)),
	}
	for _, a := range result.Annotations {
		resp.Subjects = append(resp.Subjects, a.Subject)
	}
	if len(result.Annotations) > 0 {
		// The consumer also invalidates, but asynchronously; the count in
		// this response must already include the write.
		s.counts.Invalidate(ctx, id.Email)
		s.record(ctx, id, result.Annotations)
	}
	resp.Current = s.render(ctx, id.Email, v)
	return resp, nil
}

// record keeps the local audit log and announces the submission. Neither
// step can fail the submission: the store write already happened.
func (s *annotationService) record(ctx context.Context, id dto.SessionIdentity, written []annotation.Annotation) {
	submission := &entity.AnnotationSubmission{
		Id:        uuid.New(),
		UserEmail: id.Email,
		SessionId: id.SessionId,
		CreatedAt: time.Now(),
	}
	msg := dto.AnnotationsSubmittedMessage{
		SubmissionId: submission.Id.String(),
		Email:        id.Email,
		SessionId:    id.SessionId,
	}
	for _, a := range written {
		submission.Annotations = append(submission.Annotations, entity.SubmittedAnnotation{
			Subject: a.Subject,
			Concept: string(a.Concept),
		})
		msg.Subjects = append(msg.Subjects, a.Subject)
		msg.Concepts = append(msg.Concepts, string(a.Concept))
	}

	if s.uowFactory != nil {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		if err := uow.AnnotationSubmissionRepository().Create(ctx, submission); err != nil {
			s.logger.Error("ANNOTATION", "Failed to log submission", map[string]interface{}{
				"submission_id": submission.Id.String(),
				"error":         err.Error(),
			})
		}
	}

	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Warn("ANNOTATION", "Failed to publish submission event", map[string]interface{}{"error": err.Error()})
	}

	s.logger.Info("ANNOTATION", "Annotations submitted", map[string]interface{}{
		"session_id": id.SessionId,
		"email":      id.Email,
		"count":      len(written),
	})
}

func (s *annotationService) Snapshot(ctx context.Context, id dto.SessionIdentity) *dto.SessionSnapshotResponse {
	res := &dto.SessionSnapshotResponse{SessionId: id.SessionId}
	_ = s.sessions.WithSession(id.SessionId, id.Email, func(e *memory.SessionEntry) error {
		res.Position = e.Cache.Position()
		res.Buffered = e.Cache.Len()
		res.Ledger = e.Cache.Ledger().Len()
		return nil
	})
	return res
}

func (s *annotationService) AnnotationCount(ctx context.Context, id dto.SessionIdentity) *dto.AnnotationCountResponse {
	return &dto.AnnotationCountResponse{
		Email:               id.Email,
		NumberOfAnnotations: s.counts.Count(ctx, id.Email),
	}
}

const maxHistoryPageSize = 100

func (s *annotationService) History(ctx context.Context, id dto.SessionIdentity, page, size int) (*dto.SubmissionHistoryResponse, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > maxHistoryPageSize {
		size = 20
	}
	res := &dto.SubmissionHistoryResponse{Page: page, Size: size, Items: []dto.SubmissionResponse{}}
	if s.uowFactory == nil {
		return res, nil
	}

	repo := s.uowFactory.NewUnitOfWork(ctx).AnnotationSubmissionRepository()
	byUser := specification.SubmittedBy{Email: id.Email}

	total, err := repo.Count(ctx, byUser)
	if err != nil {
		return nil, err
	}
	res.Total = total

	rows, err := repo.FindAll(ctx, byUser, specification.Pagination{Limit: size, Offset: (page - 1) * size})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		item := dto.SubmissionResponse{
			Id:          row.Id.String(),
			SessionId:   row.SessionId,
			Annotations: make([]dto.SubmittedAnnotationResponse, 0, len(row.Annotations)),
			CreatedAt:   row.CreatedAt,
		}
		for _, a := range row.Annotations {
			item.Annotations = append(item.Annotations, dto.SubmittedAnnotationResponse{Subject: a.Subject, Concept: a.Concept})
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}
