package annotation

import (
	"context"
	"fmt"
	"time"

	"annotator-be/internal/pkg/logger"
	"annotator-be/pkg/sparql"
)

// PendingAnnotation assigns a concept to the candidate at CandidateIndex
// in the session buffer. A nil entry in a batch means "not annotated".
type PendingAnnotation struct {
	CandidateIndex int
	Concept        string
}

// Annotation is an accepted entry as it was written to the store.
type Annotation struct {
	Subject string
	Concept Concept
}

type SubmitResult struct {
	Annotations []Annotation
	// RefillErr is set when the write succeeded but no fresh candidate
	// could be sampled afterwards. The cache is empty in that case.
	RefillErr error
}

type SubmissionCoordinator struct {
	store   RemoteStore
	bank    *sparql.Bank
	timeout time.Duration
	logger  logger.ILogger
}

func NewSubmissionCoordinator(store RemoteStore, bank *sparql.Bank, timeout time.Duration, log logger.ILogger) (*SubmissionCoordinator, error) {
	if store == nil || bank == nil {
		return nil, fmt.Errorf("%w: coordinator needs a store and a query bank", ErrInvalidArgument)
	}
	if err := bank.Require(sparql.UpdateInsertAnnotations); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if timeout <= 0 {
		timeout = DefaultSamplerConfig().RequestTimeout
	}
	return &SubmissionCoordinator{store: store, bank: bank, timeout: timeout, logger: log}, nil
}

// Submit validates batch against cache, writes every accepted entry in one
// update and rotates the cache. Nothing is written and the cache is left
// untouched when validation or the write fails.
func (s *SubmissionCoordinator) Submit(ctx context.Context, cache *SessionCandidateCache, batch []*PendingAnnotation) (*SubmitResult, error) {
	accepted := make([]Annotation, 0, len(batch))
	params := sparql.InsertParams{}

	for _, p := range batch {
		if p == nil {
			continue
		}
		concept, err := ParseConcept(p.Concept)
		if err != nil {
			return nil, err
		}
		cand, err := cache.At(p.CandidateIndex)
		if err != nil {
			return nil, err
		}

		subject, err := sparql.IRI(cand.Subject)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		class, err := sparql.IRI(concept.IRI())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		params.Entries = append(params.Entries, sparql.InsertEntry{Subject: subject, Concept: class})
		accepted = append(accepted, Annotation{Subject: cand.Subject, Concept: concept})
	}

	if len(accepted) > 0 {
		mailbox, err := sparql.MailboxIRI(cache.Annotator())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		params.Annotator = mailbox

		update, err := s.bank.Prepare(sparql.UpdateInsertAnnotations, params)
		if err != nil {
			return nil, err
		}
		if err := s.write(ctx, update); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRemoteWriteFailed, err)
		}
	}

	result := &SubmitResult{Annotations: accepted}
	if err := cache.Rotate(ctx); err != nil {
		result.RefillErr = err
		s.logger.Warn("SUBMISSION", "Cache refill failed after submission", map[string]interface{}{
			"annotator": cache.Annotator(),
			"error":     err.Error(),
		})
	}
	return result, nil
}

func (s *SubmissionCoordinator) write(ctx context.Context, update string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Update(ctx, update)
}
