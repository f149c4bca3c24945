package annotation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"annotator-be/internal/pkg/logger"
	"annotator-be/pkg/sparql"

	"github.com/knakk/rdf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const samplerModule = "SAMPLER"

// RemoteStore is the triple store the sampler and the submission
// coordinator talk to. *sparql.Client satisfies it.
type RemoteStore interface {
	Count(ctx context.Context, query string) (int, error)
	Construct(ctx context.Context, query string) ([]rdf.Triple, error)
	Update(ctx context.Context, update string) error
}

// Rand is the random source used for strategy selection and offset draws.
// A sampler shared between sessions needs a Rand that is safe for
// concurrent use; the default uses the math/rand/v2 top-level functions.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

type SamplerConfig struct {
	// AgreementWeight is the probability of resampling a resource another
	// annotator already labelled.
	AgreementWeight float64
	MaxAttempts     int
	// RequestTimeout bounds each individual remote call.
	RequestTimeout time.Duration
}

func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		AgreementWeight: 0.1,
		MaxAttempts:     3,
		RequestTimeout:  3 * time.Second,
	}
}

// Sampler produces exactly one non-empty candidate for an annotator or fails.
type Sampler interface {
	Sample(ctx context.Context, annotator string, ledger *OffsetLedger) (*Candidate, error)
}

type CandidateSampler struct {
	store  RemoteStore
	bank   *sparql.Bank
	cfg    SamplerConfig
	rnd    Rand
	now    func() time.Time
	logger logger.ILogger
	tracer trace.Tracer
}

type SamplerOption func(*CandidateSampler)

func WithRand(r Rand) SamplerOption {
	return func(s *CandidateSampler) { s.rnd = r }
}

func WithClock(now func() time.Time) SamplerOption {
	return func(s *CandidateSampler) { s.now = now }
}

func NewCandidateSampler(store RemoteStore, bank *sparql.Bank, cfg SamplerConfig, log logger.ILogger, opts ...SamplerOption) (*CandidateSampler, error) {
	if store == nil || bank == nil {
		return nil, fmt.Errorf("%w: sampler needs a store and a query bank", ErrInvalidArgument)
	}
	if err := bank.Require(
		sparql.QueryCountFresh,
		sparql.QueryConstructFresh,
		sparql.QueryCountAgreement,
		sparql.QueryConstructAgreement,
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if cfg.AgreementWeight < 0 || cfg.AgreementWeight > 1 {
		return nil, fmt.Errorf("%w: agreement weight %v outside [0,1]", ErrInvalidArgument, cfg.AgreementWeight)
	}
	def := DefaultSamplerConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}

	s := &CandidateSampler{
		store:  store,
		bank:   bank,
		cfg:    cfg,
		rnd:    globalRand{},
		now:    time.Now,
		logger: log,
		tracer: otel.Tracer("annotator-be/pkg/annotation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sample runs up to MaxAttempts sampling attempts for annotator. Fresh
// offsets are drawn outside ledger and recorded in it on success.
func (s *CandidateSampler) Sample(ctx context.Context, annotator string, ledger *OffsetLedger) (*Candidate, error) {
	ctx, span := s.tracer.Start(ctx, "annotation.Sample")
	defer span.End()

	mailbox, err := sparql.MailboxIRI(annotator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if ledger == nil {
		ledger = NewOffsetLedger()
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		c, err := s.attempt(ctx, mailbox, ledger)
		if err == nil {
			span.SetAttributes(
				attribute.Int("sampler.attempts", attempt),
				attribute.String("sampler.strategy", string(c.Strategy)),
				attribute.Int("sampler.offset", c.Offset),
			)
			return c, nil
		}
		if errors.Is(err, ErrNoCandidatesAvailable) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		lastErr = err
		s.logger.Warn(samplerModule, "Sampling attempt abandoned", map[string]interface{}{
			"annotator": annotator,
			"attempt":   attempt,
			"error":     err.Error(),
		})
	}

	err = fmt.Errorf("%w after %d attempts: %w", ErrSamplingExhausted, s.cfg.MaxAttempts, lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (s *CandidateSampler) attempt(ctx context.Context, mailbox string, ledger *OffsetLedger) (*Candidate, error) {
	params := sparql.QueryParams{Limit: 1, CurrentAnnotator: mailbox}
	strategy := StrategyFresh

	if s.rnd.Float64() < s.cfg.AgreementWeight {
		count, err := s.count(ctx, sparql.QueryCountAgreement, params)
		switch {
		case err != nil:
			s.logger.Debug(samplerModule, "Agreement count failed, sampling fresh", map[string]interface{}{"error": err.Error()})
		case count > 0:
			strategy = StrategyAgreement
			params.Offset = s.rnd.IntN(count)
		}
	}

	if strategy == StrategyFresh {
		count, err := s.count(ctx, sparql.QueryCountFresh, params)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, errZeroCount
		}
		offset, ok := ledger.Draw(count, s.rnd)
		if !ok {
			return nil, fmt.Errorf("%w: all %d offsets already presented", ErrNoCandidatesAvailable, count)
		}
		params.Offset = offset
	}

	query := sparql.QueryConstructFresh
	if strategy == StrategyAgreement {
		query = sparql.QueryConstructAgreement
	}
	triples, err := s.construct(ctx, query, params)
	if err != nil {
		return nil, err
	}

	c, err := newCandidate(triples, params.Offset, strategy, s.now())
	if err != nil {
		return nil, fmt.Errorf("offset %d: %w", params.Offset, err)
	}
	if strategy == StrategyFresh {
		ledger.Record(params.Offset)
	}
	return c, nil
}

func (s *CandidateSampler) count(ctx context.Context, name string, params sparql.QueryParams) (int, error) {
	q, err := s.bank.Prepare(name, params)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	return s.store.Count(ctx, q)
}

func (s *CandidateSampler) construct(ctx context.Context, name string, params sparql.QueryParams) ([]rdf.Triple, error) {
	q, err := s.bank.Prepare(name, params)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	return s.store.Construct(ctx, q)
}
