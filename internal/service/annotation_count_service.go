package service

import (
	"context"
	"errors"
	"time"

	"annotator-be/internal/pkg/logger"
	"annotator-be/pkg/sparql"

	"github.com/redis/go-redis/v9"
)

const countCacheKeyPrefix = "annotations:count:"

// Counter runs a counting query; *sparql.Client satisfies it.
type Counter interface {
	Count(ctx context.Context, query string) (int, error)
}

type IAnnotationCountService interface {
	// Count returns how many resources email has annotated, or -1 when the
	// store cannot be asked.
	Count(ctx context.Context, email string) int
	Invalidate(ctx context.Context, email string)
}

type annotationCountService struct {
	store   Counter
	bank    *sparql.Bank
	rdb     redis.Cmdable
	ttl     time.Duration
	timeout time.Duration
	logger  logger.ILogger
}

// NewAnnotationCountService caches counts in Redis when rdb is non-nil.
func NewAnnotationCountService(store Counter, bank *sparql.Bank, rdb redis.Cmdable, ttl, timeout time.Duration, log logger.ILogger) IAnnotationCountService {
	return &annotationCountService{
		store:   store,
		bank:    bank,
		rdb:     rdb,
		ttl:     ttl,
		timeout: timeout,
		logger:  log,
	}
}

func (s *annotationCountService) Count(ctx context.Context, email string) int {
	key := countCacheKeyPrefix + email
	if s.rdb != nil {
		n, err := s.rdb.Get(ctx, key).Int()
		if err == nil {
			return n
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("ANNOTATION_COUNT", "Redis read failed", map[string]interface{}{"error": err.Error()})
		}
	}

	n, err := s.query(ctx, email)
	if err != nil {
		s.logger.Warn("ANNOTATION_COUNT", "Count query failed", map[string]interface{}{
			"email": email,
			"error": err.Error(),
		})
		return -1
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, key, n, s.ttl).Err(); err != nil {
			s.logger.Warn("ANNOTATION_COUNT", "Redis write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return n
}

func (s *annotationCountService) query(ctx context.Context, email string) (int, error) {
	mailbox, err := sparql.MailboxIRI(email)
	if err != nil {
		return 0, err
	}
	q, err := s.bank.Prepare(sparql.QueryCountUserAnnotation, sparql.QueryParams{CurrentAnnotator: mailbox})
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Count(ctx, q)
}

func (s *annotationCountService) Invalidate(ctx context.Context, email string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, countCacheKeyPrefix+email).Err(); err != nil {
		s.logger.Warn("ANNOTATION_COUNT", "Redis invalidate failed", map[string]interface{}{"error": err.Error()})
	}
}
