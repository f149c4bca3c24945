package annotation

import (
	"errors"
	"fmt"

	"annotator-be/pkg/sparql"
)

var (
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrSamplingExhausted     = errors.New("no candidate could be sampled")
	ErrNoCandidatesAvailable = errors.New("no candidates available")
	ErrPreconditionFailed    = errors.New("precondition failed")
	ErrInvalidAnnotationType = errors.New("invalid annotation type")
	ErrRemoteWriteFailed     = errors.New("remote write failed")

	// ErrNoPriorCandidate is the boundary error for paging backward at position 0.
	ErrNoPriorCandidate = errors.New("no prior candidate")

	// Transport failures as classified by the SPARQL client.
	ErrRemoteTimeout     = sparql.ErrTimeout
	ErrRemoteUnavailable = sparql.ErrUnavailable

	ErrEmptyBuffer              = fmt.Errorf("%w: candidate buffer is empty", ErrPreconditionFailed)
	ErrCandidateIndexOutOfRange = fmt.Errorf("%w: candidate index out of range", ErrInvalidArgument)
)

// Attempt-level failures. They are retried by the sampler and only
// surface wrapped inside ErrSamplingExhausted.
var (
	errZeroCount      = errors.New("count query reported no eligible resources")
	errEmptyResult    = errors.New("construct query returned no triples")
	errOffsetMismatch = errors.New("construct query returned more than one resource")
)
