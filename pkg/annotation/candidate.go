package annotation

import (
	"sort"
	"time"

	"github.com/knakk/rdf"
)

type Strategy string

const (
	StrategyFresh     Strategy = "fresh"
	StrategyAgreement Strategy = "agreement"
)

// Candidate is one resource offered for annotation together with the
// triples describing it. It is never modified after it is fetched.
type Candidate struct {
	Subject   string
	Triples   []rdf.Triple
	Offset    int
	Strategy  Strategy
	FetchedAt time.Time
}

// newCandidate checks that a construct answer describes exactly one
// resource and orders its triples by predicate.
func newCandidate(triples []rdf.Triple, offset int, strategy Strategy, fetchedAt time.Time) (*Candidate, error) {
	if len(triples) == 0 {
		return nil, errEmptyResult
	}
	subject := triples[0].Subj.String()
	for _, t := range triples[1:] {
		if t.Subj.String() != subject {
			return nil, errOffsetMismatch
		}
	}

	sorted := make([]rdf.Triple, len(triples))
	copy(sorted, triples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Pred.String() < sorted[j].Pred.String()
	})

	return &Candidate{
		Subject:   subject,
		Triples:   sorted,
		Offset:    offset,
		Strategy:  strategy,
		FetchedAt: fetchedAt,
	}, nil
}
