package mapper

import (
	"annotator-be/internal/dto"
	"annotator-be/pkg/annotation"
	"annotator-be/pkg/rdfutil"

	"github.com/knakk/rdf"
)

// CandidateMapper renders candidates for the HTTP layer using prefixed names.
type CandidateMapper struct {
	prefixes *rdfutil.PrefixMap
}

func NewCandidateMapper(prefixes *rdfutil.PrefixMap) *CandidateMapper {
	if prefixes == nil {
		prefixes = rdfutil.NewPrefixMap(rdfutil.DefaultPrefixes)
	}
	return &CandidateMapper{prefixes: prefixes}
}

func (m *CandidateMapper) ToResponse(c *annotation.Candidate, position, buffered, numberOfAnnotations int) *dto.CandidateResponse {
	if c == nil {
		return nil
	}
	triples := make([]dto.TripleResponse, 0, len(c.Triples))
	for _, t := range c.Triples {
		triples = append(triples, dto.TripleResponse{
			Subject:    m.prefixes.Term(t.Subj),
			Predicate:  m.prefixes.Term(t.Pred),
			Object:     m.prefixes.Term(t.Obj),
			ObjectKind: termKind(t.Obj),
		})
	}
	return &dto.CandidateResponse{
		Resource:            c.Subject,
		ResourceLabel:       m.prefixes.Shorten(c.Subject),
		Strategy:            string(c.Strategy),
		Position:            position,
		Buffered:            buffered,
		NumberOfAnnotations: numberOfAnnotations,
		Triples:             triples,
	}
}

func termKind(t rdf.Term) string {
	switch t.Type() {
	case rdf.TermIRI:
		return "iri"
	case rdf.TermBlank:
		return "blank"
	default:
		return "literal"
	}
}
