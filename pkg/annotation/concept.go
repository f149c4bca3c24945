package annotation

import "fmt"

// Concept is one of the FRBR group 1 entities an annotator can assign.
type Concept string

const (
	ConceptWork          Concept = "Work"
	ConceptExpression    Concept = "Expression"
	ConceptManifestation Concept = "Manifestation"
	ConceptItem          Concept = "Item"
)

const frbrNamespace = "http://vocab.org/frbr/core.html#term-"

var concepts = map[Concept]struct{}{
	ConceptWork:          {},
	ConceptExpression:    {},
	ConceptManifestation: {},
	ConceptItem:          {},
}

// ParseConcept matches s exactly against the closed concept set. Case and
// surrounding whitespace are significant.
func ParseConcept(s string) (Concept, error) {
	c := Concept(s)
	if _, ok := concepts[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAnnotationType, s)
	}
	return c, nil
}

// IRI returns the FRBR class IRI for the concept.
func (c Concept) IRI() string {
	return frbrNamespace + string(c)
}
