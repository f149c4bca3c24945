package sparql

import (
	"fmt"

	"github.com/knakk/rdf"
)

// IRI validates s and returns it in N-Triples form, ready to be bound
// into a query template.
func IRI(s string) (string, error) {
	iri, err := rdf.NewIRI(s)
	if err != nil {
		return "", fmt.Errorf("invalid IRI %q: %w", s, err)
	}
	return iri.Serialize(rdf.NTriples), nil
}

// MailboxIRI is the IRI annotators are identified by in the store.
func MailboxIRI(email string) (string, error) {
	return IRI("mailto:" + email)
}
