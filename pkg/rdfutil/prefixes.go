package rdfutil

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/knakk/rdf"
	"gopkg.in/yaml.v3"
)

// PrefixMap shortens IRIs to prefixed names (dbr:Hamlet) for display.
type PrefixMap struct {
	// namespaces sorted by length, longest first, so the most specific
	// namespace wins when several match.
	namespaces []namespace
}

type namespace struct {
	prefix string
	uri    string
}

// DefaultPrefixes covers the vocabularies the built-in query bank touches.
var DefaultPrefixes = map[string]string{
	"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
	"owl":  "http://www.w3.org/2002/07/owl#",
	"xsd":  "http://www.w3.org/2001/XMLSchema#",
	"foaf": "http://xmlns.com/foaf/0.1/",
	"dct":  "http://purl.org/dc/terms/",
	"dbo":  "http://dbpedia.org/ontology/",
	"dbp":  "http://dbpedia.org/property/",
	"dbr":  "http://dbpedia.org/resource/",
	"wd":   "http://www.wikidata.org/entity/",
	"frbr": "http://vocab.org/frbr/core.html#term-",
	"ann":  "https://annotator.example.org/ontology/",
	"prov": "http://www.w3.org/ns/prov#",
}

func NewPrefixMap(prefixes map[string]string) *PrefixMap {
	pm := &PrefixMap{}
	for p, uri := range prefixes {
		pm.namespaces = append(pm.namespaces, namespace{prefix: p, uri: uri})
	}
	sort.Slice(pm.namespaces, func(i, j int) bool {
		if len(pm.namespaces[i].uri) != len(pm.namespaces[j].uri) {
			return len(pm.namespaces[i].uri) > len(pm.namespaces[j].uri)
		}
		return pm.namespaces[i].prefix < pm.namespaces[j].prefix
	})
	return pm
}

// LoadPrefixMap reads a YAML mapping of prefix -> namespace IRI.
func LoadPrefixMap(r io.Reader) (*PrefixMap, error) {
	var raw map[string]string
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode prefix map: %w", err)
	}
	for p, uri := range raw {
		if _, err := rdf.NewIRI(uri); err != nil {
			return nil, fmt.Errorf("prefix %q: %w", p, err)
		}
	}
	return NewPrefixMap(raw), nil
}

// LoadPrefixFile loads the mapping from disk. An empty path yields DefaultPrefixes.
func LoadPrefixFile(path string) (*PrefixMap, error) {
	if path == "" {
		return NewPrefixMap(DefaultPrefixes), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadPrefixMap(f)
}

// Shorten returns the prefixed name for iri, or iri itself when no namespace matches
// or the remaining local name would be empty.
func (pm *PrefixMap) Shorten(iri string) string {
	for _, ns := range pm.namespaces {
		if strings.HasPrefix(iri, ns.uri) && len(iri) > len(ns.uri) {
			return ns.prefix + ":" + iri[len(ns.uri):]
		}
	}
	return iri
}

// Term renders an RDF term: IRIs are shortened, literals use their lexical form.
func (pm *PrefixMap) Term(t rdf.Term) string {
	if t == nil {
		return ""
	}
	if t.Type() == rdf.TermIRI {
		return pm.Shorten(t.String())
	}
	return t.String()
}
