package sparql

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/template"
)

// Names of the queries the service expects to find in a bank.
const (
	QueryCountFresh          = "count-fresh"
	QueryConstructFresh      = "construct-fresh"
	QueryCountAgreement      = "count-agreement"
	QueryConstructAgreement  = "construct-agreement"
	QueryCountUserAnnotation = "count-user-annotations"
	UpdateInsertAnnotations  = "insert-annotations"
)

const tagPrefix = "# tag:"

//go:embed queries/default.rq
var defaultBank string

// QueryParams are bound into the sampling and counting templates.
// CurrentAnnotator must already be serialized (see IRI).
type QueryParams struct {
	Offset           int
	Limit            int
	CurrentAnnotator string
}

type InsertEntry struct {
	Subject string
	Concept string
}

// InsertParams are bound into the insert-annotations template.
type InsertParams struct {
	Annotator string
	Entries   []InsertEntry
}

// Bank is a named collection of SPARQL query templates.
//
// A bank file is plain SPARQL where every query is introduced by a
// "# tag: <name>" line. Everything up to the next tag line belongs to
// that query and is parsed as a text/template.
type Bank struct {
	templates map[string]*template.Template
}

func LoadBank(r io.Reader) (*Bank, error) {
	b := &Bank{templates: make(map[string]*template.Template)}

	var (
		name string
		body strings.Builder
	)
	flush := func() error {
		if name == "" {
			return nil
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(strings.TrimSpace(body.String()))
		if err != nil {
			return fmt.Errorf("parse query %q: %w", name, err)
		}
		b.templates[name] = tmpl
		body.Reset()
		return nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), tagPrefix) {
			if err := flush(); err != nil {
				return nil, err
			}
			name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), tagPrefix))
			if _, dup := b.templates[name]; dup {
				return nil, fmt.Errorf("duplicate query tag %q", name)
			}
			continue
		}
		if name != "" {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadBankFile loads a bank from disk. An empty path yields the built-in bank.
func LoadBankFile(path string) (*Bank, error) {
	if path == "" {
		return DefaultBank()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadBank(f)
}

func DefaultBank() (*Bank, error) {
	return LoadBank(strings.NewReader(defaultBank))
}

// Prepare renders the named query with params.
func (b *Bank) Prepare(name string, params any) (string, error) {
	tmpl, ok := b.templates[name]
	if !ok {
		return "", fmt.Errorf("query %q not found in bank", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("render query %q: %w", name, err)
	}
	return buf.String(), nil
}

// Require checks that every named query is present.
func (b *Bank) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := b.templates[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("query bank is missing: %s", strings.Join(missing, ", "))
	}
	return nil
}
