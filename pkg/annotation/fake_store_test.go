package annotation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"annotator-be/internal/pkg/logger"
	"annotator-be/pkg/sparql"

	"github.com/knakk/rdf"
	"github.com/stretchr/testify/require"
)

const testBankText = `
# tag: count-fresh
COUNT fresh {{.CurrentAnnotator}}
# tag: construct-fresh
CONSTRUCT fresh {{.Offset}} {{.Limit}}
# tag: count-agreement
COUNT agreement {{.CurrentAnnotator}}
# tag: construct-agreement
CONSTRUCT agreement {{.Offset}} {{.Limit}}
# tag: insert-annotations
INSERT{{range .Entries}} {{.Subject}}={{.Concept}}{{end}} BY {{.Annotator}}
`

func testBank(t *testing.T) *sparql.Bank {
	t.Helper()
	bank, err := sparql.LoadBank(strings.NewReader(testBankText))
	require.NoError(t, err)
	return bank
}

type countReply struct {
	n   int
	err error
}

// fakeStore answers the test bank. Count replies are consumed in order;
// when a queue runs dry the last reply repeats.
type fakeStore struct {
	mu sync.Mutex

	fresh     []countReply
	agreement []countReply
	construct func(strategy string, offset int) ([]rdf.Triple, error)
	update    func(update string) error

	counts     []string
	constructs []string
	updates    []string
}

func newFakeStore(freshCount int) *fakeStore {
	return &fakeStore{
		fresh:     []countReply{{n: freshCount}},
		agreement: []countReply{{n: 0}},
		construct: func(_ string, offset int) ([]rdf.Triple, error) {
			return resourceTriples(resourceIRI(offset)), nil
		},
		update: func(string) error { return nil },
	}
}

func (f *fakeStore) Count(_ context.Context, query string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, query)

	queue := &f.fresh
	if strings.HasPrefix(query, "COUNT agreement") {
		queue = &f.agreement
	}
	r := (*queue)[0]
	if len(*queue) > 1 {
		*queue = (*queue)[1:]
	}
	return r.n, r.err
}

func (f *fakeStore) Construct(_ context.Context, query string) ([]rdf.Triple, error) {
	f.mu.Lock()
	f.constructs = append(f.constructs, query)
	construct := f.construct
	f.mu.Unlock()

	fields := strings.Fields(query)
	offset, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, err
	}
	return construct(fields[1], offset)
}

func (f *fakeStore) Update(_ context.Context, update string) error {
	f.mu.Lock()
	f.updates = append(f.updates, update)
	fn := f.update
	f.mu.Unlock()
	return fn(update)
}

func (f *fakeStore) remoteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.counts) + len(f.constructs) + len(f.updates)
}

func resourceIRI(offset int) string {
	return fmt.Sprintf("http://example.org/resource/%d", offset)
}

func resourceTriples(subject string) []rdf.Triple {
	s, _ := rdf.NewIRI(subject)
	label, _ := rdf.NewIRI("http://www.w3.org/2000/01/rdf-schema#label")
	sameAs, _ := rdf.NewIRI("http://www.w3.org/2002/07/owl#sameAs")
	wd, _ := rdf.NewIRI("http://www.wikidata.org/entity/Q1")
	lit, _ := rdf.NewLiteral("label of " + subject)
	return []rdf.Triple{
		{Subj: s, Pred: sameAs, Obj: wd},
		{Subj: s, Pred: label, Obj: lit},
	}
}

// scriptedRand replays fixed values. Once a queue is empty Float64
// returns 0.99 (fresh strategy) and IntN returns 0.
type scriptedRand struct {
	mu     sync.Mutex
	floats []float64
	ints   []int
}

func (r *scriptedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return 0.99
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func newTestSampler(t *testing.T, store RemoteStore, rnd Rand) *CandidateSampler {
	t.Helper()
	s, err := NewCandidateSampler(store, testBank(t), DefaultSamplerConfig(), logger.NewNopLogger(), WithRand(rnd))
	require.NoError(t, err)
	return s
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
