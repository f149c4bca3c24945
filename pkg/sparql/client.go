package sparql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/knakk/rdf"
)

var (
	ErrTimeout           = errors.New("sparql endpoint timed out")
	ErrUnavailable       = errors.New("sparql endpoint unavailable")
	ErrRejected          = errors.New("sparql endpoint rejected the request")
	ErrMalformedResponse = errors.New("malformed sparql response")
)

const (
	mimeResultsJSON = "application/sparql-results+json"
	mimeNTriples    = "application/n-triples"
	mimeForm        = "application/x-www-form-urlencoded"

	maxErrorBody = 512
)

// Options configures the HTTP transport used to talk to the store.
// ConnectTimeout bounds dialing and the TLS handshake; ReadTimeout bounds
// the wait for response headers. Their sum caps a whole request.
type Options struct {
	QueryEndpoint  string
	UpdateEndpoint string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Client speaks the SPARQL 1.1 protocol (query and update over HTTP POST).
type Client struct {
	httpClient     *http.Client
	queryEndpoint  string
	updateEndpoint string
}

func NewClient(opts Options) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 2 * time.Second
	}
	if opts.UpdateEndpoint == "" {
		opts.UpdateEndpoint = opts.QueryEndpoint
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.ConnectTimeout + opts.ReadTimeout,
		},
		queryEndpoint:  opts.QueryEndpoint,
		updateEndpoint: opts.UpdateEndpoint,
	}
}

// Results is the W3C SPARQL 1.1 JSON results document.
type Results struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]Binding `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean,omitempty"`
}

type Binding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	DataType string `json:"datatype,omitempty"`
}

// Select runs a SELECT (or ASK) query.
func (c *Client) Select(ctx context.Context, query string) (*Results, error) {
	resp, err := c.post(ctx, c.queryEndpoint, "query", query, mimeResultsJSON)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var res Results
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, classify(fmt.Errorf("%w: %w", ErrMalformedResponse, err))
	}
	return &res, nil
}

// Count runs a SELECT that projects a single integer, preferably bound to ?count.
func (c *Client) Count(ctx context.Context, query string) (int, error) {
	res, err := c.Select(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(res.Results.Bindings) == 0 {
		return 0, nil
	}
	row := res.Results.Bindings[0]
	b, ok := row["count"]
	if !ok && len(res.Head.Vars) > 0 {
		b, ok = row[res.Head.Vars[0]]
	}
	if !ok {
		return 0, fmt.Errorf("%w: no count binding", ErrMalformedResponse)
	}
	n, err := strconv.Atoi(strings.TrimSpace(b.Value))
	if err != nil {
		return 0, fmt.Errorf("%w: count %q: %v", ErrMalformedResponse, b.Value, err)
	}
	return n, nil
}

// Construct runs a CONSTRUCT query and decodes the N-Triples answer.
func (c *Client) Construct(ctx context.Context, query string) ([]rdf.Triple, error) {
	resp, err := c.post(ctx, c.queryEndpoint, "query", query, mimeNTriples)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	dec := rdf.NewTripleDecoder(resp.Body, rdf.NTriples)
	var triples []rdf.Triple
	for {
		t, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, classify(fmt.Errorf("%w: %w", ErrMalformedResponse, err))
		}
		triples = append(triples, t)
	}
	return triples, nil
}

// Update runs a SPARQL update against the update endpoint.
func (c *Client) Update(ctx context.Context, update string) error {
	resp, err := c.post(ctx, c.updateEndpoint, "update", update, "*/*")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) post(ctx context.Context, endpoint, field, body, accept string) (*http.Response, error) {
	form := url.Values{}
	form.Set(field, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	req.Header.Set("Content-Type", mimeForm)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}

	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		kind := ErrUnavailable
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = ErrRejected
		}
		return nil, fmt.Errorf("%w: %s: %s", kind, resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// classify maps transport failures onto ErrTimeout or ErrUnavailable.
// Errors that already carry a sparql kind pass through unchanged unless
// the underlying cause was a timeout while reading the body.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrRejected) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
