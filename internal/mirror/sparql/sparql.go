// Package sparql is a minimal client for the target triple store's SPARQL
// endpoint. It only knows how to issue INSERT and DELETE statements and to
// read back the affected-triple count the store reports.
package sparql

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"

	"github.com/livemirror/livemirror/internal/version"
)

const acceptTypes = "application/sparql-results+json,text/javascript,application/json"

// The store reports how many triples a data-manipulation query touched inside
// a human-readable result message, e.g.
// `Insert into <http://example.org>, 5 (or less) triples -- done`.
// Parse failure means "count unknown", reported as zero.
var responsePattern = regexp.MustCompile(`.*>, (\d+) .* triples -- done`)

// Client issues SPARQL queries against a single endpoint and default graph,
// optionally with HTTP basic authentication.
type Client struct {
	client   *req.Client
	endpoint string
	graph    string
}

func New(endpoint, graph, username, password string) *Client {
	client := req.C().
		SetUserAgent(version.UserAgent()).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1 * time.Second).
		SetCommonHeader("Accept", acceptTypes)

	if username != "" || password != "" {
		client.SetCommonBasicAuth(username, password)
	}

	return &Client{
		client:   client,
		endpoint: endpoint,
		graph:    graph,
	}
}

type queryResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// Query sends the query and returns the number of triples the store reports
// as affected. Query-level failures (bad triple syntax, data conversion
// errors and the like) are logged and reported as zero so a single bad
// statement cannot stall the mirror.
func (c *Client) Query(ctx context.Context, query string) (int, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"query":             query,
			"default-graph-uri": c.graph,
			"format":            "JSON",
		}).
		Post(c.endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		slog.Error("sparql query failed", "error", err)
		return 0, nil
	}
	if resp.IsErrorState() {
		// e.g. Virtuoso 22007 Error DT006: cannot convert value to datetime
		body := resp.String()
		if len(body) > 256 {
			body = body[:256]
		}
		slog.Error("sparql query error", "status", resp.GetStatus(), "body", body, "query", query)
		return 0, nil
	}

	var result queryResponse
	if err := json.Unmarshal(resp.Bytes(), &result); err != nil {
		slog.Error("sparql response decode failed", "error", err)
		return 0, nil
	}

	return extractCount(&result), nil
}

// Insert issues `INSERT { stmt }`. A blank statement is a no-op.
func (c *Client) Insert(ctx context.Context, stmt string) (int, error) {
	if strings.TrimSpace(stmt) == "" {
		return 0, nil
	}
	return c.Query(ctx, fmt.Sprintf("INSERT { %s }", stmt))
}

// Delete issues `DELETE { stmt } WHERE { stmt }`. A blank statement is a
// no-op.
func (c *Client) Delete(ctx context.Context, stmt string) (int, error) {
	if strings.TrimSpace(stmt) == "" {
		return 0, nil
	}
	return c.Query(ctx, fmt.Sprintf("DELETE { %s } WHERE { %s }", stmt, stmt))
}

func extractCount(result *queryResponse) int {
	if len(result.Results.Bindings) == 0 {
		return 0
	}
	ret, ok := result.Results.Bindings[0]["callret-0"]
	if !ok {
		return 0
	}
	match := responsePattern.FindStringSubmatch(ret.Value)
	if match == nil {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}
