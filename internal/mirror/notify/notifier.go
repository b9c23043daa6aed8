// Package notify posts best-effort webhook notifications after each applied
// delta batch. Delivery is fire-and-forget: a lost notification never affects
// the mirror's correctness.
package notify

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/imroc/req/v3"

	"github.com/livemirror/livemirror/internal/version"
)

// Action tells the receiver whether the batch added or removed triples.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

type payload struct {
	Triples  []string `json:"triples"`
	Action   Action   `json:"action"`
	Password string   `json:"password"`
}

// Notifier filters batch lines against a configured pattern and posts the
// matches (deduplicated) to a webhook. A nil Notifier is valid and does
// nothing, which is how an unconfigured webhook is represented.
type Notifier struct {
	client   *req.Client
	url      string
	password string
	pattern  *regexp.Regexp
}

// New builds a Notifier, or nil when no URL is configured. An empty pattern
// matches every line.
func New(url, password, pattern string) (*Notifier, error) {
	if url == "" {
		return nil, nil
	}
	if pattern == "" {
		pattern = ".*"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	client := req.C().
		SetUserAgent(version.UserAgent()).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal).
		SetTimeout(10 * time.Second)

	return &Notifier{
		client:   client,
		url:      url,
		password: password,
		pattern:  re,
	}, nil
}

// Notify posts the pattern-matching lines of one batch. Duplicates are
// dropped, and nothing is sent when no line matches. Delivery failures are
// logged at debug level and discarded.
func (n *Notifier) Notify(ctx context.Context, lines []string, action Action) {
	if n == nil {
		return
	}

	matched := mapset.NewThreadUnsafeSet[string]()
	for _, line := range lines {
		if n.pattern.MatchString(line) {
			matched.Add(line)
		}
	}
	if matched.Cardinality() == 0 {
		return
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", uuid.New().String()).
		SetBodyJsonMarshal(payload{
			Triples:  matched.ToSlice(),
			Action:   action,
			Password: n.password,
		}).
		Post(n.url)
	if err != nil {
		slog.Debug("notify failed", "url", n.url, "error", err)
		return
	}
	if resp.IsErrorState() {
		slog.Debug("notify rejected", "url", n.url, "status", resp.GetStatus())
	}
}
