// Package syncer pushes calendar snapshots to an external aggregation
// endpoint. The push is fire-and-forget from the caller's point of
// view: failures are reported in the result, never retried here.
package syncer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PushResult reports the outcome of a single push attempt.
type PushResult struct {
	Success    bool   `json:"success"`
	EventCount int    `json:"event_count"`
	Error      string `json:"error,omitempty"`
}

// Pusher delivers serialized iCalendar payloads over HTTP.
type Pusher struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

// NewPusher creates a pusher targeting endpoint. headers, usually
// authentication, are sent verbatim on every push; the pusher never
// interprets them. A zero timeout disables the client-side deadline.
func NewPusher(endpoint string, timeout time.Duration, headers map[string]string) *Pusher {
	return &Pusher{
		endpoint: endpoint,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}
}

// Endpoint reports the configured target URL.
func (p *Pusher) Endpoint() string {
	return p.endpoint
}

// Push POSTs the payload to the configured endpoint. eventCount is
// carried through to the result for reporting.
func (p *Pusher) Push(ctx context.Context, payload []byte, eventCount int) PushResult {
	if p.endpoint == "" {
		return PushResult{EventCount: eventCount, Error: "no sync endpoint configured"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return PushResult{EventCount: eventCount, Error: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")
	req.Header.Set("User-Agent", "notecal-sync/1.0")
	for name, value := range p.headers {
		req.Header.Set(name, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return PushResult{EventCount: eventCount, Error: fmt.Sprintf("push failed: %v", err)}
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return PushResult{EventCount: eventCount, Error: fmt.Sprintf("remote returned %s", resp.Status)}
	}

	return PushResult{Success: true, EventCount: eventCount}
}
