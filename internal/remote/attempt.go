package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/foundermafstat/mafcoach-gateway/internal/redact"
	"github.com/foundermafstat/mafcoach-gateway/internal/telemetry"
	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// maxDetailBytes bounds the response-body snippet captured per failed attempt.
const maxDetailBytes = 512

// Operation describes one remote exchange: the strategy family to use and
// the HTTP method/path relative to the remote base URL.
type Operation struct {
	Family Family
	Method string
	Path   string
}

// AttemptRecord is the diagnostic trace of a single strategy attempt.
// Status is 0 for transport-level failures (DNS, timeout, reset). Header
// values and body snippets are redacted before the record is built.
type AttemptRecord struct {
	Strategy string            `json:"strategy"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// AllFailedError reports that every strategy in the table was rejected.
// Diagnostics has exactly one entry per strategy, in table order; it must
// stay attached wherever the error surfaces since it is the only debugging
// signal an operator gets.
type AllFailedError struct {
	Operation   Operation
	Diagnostics []AttemptRecord
}

func (e *AllFailedError) Error() string {
	names := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		names[i] = fmt.Sprintf("%s=%d", d.Strategy, d.Status)
	}
	return fmt.Sprintf("all %d auth strategies failed for %s %s: %s",
		len(e.Diagnostics), e.Operation.Method, e.Operation.Path, strings.Join(names, ", "))
}

// LastStatus returns the most recent non-zero HTTP status among the failed
// attempts, or 0 if every failure was transport-level.
func (e *AllFailedError) LastStatus() int {
	for i := len(e.Diagnostics) - 1; i >= 0; i-- {
		if e.Diagnostics[i].Status != 0 {
			return e.Diagnostics[i].Status
		}
	}
	return 0
}

// Outcome is a successful remote exchange. Attempts includes the failed
// strategies that preceded the winner plus the winning attempt itself.
type Outcome struct {
	Status   int
	Body     []byte
	Strategy string
	Attempts []AttemptRecord
}

// Attempter drives the ordered strategy loop against the remote API.
type Attempter struct {
	client     *http.Client
	baseURL    string
	apiVersion string
	metrics    *telemetry.Metrics
}

func NewAttempter(client *http.Client, baseURL, apiVersion string, metrics *telemetry.Metrics) *Attempter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Attempter{
		client:     client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
		metrics:    metrics,
	}
}

// Attempt tries each strategy for the operation's family in order, returning
// on the first success. Strategies after the winner are never attempted.
// Failures, HTTP error statuses and transport errors alike, are recorded
// and the loop advances; a strategy is never retried. When every strategy
// fails the returned error is an *AllFailedError carrying the full trace.
func (a *Attempter) Attempt(ctx context.Context, op Operation, bundle types.CredentialBundle, body []byte) (*Outcome, error) {
	strategies := StrategiesFor(op.Family)
	r := redact.New(bundle.APIKey)
	url := a.baseURL + op.Path

	var diagnostics []AttemptRecord

	for i, strat := range strategies {
		headers := strat.Headers(bundle, a.apiVersion)

		var reader io.Reader
		if len(body) > 0 {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, op.Method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("build request %s %s: %w", op.Method, url, err)
		}
		if len(body) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			rec := AttemptRecord{
				Strategy: strat.Name,
				Status:   0,
				Detail:   r.Scrub(err.Error()),
				Headers:  r.ScrubHeaders(headers),
			}
			diagnostics = append(diagnostics, rec)
			a.recordAttempt(op, strat.Name, "transport_error")
			slog.Debug("strategy attempt failed",
				"family", string(op.Family), "strategy", strat.Name, "error", r.Scrub(err.Error()))
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			diagnostics = append(diagnostics, AttemptRecord{
				Strategy: strat.Name,
				Status:   resp.StatusCode,
				Detail:   r.Scrub(readErr.Error()),
				Headers:  r.ScrubHeaders(headers),
			})
			a.recordAttempt(op, strat.Name, "transport_error")
			continue
		}

		if strat.accepts(resp.StatusCode) {
			attempts := append(diagnostics, AttemptRecord{
				Strategy: strat.Name,
				Status:   resp.StatusCode,
				Headers:  r.ScrubHeaders(headers),
			})
			a.recordAttempt(op, strat.Name, "success")
			a.recordWinner(op, i)
			return &Outcome{
				Status:   resp.StatusCode,
				Body:     respBody,
				Strategy: strat.Name,
				Attempts: attempts,
			}, nil
		}

		diagnostics = append(diagnostics, AttemptRecord{
			Strategy: strat.Name,
			Status:   resp.StatusCode,
			Detail:   r.Scrub(truncate(respBody, maxDetailBytes)),
			Headers:  r.ScrubHeaders(headers),
		})
		a.recordAttempt(op, strat.Name, "rejected")
	}

	a.recordAttempt(op, "all", "all_failed")
	return nil, &AllFailedError{Operation: op, Diagnostics: diagnostics}
}

func (a *Attempter) recordAttempt(op Operation, strategy, outcome string) {
	if a.metrics != nil {
		a.metrics.RecordAttempt(string(op.Family), strategy, outcome)
	}
}

func (a *Attempter) recordWinner(op Operation, index int) {
	if a.metrics != nil {
		a.metrics.RecordWinnerIndex(string(op.Family), index)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
