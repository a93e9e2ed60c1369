// Package client ships finished traces to a remote collector. An agent
// process attaches a Reporter to its local tracer and every sealed
// trace is reported to the collector's ingest endpoint, where it is
// reconciled into the matching server-side trace.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/ereojs/devtrace/internal/infrastructure/resilience"
	"github.com/ereojs/devtrace/internal/tracing"
)

// ErrUnknownTrace is returned when the collector has no trace with the
// reported id. Retrying will not help; the trace was either never
// started on the collector or already evicted.
var ErrUnknownTrace = errors.New("collector does not know this trace")

const (
	defaultTimeout  = 5 * time.Second
	defaultRetryMax = 2
)

// Config controls the reporter's transport behavior.
type Config struct {
	// BaseURL is the collector address, e.g. "http://localhost:8090".
	BaseURL string

	// Timeout bounds a single report attempt. Defaults to 5s.
	Timeout time.Duration

	// RetryMax is the number of retries per report. Defaults to 2.
	RetryMax int

	// Breaker tunes the circuit protecting the collector endpoint.
	// Zero values fall back to the resilience package defaults.
	Breaker resilience.Settings
}

// Reporter posts sealed traces to a collector.
type Reporter struct {
	cfg     Config
	logger  *zap.Logger
	http    *retryablehttp.Client
	breaker *resilience.Breaker
}

// NewReporter creates a reporter for the given collector.
func NewReporter(cfg Config, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = defaultRetryMax
	}

	hc := retryablehttp.NewClient()
	hc.RetryMax = cfg.RetryMax
	hc.RetryWaitMin = 100 * time.Millisecond
	hc.RetryWaitMax = time.Second
	hc.HTTPClient.Timeout = cfg.Timeout
	hc.Logger = nil

	return &Reporter{
		cfg:     cfg,
		logger:  logger,
		http:    hc,
		breaker: resilience.New("trace-reporter", cfg.Breaker),
	}
}

type reportPayload struct {
	Spans []tracing.Span `json:"spans"`
}

// Report posts the given spans for traceID. A 404 from the collector
// maps to ErrUnknownTrace; transport failures and 5xx responses count
// against the circuit breaker.
func (r *Reporter) Report(ctx context.Context, traceID string, spans []tracing.Span) error {
	if len(spans) == 0 {
		return nil
	}

	body, err := sonic.Marshal(reportPayload{Spans: spans})
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	url := strings.TrimRight(r.cfg.BaseURL, "/") + "/traces/" + traceID + "/spans"

	return r.breaker.Execute(func() error {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
		if err != nil {
			return fmt.Errorf("build report request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.http.Do(req)
		if err != nil {
			return fmt.Errorf("report trace %s: %w", traceID, err)
		}
		defer func() {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("report trace %s: %w", traceID, ErrUnknownTrace)
		case resp.StatusCode >= http.StatusBadRequest:
			return fmt.Errorf("report trace %s: collector returned %d", traceID, resp.StatusCode)
		}
		return nil
	})
}

// Attach subscribes the reporter to the tracer and ships every sealed
// trace in the background. The returned function detaches it. The bus
// dispatches synchronously, so the actual upload happens on a separate
// goroutine to keep span teardown fast.
func (r *Reporter) Attach(tracer *tracing.Tracer) func() {
	return tracer.Subscribe(func(evt tracing.Event) {
		if evt.Type != tracing.EventTraceEnd || evt.Trace == nil {
			return
		}

		spans := make([]tracing.Span, 0, len(evt.Trace.Spans))
		for _, s := range evt.Trace.Spans {
			spans = append(spans, *s)
		}
		traceID := evt.TraceID

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
			defer cancel()

			if err := r.Report(ctx, traceID, spans); err != nil {
				r.logger.Warn("trace report failed",
					zap.String("trace_id", traceID),
					zap.Int("spans", len(spans)),
					zap.Error(err),
				)
			}
		}()
	})
}
