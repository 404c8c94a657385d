// Package fetcher implements a retrying HTTP fetcher: idempotent GET
// with exponential backoff and jitter, classifying every terminal
// failure into the error taxonomy. It generalizes the plain
// http.Client + manual retry-on-rate-limit pattern seen in
// syncer/worker.go's collectClosedPositions (which sleeps and retries
// once on a 429) into a bounded, jittered backoff loop shared by every
// caller.
package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/errtaxonomy"
)

const (
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 30 * time.Second
	userAgent        = "Mozilla/5.0 (X11; Linux x86_64) polycopy-fetcher/1.0"
)

// transportErrorCodes are transport-level failure codes treated as
// retryable network errors.
var transportErrorCodes = []string{"ETIMEDOUT", "ENETUNREACH", "ECONNRESET", "ECONNREFUSED"}

// Config tunes a Fetcher.
type Config struct {
	RetryLimit     int           // N attempts, minimum 1
	RequestTimeout time.Duration // per-attempt timeout
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	// RateLimit paces outbound requests independent of the retry
	// backoff. Zero disables pacing.
	RateLimit rate.Limit
	Burst     int
}

// Fetcher performs idempotent GETs with bounded retry.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New constructs a Fetcher. It forces IPv4 dialing and sets a realistic
// User-Agent so operator-side filtering doesn't reject the bot outright.
func New(cfg Config, logger *slog.Logger) *Fetcher {
	if cfg.RetryLimit < 1 {
		cfg.RetryLimit = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp4", addr)
		},
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}

	return &Fetcher{
		cfg:     cfg,
		client:  &http.Client{Transport: transport, Timeout: cfg.RequestTimeout},
		limiter: limiter,
		logger:  logger,
	}
}

// Get performs an idempotent GET against an absolute url, retrying
// classified-retryable failures up to cfg.RetryLimit attempts with
// exponential backoff plus jitter.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	correlationID := uuid.NewString()
	var lastErr *errtaxonomy.Error

	for attempt := 1; attempt <= f.cfg.RetryLimit; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, errtaxonomy.NewNetwork("RATE_LIMIT_WAIT_CANCELLED", err.Error(), err)
			}
		}

		body, classified := f.attempt(ctx, url)
		if classified == nil {
			return body, nil
		}
		lastErr = classified

		if !classified.IsRetryable || attempt == f.cfg.RetryLimit {
			f.logger.Error("fetch failed, giving up",
				"code", classified.Code, "severity", string(classified.Severity),
				"isRetryable", classified.IsRetryable, "type", string(classified.Kind),
				"correlationId", correlationID, "attempt", attempt, "url", url)
			return nil, lastErr
		}

		f.logger.Warn("fetch failed, retrying",
			"code", classified.Code, "severity", string(classified.Severity),
			"isRetryable", classified.IsRetryable, "type", string(classified.Kind),
			"correlationId", correlationID, "attempt", attempt, "url", url)

		delay := backoffDelay(attempt, f.cfg.BaseDelay, f.cfg.MaxDelay)
		select {
		case <-ctx.Done():
			return nil, errtaxonomy.NewNetwork("CONTEXT_CANCELLED", ctx.Err().Error(), ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// backoffDelay computes delay between attempts k and k+1 (1-indexed):
// min(baseDelay * 2^(k-1) + U[0,1s), maxDelay).
func backoffDelay(attempt int, base, maxDelay time.Duration) time.Duration {
	exp := base * time.Duration(1<<uint(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	d := exp + jitter
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

// attempt performs a single GET, returning a classified error on any
// failure. A network-class failure (no response, or a transport code in
// transportErrorCodes) or HTTP >= 500 is retryable; 4xx is not.
func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, *errtaxonomy.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errtaxonomy.NewValidation("BAD_REQUEST", err.Error(), err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, errtaxonomy.NewNetwork("READ_BODY_FAILED", readErr.Error(), readErr)
	}

	if resp.StatusCode >= 500 {
		return nil, errtaxonomy.NewAPI("HTTP_5XX", statusMessage(resp.StatusCode, body), nil).
			WithContext(map[string]any{"status": resp.StatusCode})
	}
	if resp.StatusCode >= 400 {
		apiErr := errtaxonomy.NewAPI("HTTP_4XX", statusMessage(resp.StatusCode, body), nil).
			WithContext(map[string]any{"status": resp.StatusCode})
		apiErr.IsRetryable = false
		return nil, apiErr
	}

	return body, nil
}

func statusMessage(status int, body []byte) string {
	const maxBodyEcho = 256
	b := string(body)
	if len(b) > maxBodyEcho {
		b = b[:maxBodyEcho]
	}
	return "http status " + http.StatusText(status) + ": " + b
}

// classifyTransportError distinguishes a network-class transport failure
// (no HTTP response at all) from anything else, applying the transport
// error code list above.
func classifyTransportError(err error) *errtaxonomy.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errtaxonomy.NewNetwork("TIMEOUT", err.Error(), err)
	}

	msg := err.Error()
	for _, code := range transportErrorCodes {
		if strings.Contains(msg, code) {
			return errtaxonomy.NewNetwork(code, msg, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errtaxonomy.NewNetwork("TIMEOUT", msg, err)
	}

	return errtaxonomy.NewNetwork("TRANSPORT_ERROR", msg, err)
}
