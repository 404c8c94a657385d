package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/errtaxonomy"
)

func newTestFetcher(retryLimit int) *Fetcher {
	return New(Config{
		RetryLimit:     retryLimit,
		RequestTimeout: 2 * time.Second,
		BaseDelay:      1 * time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
	}, nil)
}

func TestFetcher_SucceedsAfterTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(3)
	body, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("body = %q, want ok", body)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestFetcher_4xxFailsAfterExactlyOneCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(3)
	_, err := f.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error")
	}
	classified, ok := errtaxonomy.As(err)
	if !ok {
		t.Fatalf("expected a taxonomy error, got %v", err)
	}
	if classified.Kind != errtaxonomy.API || classified.IsRetryable {
		t.Fatalf("expected non-retryable API error, got kind=%s retryable=%v", classified.Kind, classified.IsRetryable)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want exactly 1", calls)
	}
}

func TestFetcher_5xxRetriesUntilBudgetExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(3)
	_, err := f.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error")
	}
	classified, ok := errtaxonomy.As(err)
	if !ok {
		t.Fatalf("expected a taxonomy error, got %v", err)
	}
	if classified.Kind != errtaxonomy.API || !classified.IsRetryable {
		t.Fatalf("terminal 5xx should still report retryable=true (retryability reflects the terminal condition), got %v", classified.IsRetryable)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (retry budget exhausted)", calls)
	}
}

func TestFetcher_TransportFailureClassifiedNetwork(t *testing.T) {
	f := newTestFetcher(1)
	_, err := f.Get(context.Background(), "http://127.0.0.1:1")
	if err == nil {
		t.Fatal("expected connection failure")
	}
	classified, ok := errtaxonomy.As(err)
	if !ok {
		t.Fatalf("expected a taxonomy error, got %v", err)
	}
	if classified.Kind != errtaxonomy.Network {
		t.Fatalf("Kind = %s, want NETWORK", classified.Kind)
	}
}

func TestBackoffDelay_BoundedByMax(t *testing.T) {
	d := backoffDelay(10, 1*time.Second, 30*time.Second)
	if d > 30*time.Second {
		t.Fatalf("delay = %v, want <= max", d)
	}
}

func TestBackoffDelay_GrowsExponentially(t *testing.T) {
	d1 := backoffDelay(1, time.Second, time.Hour)
	d5 := backoffDelay(5, time.Second, time.Hour)
	// d1 in [1s, 2s), d5 in [16s, 17s) before jitter cap.
	if d1 >= 2*time.Second {
		t.Fatalf("d1 = %v, want < 2s", d1)
	}
	if d5 < 16*time.Second {
		t.Fatalf("d5 = %v, want >= 16s", d5)
	}
}
