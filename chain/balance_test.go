package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/breaker"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/errtaxonomy"
)

func TestBalanceProbe_DecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 12_345_000 micro-units == 12.345 USDC
		resp := rpcResponse{JsonRPC: "2.0", ID: 1, Result: "0xbc5ea8"}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	probe := New(srv.URL, "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", breaker.NewRegistry())
	balance, err := probe.GetBalance(context.Background(), "0x000000000000000000000000000000000000AA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 12.345 {
		t.Fatalf("balance = %v, want 12.345", balance)
	}
}

func TestBalanceProbe_EmptyResultIsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := rpcResponse{JsonRPC: "2.0", ID: 1, Result: "0x"}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	probe := New(srv.URL, "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", breaker.NewRegistry())
	balance, err := probe.GetBalance(context.Background(), "0x000000000000000000000000000000000000AA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance = %v, want 0", balance)
	}
}

func TestBalanceProbe_ClassifiesFailureAndRedactsAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := breaker.NewRegistry()
	// Register the breaker with threshold 1; it is still closed, so the
	// call reaches the server and its 500 is wrapped by GetBalance.
	b := reg.GetBreaker(BreakerName, 1, 0)
	_ = b

	probe := New(srv.URL, "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", reg)
	_, err := probe.GetBalance(context.Background(), "0x0000000000000000000000000000000000dEaD")
	if err == nil {
		t.Fatal("expected an error")
	}
	classified, ok := errtaxonomy.As(err)
	if !ok {
		t.Fatalf("expected a taxonomy error, got %v", err)
	}
	if classified.Kind != errtaxonomy.API {
		t.Fatalf("Kind = %s, want API", classified.Kind)
	}
	if !strings.Contains(classified.Message, "0x0000...dEaD") {
		t.Fatalf("Message = %q, want the redacted address 0x0000...dEaD", classified.Message)
	}
}
