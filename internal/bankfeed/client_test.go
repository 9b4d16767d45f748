package bankfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestGetTransfers_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/transfers" {
			t.Fatalf("path = %s, want /api/transfers", r.URL.Path)
		}
		if got := r.URL.Query().Get("since"); got != "c-1" {
			t.Fatalf("since = %q, want c-1", got)
		}

		resp := Batch{
			Transfers: []Transfer{{
				ID:        "t-1",
				Reference: "WJ79927398713",
				Amount:    decimal.RequireFromString("150.25"),
				Currency:  "PGK",
			}},
			Cursor: "c-2",
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.GetTransfers(ctx, "c-1")
	if err != nil {
		t.Fatalf("GetTransfers error: %v", err)
	}
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", code, http.StatusOK)
	}
	if retry != 0 {
		t.Fatalf("retryAfter = %v, want 0", retry)
	}
	if res == nil || res.Cursor != "c-2" || len(res.Transfers) != 1 {
		t.Fatalf("unexpected response: %+v", res)
	}
	if !res.Transfers[0].Amount.Equal(decimal.RequireFromString("150.25")) {
		t.Fatalf("unexpected amount: %s", res.Transfers[0].Amount)
	}
}

func TestGetTransfers_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.GetTransfers(ctx, "")
	if err != nil {
		t.Fatalf("GetTransfers error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil response for 429, got %+v", res)
	}
	if code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", code, http.StatusTooManyRequests)
	}
	if retry < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", retry)
	}
}

func TestGetTransfers_NoContentKeepsCursor(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewClient(strings.TrimPrefix(ts.URL, "http://"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, _, err := client.GetTransfers(ctx, "c-9")
	if err != nil {
		t.Fatalf("GetTransfers error: %v", err)
	}
	if code != http.StatusNoContent {
		t.Fatalf("status code = %d, want %d", code, http.StatusNoContent)
	}
	if res == nil || res.Cursor != "c-9" || len(res.Transfers) != 0 {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestGetTransfers_UnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	_, code, _, err := client.GetTransfers(context.Background(), "")
	if err == nil {
		t.Fatalf("expected error for 502")
	}
	if code != http.StatusBadGateway {
		t.Fatalf("status code = %d, want %d", code, http.StatusBadGateway)
	}
}

func TestGetTransfers_NotConfigured(t *testing.T) {
	var c *Client
	if _, _, _, err := c.GetTransfers(context.Background(), ""); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
