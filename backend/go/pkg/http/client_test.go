package http

import (
	"Friday/backend/go/internal/config"
	"Friday/backend/go/pkg/circuitbreaker"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPostJSON(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(config.CircuitBreakerConfig{}, time.Second)
	if err := c.PostJSON(context.Background(), srv.URL, map[string]string{"text": "hi"}); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if got["text"] != "hi" {
		t.Fatalf("server received %v", got)
	}
}

func TestPostJSON_BreakerOpensOnServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(config.CircuitBreakerConfig{Enabled: true, FailureThreshold: 2, SuccessThreshold: 1, OpenSeconds: 60}, time.Second)
	for i := 0; i < 2; i++ {
		if err := c.PostJSON(context.Background(), srv.URL, map[string]string{}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	err := c.PostJSON(context.Background(), srv.URL, map[string]string{})
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("PostJSON() error = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Fatalf("server calls = %d, want 2", calls)
	}
}

func TestPostJSON_ClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(config.CircuitBreakerConfig{}, time.Second)
	if err := c.PostJSON(context.Background(), srv.URL, map[string]string{}); err == nil {
		t.Fatal("expected error for 403")
	}
}
