package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func useServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	oldURL, oldToken := serverURL, token
	serverURL = srv.URL
	t.Cleanup(func() {
		srv.Close()
		serverURL, token = oldURL, oldToken
	})
}

func TestCallSendsBearerToken(t *testing.T) {
	var auth string
	useServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"reply": "ok"})
	})
	token = "secret-token"

	var out struct {
		Reply string `json:"reply"`
	}
	if err := call(http.MethodGet, "/api/v1/stats", nil, &out); err != nil {
		t.Fatalf("call() error = %v", err)
	}
	if auth != "Bearer secret-token" {
		t.Fatalf("Authorization = %q, want Bearer secret-token", auth)
	}
	if out.Reply != "ok" {
		t.Fatalf("reply = %q, want ok", out.Reply)
	}
}

func TestCallWithoutToken(t *testing.T) {
	var auth string
	useServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Authorization header is required"})
	})
	token = ""

	err := call(http.MethodGet, "/api/v1/stats", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "Authorization header is required") {
		t.Fatalf("call() error = %v, want server error message", err)
	}
	if auth != "" {
		t.Fatalf("Authorization = %q, want empty", auth)
	}
}
