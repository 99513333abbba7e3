// Package testutil provides httptest doubles for the external collaborators:
// the Ollama generation endpoint, the vector index service, and a seeded
// facility directory.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
)

// NewOllamaServer starts an httptest.Server that answers POST /api/chat with
// the given assistant content and GET /api/tags for health checks. Caller
// must register t.Cleanup(server.Close).
func NewOllamaServer(content string) *httptest.Server {
	if content == "" {
		content = "mock advice"
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		resp := map[string]interface{}{
			"message":     map[string]string{"role": "assistant", "content": content},
			"done_reason": "stop",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	return httptest.NewServer(mux)
}

// NewFailingOllamaServer starts an httptest.Server that answers every chat
// request with the given status code, for unavailability tests.
func NewFailingOllamaServer(status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", status)
	}))
}
