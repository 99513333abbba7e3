package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/retrieval"
)

// NewIndexServer starts an httptest.Server that answers POST /v1/query with
// the given hits regardless of the query, and GET /health for health checks.
// Caller must register t.Cleanup(server.Close).
func NewIndexServer(hits []retrieval.Hit) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"hits": hits})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

// NewFailingIndexServer starts an httptest.Server that answers every query
// with the given status code, for degradation tests.
func NewFailingIndexServer(status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index down", status)
	}))
}

// GuidelineHits returns a small realistic hit set for ranking tests: one
// trusted-org hit, one untrusted blog hit, and one far hit below any sane
// grounding threshold.
func GuidelineHits() []retrieval.Hit {
	return []retrieval.Hit{
		{
			ID:          "nhs-fever-001",
			Text:        "Fever in adults: a temperature above 38C usually accompanies infection. Rest and fluids are advised; seek care if it lasts more than three days.",
			Distance:    0.4,
			Title:       "Fever in adults",
			Org:         "NHS",
			DocType:     "guideline",
			SourceURL:   "https://www.nhs.uk/conditions/fever-in-adults/",
			Tags:        []string{"fever"},
			LastUpdated: time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "blog-fever-901",
			Text:        "My experience with a high fever and what worked for me at home.",
			Distance:    0.5,
			Title:       "Fever home remedies",
			Org:         "HealthBlog",
			DocType:     "blog",
			SourceURL:   "https://example.com/fever",
			Tags:        []string{"fever"},
			LastUpdated: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "who-nutrition-310",
			Text:        "Guidance on micronutrient intake for adults.",
			Distance:    1.9,
			Title:       "Micronutrient guidance",
			Org:         "WHO",
			DocType:     "guideline",
			SourceURL:   "https://www.who.int/nutrition",
			Tags:        []string{"nutrition"},
			LastUpdated: time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
		},
	}
}
