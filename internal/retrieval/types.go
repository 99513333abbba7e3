package retrieval

import "time"

// Result statuses. "Skipped" and "NotGrounded" are policy branches, not
// errors: the composer pattern-matches on the status instead of handling
// exceptions.
const (
	StatusGrounded    = "grounded"
	StatusNotGrounded = "not_grounded"
	StatusSkipped     = "skipped"
)

// Citation is one retrieved, trust-ranked source. Produced fresh per query
// and never mutated after creation.
type Citation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	Org         string    `json:"org,omitempty"`
	SourceType  string    `json:"source_type"`
	SourceURL   string    `json:"source_url,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
	TrustScore  float64   `json:"trust_score"` // normalized to [0,1]

	// FullText feeds the generation prompt; it is not serialized to clients.
	FullText string `json:"-"`
}

// Result is the outcome of one retrieval pass. Citations are ordered by
// final rank. Grounded is false whenever the retained set is empty, which
// forces the composer into generic guidance with zero citations.
type Result struct {
	Status    string     `json:"status"`
	Citations []Citation `json:"citations"`
}

// Grounded reports whether the result carries at least one retained citation.
func (r *Result) Grounded() bool {
	return r.Status == StatusGrounded && len(r.Citations) > 0
}

// SkippedResult is the fixed result used when policy short-circuits
// retrieval (unknown urgency, baseline mode).
func SkippedResult() *Result {
	return &Result{Status: StatusSkipped, Citations: []Citation{}}
}

// NotGroundedResult is the fixed result used when retrieval ran but nothing
// passed the grounding threshold, or the index was unavailable in a mode
// that degrades.
func NotGroundedResult() *Result {
	return &Result{Status: StatusNotGrounded, Citations: []Citation{}}
}
