// Package retrieval implements the evidence side of the pipeline: query
// expansion, similarity search against the external vector index, trust
// re-ranking, and grounding enforcement. When nothing survives the grounding
// threshold the engine returns zero citations rather than letting the
// generation stage fabricate sourced claims.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	haotel "github.com/Shahadat99x/healthcare-assistant-ai/internal/otel"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/triage"
)

var tracer = haotel.Tracer("github.com/Shahadat99x/healthcare-assistant-ai/internal/retrieval")

// Scoring constants. Base score is 2.0 minus the vector distance, so the
// grounding threshold of 0.72 corresponds to the distance cutoff of 1.28
// observed to separate relevant chunks from hallucination bait.
const (
	DefaultK          = 8
	DefaultKeep       = 5
	DefaultThreshold  = 0.72
	trustedOrgBoost   = 0.5
	tagOverlapBoost   = 0.3
	maxSnippetRunes   = 240
	baseScoreCeiling  = 2.0
	trustScoreCeiling = 3.0 // base 2.0 + org boost + one tag overlap, roughly
)

// DefaultTrustedOrgs are the recognized public-health authorities whose
// chunks rank above generic sources.
var DefaultTrustedOrgs = []string{"NHS", "WHO", "CDC", "NICE"}

// Engine performs retrieval with trust-weighted re-ranking.
type Engine struct {
	index       Index
	expander    *triage.Classifier
	k           int
	keep        int
	threshold   float64
	trustedOrgs map[string]bool
}

// Option configures the Engine.
type Option func(*Engine)

// WithK overrides the number of candidates fetched from the index.
func WithK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.k = k
		}
	}
}

// WithKeep overrides how many re-ranked citations are retained.
func WithKeep(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.keep = n
		}
	}
}

// WithThreshold overrides the grounding threshold on the trust-weighted score.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 {
			e.threshold = t
		}
	}
}

// WithTrustedOrgs overrides the trusted organization list.
func WithTrustedOrgs(orgs []string) Option {
	return func(e *Engine) {
		e.trustedOrgs = make(map[string]bool, len(orgs))
		for _, o := range orgs {
			e.trustedOrgs[o] = true
		}
	}
}

// NewEngine creates a retrieval engine over the given index. expander
// provides the deterministic per-tag expansion terms from the triage
// vocabulary; it may be nil, in which case only the raw tags are appended.
func NewEngine(index Index, expander *triage.Classifier, opts ...Option) *Engine {
	e := &Engine{
		index:     index,
		expander:  expander,
		k:         DefaultK,
		keep:      DefaultKeep,
		threshold: DefaultThreshold,
	}
	e.trustedOrgs = make(map[string]bool, len(DefaultTrustedOrgs))
	for _, o := range DefaultTrustedOrgs {
		e.trustedOrgs[o] = true
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExpandQuery builds the embedding query: the raw message, the profile's
// symptom tags, then the fixed expansion terms for those tags. Reproducible
// for identical inputs.
func (e *Engine) ExpandQuery(message string, profile *triage.Profile) string {
	parts := []string{message}
	if profile != nil && len(profile.Tags) > 0 {
		parts = append(parts, strings.Join(profile.Tags, " "))
		if e.expander != nil {
			parts = append(parts, e.expander.ExpansionTerms(profile.Tags)...)
		}
	}
	return strings.Join(parts, " ")
}

// Retrieve runs the full pass: expansion, similarity search, re-ranking and
// grounding enforcement. An index failure returns (NotGroundedResult, err)
// with err wrapping ErrIndexUnavailable; the caller chooses between
// degrading and surfacing based on the request mode. A healthy pass with an
// empty retained set is not an error.
func (e *Engine) Retrieve(ctx context.Context, message string, profile *triage.Profile) (*Result, error) {
	ctx, span := tracer.Start(ctx, "retrieval.retrieve")
	defer span.End()

	query := e.ExpandQuery(message, profile)
	span.SetAttributes(attribute.Int("retrieval.k", e.k))

	hits, err := e.index.Query(ctx, query, e.k)
	if err != nil {
		span.RecordError(err)
		log.Warn().Err(err).Func(haotel.LogTraceFields(ctx)).Msg("index_query_failed")
		return NotGroundedResult(), err
	}

	citations := e.rank(hits, profile)
	span.SetAttributes(
		attribute.Int("retrieval.candidates", len(hits)),
		attribute.Int("retrieval.retained", len(citations)),
	)

	if len(citations) == 0 {
		return NotGroundedResult(), nil
	}
	return &Result{Status: StatusGrounded, Citations: citations}, nil
}

// scored pairs a hit with its trust-weighted score during re-ranking.
type scored struct {
	hit   Hit
	score float64
}

// rank applies the trust-weighted scoring and the grounding threshold.
// Final rank = (2.0 - distance) + org boost + tag-overlap boosts; ties break
// toward the more recently updated source.
func (e *Engine) rank(hits []Hit, profile *triage.Profile) []Citation {
	var kept []scored
	for _, h := range hits {
		score := baseScoreCeiling - h.Distance
		if e.trustedOrgs[h.Org] {
			score += trustedOrgBoost
		}
		if profile != nil {
			for _, tag := range profile.Tags {
				for _, docTag := range h.Tags {
					if tag == docTag {
						score += tagOverlapBoost
						break
					}
				}
			}
		}
		if score < e.threshold {
			continue
		}
		kept = append(kept, scored{hit: h, score: score})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].hit.LastUpdated.After(kept[j].hit.LastUpdated)
	})

	if len(kept) > e.keep {
		kept = kept[:e.keep]
	}

	citations := make([]Citation, 0, len(kept))
	for _, s := range kept {
		citations = append(citations, Citation{
			ID:          s.hit.ID,
			Title:       orDefault(s.hit.Title, "Unknown Source"),
			Snippet:     snippet(s.hit.Text),
			Org:         s.hit.Org,
			SourceType:  orDefault(s.hit.DocType, "reference"),
			SourceURL:   s.hit.SourceURL,
			LastUpdated: s.hit.LastUpdated,
			TrustScore:  clamp01(s.score / trustScoreCeiling),
			FullText:    s.hit.Text,
		})
	}
	return citations
}

func snippet(text string) string {
	if utf8.RuneCountInString(text) <= maxSnippetRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxSnippetRunes]) + "..."
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
