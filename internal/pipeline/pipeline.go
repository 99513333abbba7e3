// Package pipeline runs a chat turn end to end: safety evaluation, intent
// dispatch, triage, retrieval, generation, and composition, all inside the
// session's exclusive section. The safety verdict always wins; retrieval and
// generation never override it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/compose"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/intent"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/llm"
	haotel "github.com/Shahadat99x/healthcare-assistant-ai/internal/otel"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/resources"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/retrieval"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/safety"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/session"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/triage"
)

var tracer = haotel.Tracer("github.com/Shahadat99x/healthcare-assistant-ai/internal/pipeline")

// Pipeline modes. Baseline skips retrieval entirely, rag degrades gracefully
// when the index is down, rag_safety surfaces the index failure instead of
// answering without evidence.
const (
	ModeBaseline  = "baseline"
	ModeRAG       = "rag"
	ModeRAGSafety = "rag_safety"
)

// Generation defaults.
const (
	generationTemperature = 0.2
	generationMaxTokens   = 512
	emergencyResourceCap  = 3
)

var (
	// ErrEmptyMessage is returned when the chat message is blank.
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrUnknownMode is returned for a mode outside baseline/rag/rag_safety.
	ErrUnknownMode = errors.New("unknown pipeline mode")
)

// Request is one chat turn. SessionID may be empty, in which case a new
// session is created.
type Request struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Mode      string `json:"mode,omitempty"`
}

// Result is the outcome of a turn, echoing the session the turn ran under.
type Result struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
	*compose.ChatResponse
}

// Deps are the collaborators a Runner needs. Directory is optional; without
// it emergency and logistics replies simply carry no facility listings.
type Deps struct {
	Sessions  *session.Store
	Safety    *safety.Engine
	Triage    *triage.Classifier
	Retriever *retrieval.Engine
	Provider  llm.Provider
	Composer  *compose.Composer
	Directory *resources.Store

	Model       string
	DefaultMode string
}

// Runner executes chat turns.
type Runner struct {
	deps Deps
}

// NewRunner validates the collaborators and returns a Runner.
func NewRunner(deps Deps) (*Runner, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("pipeline: session store is required")
	case deps.Safety == nil:
		return nil, errors.New("pipeline: safety engine is required")
	case deps.Triage == nil:
		return nil, errors.New("pipeline: triage classifier is required")
	case deps.Provider == nil:
		return nil, errors.New("pipeline: generation provider is required")
	case deps.Model == "":
		return nil, errors.New("pipeline: generation model is required")
	}
	if deps.Composer == nil {
		deps.Composer = compose.NewComposer()
	}
	if deps.DefaultMode == "" {
		deps.DefaultMode = ModeRAGSafety
	}
	return &Runner{deps: deps}, nil
}

// Run executes one chat turn. All per-session state changes happen inside
// the session's exclusive section, so concurrent turns for the same session
// serialize and each observes the other's history and escalation state.
func (r *Runner) Run(ctx context.Context, req *Request) (*Result, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	mode := req.Mode
	if mode == "" {
		mode = r.deps.DefaultMode
	}
	switch mode {
	case ModeBaseline, ModeRAG, ModeRAGSafety:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("chat.session_id", sessionID),
		attribute.String("chat.mode", mode),
	))
	defer span.End()

	start := time.Now()
	var resp *compose.ChatResponse
	err := r.deps.Sessions.WithSession(sessionID, func(rec *session.Record) error {
		out, err := r.turn(ctx, mode, message, rec)
		if err != nil {
			return err
		}
		resp = out
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("chat.urgency", resp.Urgency),
		attribute.String("chat.response_kind", resp.ResponseKind),
		attribute.Bool("chat.grounded", resp.Grounded),
	)
	log.Ctx(ctx).Info().
		Func(haotel.LogTraceFields(ctx)).
		Str("session_id", sessionID).
		Str("mode", mode).
		Str("urgency", resp.Urgency).
		Str("response_kind", resp.ResponseKind).
		Bool("grounded", resp.Grounded).
		Dur("duration", time.Since(start)).
		Msg("chat turn completed")

	return &Result{SessionID: sessionID, Mode: mode, ChatResponse: resp}, nil
}

// turn runs the stages for one message. Called with the session record held
// exclusively.
func (r *Runner) turn(ctx context.Context, mode, message string, rec *session.Record) (*compose.ChatResponse, error) {
	intentLabel := intent.Classify(message)

	// Safety first. The verdict outranks intent: an escalated session stays
	// escalated even if the next message reads like small talk.
	verdict := r.deps.Safety.Evaluate(message, rec.Escalated)
	if verdict.Escalated() {
		rec.Escalated = true
		resp := r.deps.Composer.Compose(compose.Input{
			Verdict:            verdict,
			Intent:             intentLabel,
			EmergencyResources: r.emergencyFacilities(ctx),
		})
		r.record(rec, message, resp, nil)
		return resp, nil
	}
	if verdict.Action == safety.ActionRefuse {
		resp := r.deps.Composer.Compose(compose.Input{Verdict: verdict, Intent: intentLabel})
		r.record(rec, message, resp, nil)
		return resp, nil
	}

	switch intentLabel {
	case intent.Chitchat:
		resp := r.deps.Composer.Chitchat(intentLabel)
		r.record(rec, message, resp, nil)
		return resp, nil
	case intent.Meta:
		resp := r.deps.Composer.Meta(intentLabel)
		r.record(rec, message, resp, nil)
		return resp, nil
	case intent.Logistics:
		resp := r.logistics(ctx, intentLabel, message)
		r.record(rec, message, resp, nil)
		return resp, nil
	}

	profile := r.deps.Triage.Classify(message, rec)
	if profile.Urgency == triage.UrgencyUnknown {
		resp := r.deps.Composer.Compose(compose.Input{
			Verdict: verdict,
			Profile: profile,
			Intent:  intentLabel,
		})
		r.record(rec, message, resp, profile.Tags)
		return resp, nil
	}

	retr, err := r.retrieve(ctx, mode, message, profile)
	if err != nil {
		return nil, err
	}

	prompt := r.deps.Composer.BuildPrompt(message, rec.History(), retr, profile.Urgency)
	gen, err := r.deps.Provider.Generate(ctx, &llm.Request{
		Model:       r.deps.Model,
		Messages:    prompt,
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var facilities []resources.Facility
	if profile.Urgency == triage.UrgencyUrgent || profile.Urgency == triage.UrgencyEmergency {
		facilities = r.emergencyFacilities(ctx)
	}

	resp := r.deps.Composer.Compose(compose.Input{
		Verdict:            verdict,
		Profile:            profile,
		Retrieval:          retr,
		Generated:          gen.Content,
		Intent:             intentLabel,
		EmergencyResources: facilities,
	})
	r.record(rec, message, resp, profile.Tags)
	return resp, nil
}

// retrieve resolves retrieval for the given mode. In rag mode an index
// failure degrades to a not-grounded result; in rag_safety it is surfaced so
// the caller can refuse to answer without evidence.
func (r *Runner) retrieve(ctx context.Context, mode, message string, profile *triage.Profile) (*retrieval.Result, error) {
	if mode == ModeBaseline || r.deps.Retriever == nil {
		return retrieval.SkippedResult(), nil
	}
	retr, err := r.deps.Retriever.Retrieve(ctx, message, profile)
	if err != nil {
		if mode == ModeRAGSafety {
			return nil, err
		}
		log.Ctx(ctx).Warn().Err(err).Msg("retrieval degraded to ungrounded answer")
	}
	return retr, nil
}

func (r *Runner) logistics(ctx context.Context, intentLabel, message string) *compose.ChatResponse {
	if r.deps.Directory == nil {
		return r.deps.Composer.Logistics(intentLabel, nil, 0)
	}
	sector := resources.ExtractSector(message)
	q := resources.Query{
		Type:   resources.TypeFromMessage(message),
		Sector: sector,
	}
	found, err := r.deps.Directory.Find(ctx, q)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("facility lookup failed")
		found = nil
	}
	return r.deps.Composer.Logistics(intentLabel, found, sector)
}

func (r *Runner) emergencyFacilities(ctx context.Context) []resources.Facility {
	if r.deps.Directory == nil {
		return nil
	}
	found, err := r.deps.Directory.Emergency(ctx, emergencyResourceCap)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("emergency facility lookup failed")
		return nil
	}
	return found
}

// record appends the user and assistant turns and updates the session's
// carry-over fields. Called with the session record held exclusively.
func (r *Runner) record(rec *session.Record, message string, resp *compose.ChatResponse, tags []string) {
	limit := r.deps.Sessions.HistoryCap()
	now := time.Now()
	rec.Append(session.Turn{Role: "user", Content: message, At: now}, limit)
	rec.Append(session.Turn{Role: "assistant", Content: resp.AssistantMessage, Urgency: resp.Urgency, At: now}, limit)
	rec.LastUrgency = resp.Urgency
	if tags != nil {
		rec.LastTags = tags
	}
}
