package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/compose"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/config"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/llm"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/pipeline"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/resources"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/retrieval"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/safety"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/server"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/session"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/triage"
)

var (
	servePort      int
	serveRulesFile string
	serveVocabFile string
	serveFacility  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP server port (overrides config)")
	serveCmd.Flags().StringVar(&serveRulesFile, "rules", "", "safety rule pack override YAML (merged over the embedded pack)")
	serveCmd.Flags().StringVar(&serveVocabFile, "vocab", "", "triage vocabulary override YAML (merged over the embedded pack)")
	serveCmd.Flags().StringVar(&serveFacility, "facilities", "", "facility dataset JSON to import on startup")
	rootCmd.AddCommand(serveCmd)
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.GenerationProvider {
	case "ollama":
		return llm.NewOllamaProvider(cfg.OllamaBaseURL), nil
	case "openai":
		return llm.NewOpenAIProvider(cfg.OpenAIAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.GenerationProvider)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	safetyEngine, err := safety.NewEngine(serveRulesFile)
	if err != nil {
		return fmt.Errorf("loading safety rules: %w", err)
	}
	triager, err := triage.NewClassifier(serveVocabFile)
	if err != nil {
		return fmt.Errorf("loading triage vocabulary: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	index := retrieval.NewHTTPIndex(cfg.IndexBaseURL)
	retrOpts := []retrieval.Option{
		retrieval.WithK(cfg.RetrievalK),
		retrieval.WithKeep(cfg.RetrievalKeep),
		retrieval.WithThreshold(cfg.GroundingThreshold),
	}
	if len(cfg.TrustedOrgs) > 0 {
		retrOpts = append(retrOpts, retrieval.WithTrustedOrgs(cfg.TrustedOrgs))
	}
	retriever := retrieval.NewEngine(index, triager, retrOpts...)

	directory, err := resources.NewStore(cfg.ResourcesDBPath())
	if err != nil {
		return fmt.Errorf("opening facility directory: %w", err)
	}
	defer directory.Close()

	if serveFacility != "" {
		n, err := directory.ImportFile(ctx, serveFacility)
		if err != nil {
			return fmt.Errorf("importing facility dataset: %w", err)
		}
		log.Info().Int("count", n).Str("path", serveFacility).Msg("facility dataset imported")
	}

	sessions := session.NewStore(
		session.WithHistoryCap(cfg.HistoryCap),
		session.WithTTL(cfg.SessionTTL),
	)

	runner, err := pipeline.NewRunner(pipeline.Deps{
		Sessions:    sessions,
		Safety:      safetyEngine,
		Triage:      triager,
		Retriever:   retriever,
		Provider:    provider,
		Composer:    compose.NewComposer(),
		Directory:   directory,
		Model:       cfg.GenerationModel,
		DefaultMode: cfg.DefaultMode,
	})
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	// Expired-session sweep on a fixed schedule
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 5m", func() {
		if n := sessions.Sweep(time.Now()); n > 0 {
			log.Debug().Int("expired", n).Msg("session sweep")
		}
	}); err != nil {
		return fmt.Errorf("registering session sweep: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	if len(cfg.APIKeys) == 0 {
		log.Warn().Msg("HEALTHASSIST_API_KEYS not set; chat endpoints are open. Set for production.")
	}

	opts := []server.Option{
		server.WithDirectory(directory),
		server.WithAPIKeys(cfg.APIKeys),
		server.WithCORSOrigins(cfg.CORSOrigins),
		server.WithRateLimits(cfg.GlobalRPM, cfg.PerClientRPM),
	}
	if p, ok := provider.(*llm.OllamaProvider); ok {
		opts = append(opts, server.WithReadyCheck("generation_model", func(r *http.Request) bool {
			return p.CheckHealth(r.Context())
		}))
	}
	opts = append(opts, server.WithReadyCheck("guideline_index", func(r *http.Request) bool {
		return index.CheckHealth(r.Context())
	}))

	srv := server.NewServer(runner, sessions, opts...)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Str("provider", provider.Name()).
		Str("model", cfg.GenerationModel).
		Str("default_mode", cfg.DefaultMode).
		Str("index", cfg.IndexBaseURL).
		Msg("healthassist_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
