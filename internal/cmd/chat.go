package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/compose"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/config"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/pipeline"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/resources"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/retrieval"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/safety"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/session"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/triage"
)

var (
	chatSessionID string
	chatMode      string
	chatJSON      bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Run one chat turn from the command line",
	Long: `Runs a single message through the full pipeline (safety, triage,
retrieval, generation) and prints the reply. Useful for smoke-testing a
deployment without the HTTP server.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "session id (default: new session)")
	chatCmd.Flags().StringVar(&chatMode, "mode", "", "pipeline mode: baseline, rag, or rag_safety (default: config)")
	chatCmd.Flags().BoolVar(&chatJSON, "json", false, "print the full response as JSON")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "chat")
	defer span.End()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	triager := triage.MustNewClassifier()
	retriever := retrieval.NewEngine(
		retrieval.NewHTTPIndex(cfg.IndexBaseURL),
		triager,
		retrieval.WithK(cfg.RetrievalK),
		retrieval.WithKeep(cfg.RetrievalKeep),
		retrieval.WithThreshold(cfg.GroundingThreshold),
	)

	directory, err := resources.NewStore(cfg.ResourcesDBPath())
	if err != nil {
		return fmt.Errorf("opening facility directory: %w", err)
	}
	defer directory.Close()

	runner, err := pipeline.NewRunner(pipeline.Deps{
		Sessions:    session.NewStore(session.WithHistoryCap(cfg.HistoryCap), session.WithTTL(cfg.SessionTTL)),
		Safety:      safety.MustNewEngine(),
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

	result, err := runner.Run(ctx, &pipeline.Request{
		SessionID: chatSessionID,
		Message:   strings.Join(args, " "),
		Mode:      chatMode,
	})
	if err != nil {
		return err
	}

	if chatJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(result.AssistantMessage)
	fmt.Printf("\n[session %s | urgency %s | %s]\n", result.SessionID, result.Urgency, result.ResponseKind)
	for i, c := range result.Citations {
		fmt.Printf("[%d] %s (%s) %s\n", i+1, c.Title, c.Org, c.SourceURL)
	}
	return nil
}
