package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/safety"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/triage"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate the safety and triage packs",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [rules.yaml] [vocab.yaml]",
	Short: "Validate override packs against the engine",
	Long: `Compiles the embedded packs merged with the given overrides and reports
the first error. With no arguments, validates the embedded packs alone.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "rules.validate")
		defer span.End()

		var rulesPath, vocabPath string
		if len(args) > 0 {
			rulesPath = args[0]
		}
		if len(args) > 1 {
			vocabPath = args[1]
		}

		if _, err := safety.NewEngine(rulesPath); err != nil {
			return fmt.Errorf("safety rules: %w", err)
		}
		if _, err := triage.NewClassifier(vocabPath); err != nil {
			return fmt.Errorf("triage vocabulary: %w", err)
		}
		fmt.Println("OK")
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesValidateCmd)
	rootCmd.AddCommand(rulesCmd)
}
