package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/config"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/resources"
)

var (
	resourcesType   string
	resourcesSector int
	resourcesLimit  int
)

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "Manage the curated facility directory",
}

var resourcesImportCmd = &cobra.Command{
	Use:   "import <dataset.json>",
	Short: "Import a facility dataset into the directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "resources.import")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.EnsureDataDir(); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		store, err := resources.NewStore(cfg.ResourcesDBPath())
		if err != nil {
			return fmt.Errorf("opening facility directory: %w", err)
		}
		defer store.Close()

		n, err := store.ImportFile(ctx, args[0])
		if err != nil {
			return err
		}
		total, err := store.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d records (%d total)\n", n, total)
		return nil
	},
}

var resourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List directory records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "resources.list")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		store, err := resources.NewStore(cfg.ResourcesDBPath())
		if err != nil {
			return fmt.Errorf("opening facility directory: %w", err)
		}
		defer store.Close()

		found, err := store.Find(ctx, resources.Query{
			Type:   resourcesType,
			Sector: resourcesSector,
			Limit:  resourcesLimit,
		})
		if err != nil {
			return err
		}
		for _, f := range found {
			fmt.Printf("%-30s %-10s sector %d  %s  %s\n", f.Name, f.Type, f.Sector, f.Address, f.Phone)
		}
		fmt.Printf("%d records\n", len(found))
		return nil
	},
}

func init() {
	resourcesListCmd.Flags().StringVar(&resourcesType, "type", "", "filter by facility type (hospital, clinic, pharmacy)")
	resourcesListCmd.Flags().IntVar(&resourcesSector, "sector", 0, "filter by sector")
	resourcesListCmd.Flags().IntVar(&resourcesLimit, "limit", 50, "maximum records to print")
	resourcesCmd.AddCommand(resourcesImportCmd)
	resourcesCmd.AddCommand(resourcesListCmd)
	rootCmd.AddCommand(resourcesCmd)
}
