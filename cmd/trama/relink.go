package trama

import (
	"context"
	"fmt"

	"github.com/soundprediction/trama/pkg/config"
	"github.com/spf13/cobra"
)

var relinkCmd = &cobra.Command{
	Use:   "relink [doc-id]",
	Short: "Recompute similarity links for one document or the whole corpus",
	Long: `Recompute the semantic similarity links for the given document, or for
every document when --all is set. Explicit and bridge links are left
untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRelink,
}

var relinkAll bool

func init() {
	rootCmd.AddCommand(relinkCmd)

	relinkCmd.Flags().BoolVar(&relinkAll, "all", false, "Relink every document")
}

func runRelink(cmd *cobra.Command, args []string) error {
	if !relinkAll && len(args) == 0 {
		return fmt.Errorf("provide a doc-id or --all")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, log, err := initializeClient(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx)

	if relinkAll {
		if errs := client.RelinkAll(ctx); len(errs) > 0 {
			for _, relinkErr := range errs {
				log.Error("relink failed", "error", relinkErr)
			}
			return fmt.Errorf("relink finished with %d failures", len(errs))
		}
		log.Info("similarity graph rebuilt")
		return nil
	}

	if err := client.Relink(ctx, args[0]); err != nil {
		return fmt.Errorf("relink failed: %w", err)
	}
	log.Info("document relinked", "doc_id", args[0])
	return nil
}
