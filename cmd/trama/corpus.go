package trama

import (
	"context"
	"fmt"

	"github.com/soundprediction/trama/pkg/config"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.parquet>",
	Short: "Import documents from a parquet file",
	Long: `Import documents from a parquet file into the configured store and
rebuild the lexical index. Pass --relink to rebuild the similarity graph
afterwards; large corpora may take a while.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export <file.parquet>",
	Short: "Export all documents to a parquet file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var importRelink bool

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)

	importCmd.Flags().BoolVar(&importRelink, "relink", false, "Rebuild the similarity graph after importing")
}

func runImport(cmd *cobra.Command, args []string) error {
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

	count, err := client.ImportCorpus(ctx, args[0])
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	log.Info("corpus imported", "documents", count, "path", args[0])

	if importRelink {
		if errs := client.RelinkAll(ctx); len(errs) > 0 {
			for _, relinkErr := range errs {
				log.Error("relink failed", "error", relinkErr)
			}
			return fmt.Errorf("relink finished with %d failures", len(errs))
		}
		log.Info("similarity graph rebuilt")
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
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

	count, err := client.ExportCorpus(ctx, args[0])
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	log.Info("corpus exported", "documents", count, "path", args[0])
	return nil
}
