package trama

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/soundprediction/trama/pkg/config"
	"github.com/spf13/cobra"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run one community bridge pass over the link graph",
	Long: `Detect communities in the similarity graph and add sparse bridge links
between them. Corpora below the configured minimum size are skipped
unless --force is set. A completed pass is checkpointed, so re-running
against an unchanged graph is cheap.`,
	RunE: runBridge,
}

var bridgeForce bool

func init() {
	rootCmd.AddCommand(bridgeCmd)

	bridgeCmd.Flags().BoolVar(&bridgeForce, "force", false, "Run even below the minimum corpus size")
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, _, err := initializeClient(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx)

	report, err := client.RunCommunityBridgePass(ctx, bridgeForce)
	if err != nil {
		return fmt.Errorf("bridge pass failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
