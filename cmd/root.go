package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lscrefer/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lscrefer",
	Short: "Legal-aid program and office resolver",
	Long:  "Finds the LSC-funded legal-aid program serving an address, lists its offices by distance, and computes household income as a percentage of the federal poverty guideline.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
