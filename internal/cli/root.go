package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"command-center/internal/config"
	"command-center/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "command-center",
	Short: "Document question answering service for the operations dashboard",
	Long: `command-center ingests documents, embeds them through an OpenAI-compatible
API and answers questions from the closest chunks.

Example usage:
  command-center                         # Run the HTTP server
  command-center ingest "docs/**/*.md"   # Ingest files into the configured store
  command-center token --subject ops     # Mint an API token`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgFile != "" {
			cfg, err = config.LoadFile(cfgFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log, err = logger.New(cfg.App.Env)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
	RunE: runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $CONFIG_FILE or configs/config.toml)")
}
