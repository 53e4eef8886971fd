// Package cmd provides the CLI commands for Quarry.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/logging"
	"github.com/quarrylabs/quarry/pkg/version"
)

var (
	configPath string
	logLevel   string
)

// NewRootCmd creates the root command for the quarry CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "Hybrid retrieval-and-ranking engine",
		Long: `Quarry turns a free-text query into a ranked list of relevant content
chunks, combining dense and lexical retrieval with rank fusion,
topic routing, and diversity reranking.

Index a corpus once, then search it through the fast or accurate lane:

  quarry index --chunks corpus.jsonl
  quarry search "leadership feels heavy" --lane accurate`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("quarry version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig resolves configuration and installs the logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.Setup(os.Stderr, cfg.LogLevel)
	return cfg, nil
}
