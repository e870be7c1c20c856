// Package main provides the entry point for the career assessment API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ujjwalparashar30/github-assisstance/internal/config"
	"github.com/ujjwalparashar30/github-assisstance/internal/logger"
)

var (
	configPath string
	logJSON    bool
	logDebug   bool
)

var rootCmd = &cobra.Command{
	Use:   "career_agent",
	Short: "Career assessment HTTP API server",
	Long: "Career assessment runs a questionnaire, analyses an uploaded résumé with an LLM " +
		"and recommends open-source GitHub issues matched to the candidate's skill level.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs")
	rootCmd.PersistentFlags().BoolVar(&logDebug, "debug", false, "Enable debug logging")
}

// loadConfig reads configuration and builds the logger; flags override the file.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = logJSON
	}
	if cmd.Flags().Changed("debug") {
		cfg.Log.Debug = logDebug
	}

	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
