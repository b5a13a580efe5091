package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "narrative-cli",
	Short: "Detect emerging Solana narratives and generate build ideas",
	Long: `A command-line tool that collects signals from GitHub, Solana RPC and blogs,
asks an LLM to identify emerging narratives, and renders a report with build ideas.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Both files are optional; variables already set in the environment win.
		_ = godotenv.Load("../.env")
		_ = godotenv.Load(".env")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config/config.yaml", "path to the config file")
}

// loadConfig reads the config file and sets up logging. Logs go to stderr so that
// command output on stdout stays machine-readable.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", cfgFile, err)
	}
	logger.Init(cfg.Logger.Level, cfg.Logger.Format, os.Stderr)
	return cfg, nil
}
