// Package main is the entrypoint of the progression engine.
//
// One binary serves the HTTP API and runs the maintenance commands:
//
//	progression serve
//	progression migrate up|down|status
//	progression reconcile
//	progression catalog validate <file>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	logLevel    string
	catalogPath string
)

var rootCmd = &cobra.Command{
	Use:   "progression",
	Short: "Achievement and level progression engine",
	Long: "Tracks points, levels and achievement unlocks per user, " +
		"driven by activity events posted to its HTTP API.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Override CATALOG_PATH (YAML or TOML file)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}
