package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/storyweb/internal/util"
	"github.com/OFFIS-RIT/storyweb/pkg/logger"
	"github.com/OFFIS-RIT/storyweb/pkg/logger/console"

	"github.com/spf13/cobra"
)

var (
	databaseURL  string
	ontologyPath string
	debug        bool
)

func main() {
	util.LoadEnv()

	rootCmd := &cobra.Command{
		Use:           "storyweb",
		Short:         "Batch tools for the storyweb entity graph",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
				Debug:  debug,
				Format: util.GetEnv("LOG_FORMAT"),
			}))
		},
	}

	rootCmd.PersistentFlags().StringVar(&databaseURL, "db", util.GetEnv("DATABASE_URL"), "postgres connection url")
	rootCmd.PersistentFlags().StringVar(&ontologyPath, "ontology", util.GetEnv("ONTOLOGY_PATH"), "ontology yaml (embedded default when empty)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", util.GetEnvBool("DEBUG", false), "debug logging")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(autoMergeCmd())
	rootCmd.AddCommand(updateClusterCmd())
	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(exportGraphCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("Command failed", "err", err)
		os.Exit(1)
	}
}
