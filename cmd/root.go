package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/config"
	"github.com/AntoineDubuc/theodore/internal/errs"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "theodore",
	Short: "Company intelligence research pipeline",
	Long: "Crawls a company website, selects and extracts the most informative pages, " +
		"generates structured sales intelligence via LLMs, and stores it with a " +
		"similarity-search vector.",
	SilenceUsage: true,
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

// exitCode maps a command error to the process exit status: 0 for
// success, 2 for configuration errors, 1 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errs.ErrConfig):
		return 2
	default:
		return 1
	}
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "theodore:", err)
	}
	os.Exit(exitCode(err))
}
