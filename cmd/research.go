package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/research"
)

var (
	researchMaxDepth    int
	researchMaxPages    int
	researchConcurrency int
	researchRPM         int
	researchNoSSLVerify bool
	researchNoCache     bool
	researchJobID       string
)

var researchCmd = &cobra.Command{
	Use:   "research <company-name> <url>",
	Short: "Research a company from its website",
	Long: "Runs the full pipeline for one company: link discovery, page selection, " +
		"content extraction, intelligence generation, and persistence. Prints the " +
		"resulting record as JSON.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		companyName, seedURL := args[0], args[1]

		applyResearchFlags(cmd)
		if err := cfg.Validate("research"); err != nil {
			return eris.Wrap(errs.ErrConfig, err.Error())
		}

		hybrid, err := openHybrid(ctx)
		if err != nil {
			return eris.Wrap(errs.ErrConfig, "open store: "+err.Error())
		}
		defer hybrid.Close()

		bus, err := openBus()
		if err != nil {
			return eris.Wrap(errs.ErrConfig, "open progress bus: "+err.Error())
		}

		coord, cleanup, err := buildCoordinator(ctx, hybrid, bus)
		if err != nil {
			return eris.Wrap(errs.ErrConfig, "build pipeline: "+err.Error())
		}
		defer cleanup()

		record, err := coord.Research(ctx, companyName, seedURL, research.Options{
			MaxPages: researchMaxPages,
			NoCache:  researchNoCache,
			JobID:    researchJobID,
		})
		if err != nil {
			return err
		}

		if printErr := printJSON(os.Stdout, record); printErr != nil {
			return printErr
		}
		if record.ScrapeStatus == model.ScrapeStatusFailed {
			return eris.New("research failed: " + record.ScrapeError)
		}
		return nil
	},
}

// applyResearchFlags folds explicit flag values over the loaded config.
func applyResearchFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("max-depth") {
		cfg.Discovery.MaxDepth = researchMaxDepth
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Extraction.Concurrency = researchConcurrency
	}
	if cmd.Flags().Changed("rpm") {
		cfg.LLM.RequestsPerMinute = researchRPM
	}
	if researchNoSSLVerify {
		cfg.Fetch.SSLVerify = false
	}
}

func init() {
	researchCmd.Flags().IntVar(&researchMaxDepth, "max-depth", 3, "discovery recursion depth")
	researchCmd.Flags().IntVar(&researchMaxPages, "max-pages", 0, "cap on pages extracted (0 = config default)")
	researchCmd.Flags().IntVar(&researchConcurrency, "concurrency", 10, "parallel page fetches during extraction")
	researchCmd.Flags().IntVar(&researchRPM, "rpm", 8, "LLM requests per minute")
	researchCmd.Flags().BoolVar(&researchNoSSLVerify, "no-ssl-verify", false, "skip TLS certificate verification")
	researchCmd.Flags().BoolVar(&researchNoCache, "no-cache", false, "bypass the crawl cache")
	researchCmd.Flags().StringVar(&researchJobID, "job-id", "", "externally supplied progress job id")
	rootCmd.AddCommand(researchCmd)
}
