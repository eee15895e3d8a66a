package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/store"
)

var (
	similarK        int
	similarIndustry string
	similarStage    string
	similarTech     string
	similarSizes    []string
)

var similarCmd = &cobra.Command{
	Use:   "similar <company-name>",
	Short: "Find companies similar to a stored record",
	Long: "Looks up the named company and queries the vector index for its nearest " +
		"neighbors by embedding similarity, optionally filtered by metadata.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("query"); err != nil {
			return eris.Wrap(errs.ErrConfig, err.Error())
		}

		hybrid, err := openHybrid(ctx)
		if err != nil {
			return eris.Wrap(errs.ErrConfig, "open store: "+err.Error())
		}
		defer hybrid.Close()

		record, err := hybrid.FindByName(ctx, args[0])
		if err != nil {
			return err
		}
		if record == nil {
			return eris.Errorf("no record found for %q", args[0])
		}

		hits, err := hybrid.QuerySimilar(ctx, record.ID, similarK, store.SimilarityFilters{
			Industry:           similarIndustry,
			CompanyStage:       similarStage,
			TechSophistication: similarTech,
			CompanySizes:       similarSizes,
		})
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, hits)
	},
}

func init() {
	similarCmd.Flags().IntVarP(&similarK, "count", "k", 5, "number of neighbors to return")
	similarCmd.Flags().StringVar(&similarIndustry, "industry", "", "filter by industry")
	similarCmd.Flags().StringVar(&similarStage, "stage", "", "filter by company stage")
	similarCmd.Flags().StringVar(&similarTech, "tech", "", "filter by tech sophistication")
	similarCmd.Flags().StringSliceVar(&similarSizes, "size", nil, "filter by company size (repeatable)")
	rootCmd.AddCommand(similarCmd)
}
