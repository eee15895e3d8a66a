package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/AntoineDubuc/theodore/internal/errs"
)

var showCmd = &cobra.Command{
	Use:   "show <company-name>",
	Short: "Print a stored company record",
	Args:  cobra.ExactArgs(1),
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
		return printJSON(os.Stdout, record)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
