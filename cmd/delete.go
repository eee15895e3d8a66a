package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/AntoineDubuc/theodore/internal/errs"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <company-name>",
	Short: "Delete a stored company record and its vector",
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

		if err := hybrid.Delete(ctx, record.ID); err != nil {
			return err
		}
		fmt.Printf("deleted %s (%s)\n", record.Name, record.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
