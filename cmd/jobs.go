package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/AntoineDubuc/theodore/internal/errs"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "Show research job progress",
	Long: "Without arguments, lists every retained job. With a job id, prints that " +
		"job's full phase log.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bus, err := openBus()
		if err != nil {
			return eris.Wrap(errs.ErrConfig, "open progress bus: "+err.Error())
		}

		if len(args) == 1 {
			job := bus.Get(args[0])
			if job == nil {
				return eris.Errorf("no job %q", args[0])
			}
			return printJSON(os.Stdout, job)
		}
		return printJSON(os.Stdout, bus.GetAll())
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
}
