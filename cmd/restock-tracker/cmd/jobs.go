package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/restock-tracker/internal/scheduler"
)

func jobsCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jobs",
		Short: "View scheduler status",
		Long: "View the source checkers and maintenance jobs of a running server:\n" +
			"run counts, failures, the last error and the next scheduled run.",
	}
	root.AddCommand(jobsListCmd(), jobsGetCmd())
	return root
}

func jobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every job",
		Example: `  restock-tracker jobs list
  restock-tracker jobs list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobs, err := newClient().ListJobs(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOutput() {
				return outputJSON(w, jobs)
			}
			if len(jobs) == 0 {
				_, err := fmt.Fprintln(w, "No jobs registered.")
				return err
			}
			return printJobsTable(w, jobs)
		},
	}
}

func jobsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <name>",
		Short:   "Show one job",
		Example: `  restock-tracker jobs get shop`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := newClient().GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), job)
			}
			return printJobsTable(cmd.OutOrStdout(), []scheduler.JobStatus{*job})
		},
	}
}
