package cmd

import "github.com/spf13/cobra"

func smsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sms-stats",
		Short: "Show SMS usage against the daily cap",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := newClient().SMSStats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), stats)
			}
			return printSMSStats(cmd.OutOrStdout(), stats)
		},
	}
}
