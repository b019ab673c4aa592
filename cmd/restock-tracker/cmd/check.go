package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/restock-tracker/internal/notify"
	"github.com/donaldgifford/restock-tracker/pkg/logger"
)

func checkCmd() *cobra.Command {
	var noSMS bool

	cmd := &cobra.Command{
		Use:   "check <source>",
		Short: "Run one check cycle for a source",
		Long: "Poll one configured source, apply the result to the local state table,\n" +
			"record history and notify subscribers, exactly like one scheduled run.\n" +
			"Safe to run while the server is up: every data file is locked.",
		Example: `  restock-tracker check shop
  restock-tracker check partner-feed --no-sms --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

			var opts appOptions
			if noSMS {
				opts.gateway = notify.NewNoOpGateway(log)
			}
			a, err := newApp(cfg, log, opts)
			if err != nil {
				return err
			}
			src, err := a.source(args[0])
			if err != nil {
				return err
			}

			res, runErr := a.engine.RunCheck(cmd.Context(), src)
			if res == nil {
				return runErr
			}

			w := cmd.OutOrStdout()
			var outErr error
			if jsonOutput() {
				outErr = outputJSON(w, res)
			} else {
				outErr = printCheckResult(w, res)
			}
			return errors.Join(runErr, outErr)
		},
	}

	cmd.Flags().BoolVar(&noSMS, "no-sms", false, "log messages instead of sending them")
	return cmd
}
