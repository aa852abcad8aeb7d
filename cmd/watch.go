package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/licznik-cli/licznik/internal/runner"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run sync passes on a schedule until interrupted",
	Long: `Repeats the sync pass on the configured interval (scan_interval_minutes,
default 300). The portal publishes new data roughly once a day, so a tight
interval gains nothing.

Transient failures are retried on the next tick. Bad credentials or a
captcha challenge stop the loop: retrying those would lock the account.`,
	Example: `  licznik watch
  licznik watch --debug`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.Config.ValidateMeter(); err != nil {
			return err
		}
		defer deps.Close()

		ctx, cancel := commandContext()
		defer cancel()

		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Syncing every %s; press Ctrl-C to stop.\n",
				deps.Config.ScanInterval)
		}

		err = runner.New(deps).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
