package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/licznik-cli/licznik/internal/model"
	"github.com/licznik-cli/licznik/internal/render"
	"github.com/licznik-cli/licznik/internal/runner"
)

var syncFlags struct {
	DryRun      bool
	SkipSummary bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull new statistics from the portal into the local database",
	Long: `Runs one incremental sync pass: logs in, reads the account summary,
then walks the historical chart forward from the last committed point,
one day per request, committing every confirmed hourly value.

Runs are bounded (60 days of requests by default), so a long catch-up
simply spreads over several invocations. Re-running after an up-to-date
pass is a no-op.`,
	Example: `  licznik sync
  licznik sync --dry-run --format json
  licznik sync --no-summary`,
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

		r := runner.New(deps)
		r.DryRun = syncFlags.DryRun
		r.SkipSummary = syncFlags.SkipSummary

		began := time.Now()
		report, err := r.RefreshOnce(ctx)
		if err != nil {
			return err
		}

		result := newResult("sync", model.KindSyncReport, report, report.Total())
		result.Stats.DurationMs = time.Since(began).Milliseconds()
		if syncFlags.DryRun {
			result.Warnings = append(result.Warnings, "dry run: nothing was written to the database")
		}

		format := resolveFormat(deps.Config.Format)
		if err := render.RenderTo(globalFlags.Out, result, format); err != nil {
			return err
		}
		render.PrintFooter(cmd.OutOrStdout(), result, deps.Config.Verbose)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncFlags.DryRun, "dry-run", false,
		"compute the sync delta without writing to the database")
	syncCmd.Flags().BoolVar(&syncFlags.SkipSummary, "no-summary", false,
		"skip the account summary page, sync statistics only")
	rootCmd.AddCommand(syncCmd)
}
