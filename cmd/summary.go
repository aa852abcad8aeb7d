package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/licznik-cli/licznik/internal/model"
	"github.com/licznik-cli/licznik/internal/render"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the account summary and dial readings",
	Long: `Logs in and scrapes the account data page: contract details (PPE number,
seller, tariff, address) and the latest dial readings the portal shows.
The portal refreshes this page at most once a day.`,
	Example: `  licznik summary
  licznik summary --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.Config.Validate(); err != nil {
			return err
		}
		defer deps.Close()

		ctx, cancel := commandContext()
		defer cancel()

		began := time.Now()
		if err := deps.Client.Login(ctx, deps.Config.Username, deps.Config.Password); err != nil {
			return err
		}
		summary, err := deps.Client.AccountSummary(ctx)
		if err != nil {
			return err
		}

		result := newResult("summary", model.KindSummary, summary, 1)
		result.Stats.DurationMs = time.Since(began).Milliseconds()

		format := resolveFormat(deps.Config.Format)
		if err := render.RenderTo(globalFlags.Out, result, format); err != nil {
			return err
		}
		render.PrintFooter(cmd.OutOrStdout(), result, deps.Config.Verbose)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}
