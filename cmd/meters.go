package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/licznik-cli/licznik/internal/model"
	"github.com/licznik-cli/licznik/internal/render"
)

var metersCmd = &cobra.Command{
	Use:   "meters",
	Short: "List meters selectable on the account",
	Long: `Logs in and lists every meter on the account with the portal-internal id
used by statistics commands. Put the id of the meter you care about in
config.json as meter_id, or pass it with --meter.`,
	Example: `  licznik meters
  licznik meters --format json`,
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
		meters, err := deps.Client.Meters(ctx)
		if err != nil {
			return err
		}

		result := newResult("meters", model.KindMeters, meters, len(meters))
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
	rootCmd.AddCommand(metersCmd)
}
