package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/licznik-cli/licznik/internal/model"
	"github.com/licznik-cli/licznik/internal/render"
	"github.com/licznik-cli/licznik/internal/stats"
)

var firstdateFlags struct {
	Mode string
}

var firstdateCmd = &cobra.Command{
	Use:   "firstdate",
	Short: "Find the earliest date the portal has statistics for",
	Long: `Searches the historical chart backward for the first recorded statistic.
The search narrows from yearly pages down to a single day, so it takes a
handful of requests even for meters with years of history.

Useful before a deep backfill: days_to_backfill further back than this
date only wastes requests on empty pages.`,
	Example: `  licznik firstdate
  licznik firstdate --mode produced`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := model.ParseMode(firstdateFlags.Mode)
		if err != nil {
			return err
		}

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

		began := time.Now()
		if err := deps.Client.Login(ctx, deps.Config.Username, deps.Config.Password); err != nil {
			return err
		}

		finder := stats.NewFinder(deps.Client, deps.Log)
		date, found, err := finder.FindFirstDate(ctx, deps.Config.MeterID, mode)
		if err != nil {
			return err
		}

		fd := &model.FirstDate{
			MeterID: deps.Config.MeterID,
			Mode:    mode,
			Found:   found,
			Date:    date,
		}
		result := newResult("firstdate", model.KindFirstDate, fd, 1)
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
	firstdateCmd.Flags().StringVar(&firstdateFlags.Mode, "mode", "consumed",
		"energy direction: consumed|produced")
	rootCmd.AddCommand(firstdateCmd)
}
