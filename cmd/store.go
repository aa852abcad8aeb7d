package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/licznik-cli/licznik/internal/model"
	"github.com/licznik-cli/licznik/internal/render"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect the locally accumulated statistics database",
	Long: `Commands for inspecting what has been accumulated in the local database.

Use 'licznik sync' to accumulate statistics.`,
}

// ─── store list ───────────────────────────────────────────────────────────────

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accumulated statistics series",
	Example: `  licznik store list
  licznik store list --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		keys, err := deps.Store.SeriesKeys()
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		if len(keys) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No statistics in the local database.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Use: licznik sync")
			return nil
		}
		sort.Strings(keys)

		for _, key := range keys {
			state, ok, err := deps.Store.Last(key)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n  last: %s  sum: %.3f\n",
				key, state.LastTimestamp.Format("2006-01-02 15:04"), state.Sum)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d series  •  %s\n", len(keys), deps.Store.Path())
		return nil
	},
}

// ─── store points ─────────────────────────────────────────────────────────────

var storePointsCmd = &cobra.Command{
	Use:   "points <SERIES_KEY>",
	Short: "Read committed points of one series",
	Example: `  licznik store points 'meter:12345|mode:consumed|zone:Strefa 1'
  licznik store points 'meter:12345|mode:consumed|zone:Strefa 1' --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		points, err := deps.Store.Points(key)
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		if len(points) == 0 {
			return fmt.Errorf("no stored points for %s\n\n  Use: licznik store list", key)
		}

		sp := &model.SeriesPoints{Key: key, Points: points}
		result := newResult("store points", model.KindPoints, sp, len(points))

		format := resolveFormat(deps.Config.Format)
		if err := render.RenderTo(globalFlags.Out, result, format); err != nil {
			return err
		}
		render.PrintFooter(cmd.OutOrStdout(), result, deps.Config.Verbose)
		return nil
	},
}

// ─── store stats ──────────────────────────────────────────────────────────────

var storeStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts and sizes per bucket",
	Example: `  licznik store stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		stats, err := deps.Store.Stats()
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}

		result := newResult("store stats", model.KindStoreStats, stats, len(stats))
		format := resolveFormat(deps.Config.Format)
		if err := render.RenderTo(globalFlags.Out, result, format); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", deps.Store.Path())
		return nil
	},
}

// ─── store clear ──────────────────────────────────────────────────────────────

var storeClearFlags struct {
	Bucket string
	Yes    bool
}

var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete accumulated statistics",
	Long: `Deletes everything in the local database (or one bucket with --bucket).
The next sync starts over from the configured backfill window.`,
	Example: `  licznik store clear --yes
  licznik store clear --bucket state --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !storeClearFlags.Yes {
			return fmt.Errorf("refusing to delete without --yes")
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		if storeClearFlags.Bucket != "" {
			if err := deps.Store.ClearBucket(storeClearFlags.Bucket); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared bucket %s.\n", storeClearFlags.Bucket)
			return nil
		}
		if err := deps.Store.ClearAll(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cleared all buckets.")
		return nil
	},
}

// ─── store path ───────────────────────────────────────────────────────────────

var storePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the database file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		fmt.Fprintln(cmd.OutOrStdout(), deps.Store.Path())
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	storeClearCmd.Flags().StringVar(&storeClearFlags.Bucket, "bucket", "",
		"clear only this bucket (stats|state)")
	storeClearCmd.Flags().BoolVar(&storeClearFlags.Yes, "yes", false,
		"confirm deletion")

	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storePointsCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storePathCmd)
}
