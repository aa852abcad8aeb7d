package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/licznik-cli/licznik/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage licznik configuration",
}

// ─── config init ──────────────────────────────────────────────────────────────

var configInitFlags struct {
	Force bool
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config.json template in the current directory",
	Long: `Writes a config.json template. Fill in your portal username and either
put the password there too or export LICZNIK_PASSWORD instead — the file
is created with mode 0600 either way.`,
	Example: `  licznik config init
  licznik config init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil && !configInitFlags.Force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s — fill in username, meter_id and zones.\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "Run `licznik meters` to discover the meter id.")
		return nil
	},
}

// ─── config show ──────────────────────────────────────────────────────────────

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long:  `Shows the configuration after merging flags, environment and config.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.Username, globalFlags.Password)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "username:        %s\n", cfg.Username)
		fmt.Fprintf(w, "password:        %s\n", cfg.RedactedPassword())
		fmt.Fprintf(w, "meter_number:    %s\n", cfg.MeterNumber)
		fmt.Fprintf(w, "meter_id:        %s\n", cfg.MeterID)
		fmt.Fprintf(w, "zones:           %v\n", cfg.SelectedZones)
		fmt.Fprintf(w, "modes:           %v\n", cfg.SelectedModes)
		fmt.Fprintf(w, "backfill_days:   %d\n", cfg.BackfillDays)
		fmt.Fprintf(w, "max_days_per_run:%d\n", cfg.MaxDaysPerRun)
		fmt.Fprintf(w, "scan_interval:   %s\n", cfg.ScanInterval)
		fmt.Fprintf(w, "timeout:         %s\n", cfg.Timeout)
		fmt.Fprintf(w, "rate:            %.1f req/s\n", cfg.Rate)
		fmt.Fprintf(w, "db_path:         %s\n", cfg.DBPath)
		fmt.Fprintf(w, "format:          %s\n", cfg.Format)
		if cfg.ConfigPath != "" {
			fmt.Fprintf(w, "config file:     %s\n", cfg.ConfigPath)
		} else {
			fmt.Fprintln(w, "config file:     (none found)")
		}
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	configInitCmd.Flags().BoolVar(&configInitFlags.Force, "force", false,
		"overwrite an existing config.json")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
