package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/d1childress/ccmanager/internal/app"
	"github.com/d1childress/ccmanager/internal/config"
	"github.com/d1childress/ccmanager/internal/ui"
	"github.com/d1childress/ccmanager/pkg/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change application settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	RunE:  withApp(runSettingsShow),
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runSettingsSet),
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the settings that can be changed",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.Keys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsKeysCmd)
	rootCmd.AddCommand(settingsCmd)
}

func settingsRows(s models.Settings) [][2]string {
	rows := [][2]string{
		{"default_local_path", s.DefaultLocalPath},
		{"auto_sync", strconv.FormatBool(s.AutoSync)},
		{"sync_interval", s.SyncInterval.String()},
		{"show_notifications", strconv.FormatBool(s.ShowNotifications)},
		{"theme", string(s.Theme)},
		{"log_level", orDefault(s.LogLevel, "warn")},
		{"selected_repository", orDefault(s.SelectedRepository, "-")},
	}
	for _, p := range models.Providers {
		account := "-"
		if creds := s.CredentialsFor(p); creds != nil {
			account = orDefault(creds.Username, "configured")
		}
		rows = append(rows, [2]string{string(p), account})
	}
	return rows
}

func runSettingsShow(cmd *cobra.Command, args []string, a *app.Context) error {
	out := cmd.OutOrStdout()
	ui.ShowHeader(out, "Settings")
	for _, row := range settingsRows(a.Settings()) {
		ui.PrintKeyValue(out, row[0], row[1])
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string, a *app.Context) error {
	key, value := args[0], args[1]
	if err := a.UpdateSettings(func(s *models.Settings) error {
		return config.Apply(s, key, value)
	}); err != nil {
		return err
	}
	success(cmd, "%s updated", key)
	return nil
}
