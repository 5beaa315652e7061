package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/d1childress/ccmanager/internal/app"
	"github.com/d1childress/ccmanager/internal/ui"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage provider credentials",
}

var authLoginCmd = &cobra.Command{
	Use:       "login <github|claude|codex>",
	Short:     "Store a credential for a provider",
	Args:      cobra.ExactArgs(1),
	ValidArgs: providerNames(),
	RunE:      withApp(runAuthLogin),
}

var authLogoutCmd = &cobra.Command{
	Use:       "logout <github|claude|codex>",
	Short:     "Remove the stored credential for a provider",
	Args:      cobra.ExactArgs(1),
	ValidArgs: providerNames(),
	RunE:      withApp(runAuthLogout),
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which providers are authenticated",
	RunE:  withApp(runAuthStatus),
}

func init() {
	authLoginCmd.Flags().String("token", "", "token or API key (prompted when omitted)")
	authLoginCmd.Flags().String("username", "", "account name to display")
	authLoginCmd.Flags().String("org", "", "organization id")
	authLoginCmd.Flags().Bool("no-sync", false, "skip the repository sync after a GitHub login")

	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func providerNames() []string {
	names := make([]string, len(models.Providers))
	for i, p := range models.Providers {
		names[i] = string(p)
	}
	return names
}

func parseProvider(s string) (models.Provider, error) {
	for _, p := range models.Providers {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", apperrors.ConfigError(fmt.Sprintf("unknown provider %q (expected %s)", s, strings.Join(providerNames(), ", ")), "provider")
}

func runAuthLogin(cmd *cobra.Command, args []string, a *app.Context) error {
	p, err := parseProvider(args[0])
	if err != nil {
		return err
	}

	token, _ := cmd.Flags().GetString("token")
	username, _ := cmd.Flags().GetString("username")
	org, _ := cmd.Flags().GetString("org")
	noSync, _ := cmd.Flags().GetBool("no-sync")

	if strings.TrimSpace(token) == "" {
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			return apperrors.ConfigError("no token given; pass --token", "token")
		}
		if token, err = ui.Password(fmt.Sprintf("%s token:", p), "Stored in the system keychain or an encrypted file"); err != nil {
			return err
		}
		if username == "" {
			if username, err = ui.Input("Account name:", "", "Shown in 'ccmanager auth status'; leave empty to skip"); err != nil {
				return err
			}
		}
	}

	if _, err := a.Login(p, models.Credentials{Token: token, Username: username, OrganizationID: org}); err != nil {
		return err
	}
	success(cmd, "%s credential stored", p)

	if p.IsAssistant() || noSync {
		return nil
	}

	spinner := ui.NewSpinner("Fetching repositories...")
	spinner.Start()
	if err := a.SyncRepositories(commandContext(cmd)); err != nil {
		spinner.Stop(false, "Repository sync failed")
		warn(cmd, "repository sync failed: %s", apperrors.Describe(err))
		return nil
	}
	spinner.Stop(true, "Repositories synced")
	info(cmd, "%d repositories available", len(a.Catalog.Repositories()))
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string, a *app.Context) error {
	p, err := parseProvider(args[0])
	if err != nil {
		return err
	}
	if err := a.Logout(p); err != nil {
		return err
	}
	success(cmd, "%s credential removed", p)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string, a *app.Context) error {
	ui.AuthTable(cmd.OutOrStdout(), a.Auth.States())
	return nil
}
