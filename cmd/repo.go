package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/d1childress/ccmanager/internal/app"
	"github.com/d1childress/ccmanager/internal/common"
	"github.com/d1childress/ccmanager/internal/ui"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage repositories and their working copies",
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known repositories",
	RunE:  withApp(runRepoList),
}

var repoSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the repository list from GitHub",
	RunE:  withApp(runRepoSync),
}

var repoAddCmd = &cobra.Command{
	Use:   "add <owner/name>",
	Short: "Add a repository by hand",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runRepoAdd),
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove <repository>",
	Short: "Remove a repository from the list",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runRepoRemove),
}

var repoSelectCmd = &cobra.Command{
	Use:   "select [repository]",
	Short: "Choose the repository agent commands run against",
	Long:  "Choose the repository agent commands run against. Without an argument a list is offered when running in a terminal.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  withApp(runRepoSelect),
}

var repoCloneCmd = &cobra.Command{
	Use:   "clone [repository]",
	Short: "Clone a repository into a local working copy",
	Args:  cobra.MaximumNArgs(1),
	RunE:  withApp(runRepoClone),
}

var repoPullCmd = &cobra.Command{
	Use:   "pull [repository]",
	Short: "Fast-forward a working copy",
	Args:  cobra.MaximumNArgs(1),
	RunE:  withApp(runRepoPull),
}

var repoChangesCmd = &cobra.Command{
	Use:   "changes [repository]",
	Short: "Show working copy changes against HEAD",
	Args:  cobra.MaximumNArgs(1),
	RunE:  withApp(runRepoChanges),
}

func init() {
	repoAddCmd.Flags().String("local-path", "", "existing working copy")
	repoAddCmd.Flags().String("language", "", "primary language")
	repoAddCmd.Flags().String("branch", "main", "default branch")
	repoAddCmd.Flags().Bool("private", false, "mark the repository private")

	repoRemoveCmd.Flags().BoolP("yes", "y", false, "skip confirmation")

	repoCloneCmd.Flags().String("path", "", "destination (default is <default_local_path>/<name>)")

	repoCmd.AddCommand(repoListCmd, repoSyncCmd, repoAddCmd, repoRemoveCmd, repoSelectCmd,
		repoCloneCmd, repoPullCmd, repoChangesCmd)
	rootCmd.AddCommand(repoCmd)
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func runRepoList(cmd *cobra.Command, args []string, a *app.Context) error {
	repos := a.Catalog.Repositories()
	if len(repos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No repositories yet.")
		fmt.Fprintln(cmd.OutOrStdout(), "Use 'ccmanager repo sync' or 'ccmanager repo add' to add one")
		return nil
	}
	ui.RepositoryTable(cmd.OutOrStdout(), repos, a.Settings().SelectedRepository)
	return nil
}

func runRepoSync(cmd *cobra.Command, args []string, a *app.Context) error {
	if err := a.SyncRepositories(commandContext(cmd)); err != nil {
		return err
	}
	success(cmd, "%d repositories synced", len(a.Catalog.Repositories()))
	return nil
}

func runRepoAdd(cmd *cobra.Command, args []string, a *app.Context) error {
	fullName := strings.Trim(strings.TrimSpace(args[0]), "/")
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return apperrors.ConfigError(fmt.Sprintf("expected owner/name, got %q", args[0]), "repository")
	}

	localPath, _ := cmd.Flags().GetString("local-path")
	language, _ := cmd.Flags().GetString("language")
	branch, _ := cmd.Flags().GetString("branch")
	private, _ := cmd.Flags().GetBool("private")

	if localPath != "" {
		expanded, err := common.ExpandHome(localPath)
		if err != nil {
			return err
		}
		localPath = expanded
	}

	repo := models.Repository{
		ID:            fullName,
		Name:          name,
		FullName:      fullName,
		Owner:         owner,
		URL:           "https://github.com/" + fullName,
		DefaultBranch: branch,
		Private:       private,
		Language:      language,
		LocalPath:     localPath,
	}
	if err := a.AddRepository(repo); err != nil {
		return err
	}
	success(cmd, "Repository '%s' added", fullName)
	return nil
}

func runRepoRemove(cmd *cobra.Command, args []string, a *app.Context) error {
	repo, err := a.Resolve(args[0])
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && isatty.IsTerminal(os.Stdin.Fd()) {
		confirm, err := ui.Confirm(fmt.Sprintf("Remove repository '%s'?", repo.FullName), false)
		if err != nil {
			return err
		}
		if !confirm {
			fmt.Fprintln(cmd.OutOrStdout(), "Removal cancelled")
			return nil
		}
	}

	if _, err := a.RemoveRepository(repo.ID); err != nil {
		return err
	}
	success(cmd, "Repository '%s' removed", repo.FullName)
	return nil
}

func runRepoSelect(cmd *cobra.Command, args []string, a *app.Context) error {
	ref := argOrEmpty(args)
	if ref == "" {
		var err error
		if ref, err = pickRepository(a.Catalog.Repositories()); err != nil {
			return err
		}
	}

	repo, err := a.SelectRepository(ref)
	if err != nil {
		return err
	}
	success(cmd, "Selected '%s'", repo.FullName)
	return nil
}

// pickRepository prompts for one of repos by full name
func pickRepository(repos []models.Repository) (string, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return "", apperrors.ConfigError("no repository given", "repository")
	}
	if len(repos) == 0 {
		return "", apperrors.ConfigError("no repositories to choose from; run 'ccmanager repo sync' or 'ccmanager repo add'", "repository")
	}
	names := make([]string, len(repos))
	for i, r := range repos {
		names[i] = r.FullName
	}
	return ui.Select("Repository:", names)
}

func runRepoClone(cmd *cobra.Command, args []string, a *app.Context) error {
	path, _ := cmd.Flags().GetString("path")

	repo, err := a.Resolve(argOrEmpty(args))
	if err != nil {
		return err
	}

	spinner := ui.NewSpinner(fmt.Sprintf("Cloning %s...", repo.FullName))
	spinner.Start()
	cloned, err := a.CloneRepository(commandContext(cmd), repo.ID, path)
	if err != nil {
		spinner.Stop(false, "Clone failed")
		return err
	}
	spinner.Stop(true, "Clone finished")
	success(cmd, "Cloned '%s' into %s", cloned.FullName, cloned.LocalPath)
	return nil
}

func runRepoPull(cmd *cobra.Command, args []string, a *app.Context) error {
	repo, err := a.Resolve(argOrEmpty(args))
	if err != nil {
		return err
	}
	if err := a.PullRepository(commandContext(cmd), repo.ID); err != nil {
		return err
	}
	success(cmd, "'%s' is up to date", repo.FullName)
	return nil
}

func runRepoChanges(cmd *cobra.Command, args []string, a *app.Context) error {
	repo, err := a.Resolve(argOrEmpty(args))
	if err != nil {
		return err
	}
	changes, err := a.Catalog.FetchChanges(commandContext(cmd), repo)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Working copy is clean")
		return nil
	}
	ui.ChangeTable(cmd.OutOrStdout(), changes)
	return nil
}
