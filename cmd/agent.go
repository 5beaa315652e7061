package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/d1childress/ccmanager/internal/app"
	"github.com/d1childress/ccmanager/internal/session"
	"github.com/d1childress/ccmanager/internal/ui"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Send commands to the AI assistants",
}

var agentRunCmd = &cobra.Command{
	Use:   "run <command...>",
	Short: "Run a natural-language command against a repository",
	Long: `Run a natural-language command against the selected repository.

The command is sent to Claude, Codex or both. With --stream the response is
printed as it arrives; streaming works with a single assistant only.`,
	Example: `  ccmanager agent run "add a README section about testing"
  ccmanager agent run --agent both --repo octo/widgets "explain the build"
  ccmanager agent run --stream "summarize recent changes"`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runAgent),
}

var agentWatchCmd = &cobra.Command{
	Use:   "watch [repository]",
	Short: "Watch a working copy and print its changes every sync interval",
	Args:  cobra.MaximumNArgs(1),
	RunE:  withApp(runAgentWatch),
}

func init() {
	agentRunCmd.Flags().String("agent", string(session.AgentClaude), "assistant to use: claude, codex or both")
	agentRunCmd.Flags().Bool("stream", false, "print the response as it arrives")
	agentRunCmd.Flags().String("repo", "", "repository id or full name (default is the selected repository)")

	agentCmd.AddCommand(agentRunCmd, agentWatchCmd)
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string, a *app.Context) error {
	agentName, _ := cmd.Flags().GetString("agent")
	stream, _ := cmd.Flags().GetBool("stream")
	ref, _ := cmd.Flags().GetString("repo")

	agent, err := session.ParseAgent(agentName)
	if err != nil {
		return err
	}
	if stream && agent == session.AgentBoth {
		return apperrors.ConfigError("--stream works with a single agent", "agent")
	}

	repo, err := a.Resolve(ref)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	text := strings.Join(args, " ")
	out := cmd.OutOrStdout()

	a.Sessions.StartSession(repo)
	defer endSession(cmd, a)

	var commands []models.AgentCommand
	if stream {
		sc, err := a.Sessions.StreamCommand(ctx, text, agent.Providers()[0])
		if err != nil {
			return err
		}
		for fragment := range sc.Fragments() {
			fmt.Fprint(out, fragment)
		}
		fmt.Fprintln(out)
		commands = []models.AgentCommand{sc.Finish()}
	} else {
		spinner := ui.NewSpinner(fmt.Sprintf("Asking %s...", agent))
		spinner.Start()
		unsubscribe := a.Sessions.Subscribe(func(e session.Event) {
			if e.Kind == session.EventCommandRecorded && e.Command != nil {
				spinner.UpdateMessage(progressMessage(*e.Command, agent))
			}
		})
		commands, err = a.Sessions.SubmitCommand(ctx, text, agent)
		unsubscribe()
		if err != nil {
			spinner.Stop(false, "Command not sent")
			return err
		}
		spinner.Stop(true, "Responses received")

		for _, c := range commands {
			if c.Status != models.CommandCompleted {
				continue
			}
			fmt.Fprintf(out, "\n%s\n%s\n", ui.ColorBold(string(c.Provider)), c.Output)
		}
	}

	fmt.Fprintln(out)
	ui.CommandTable(out, commands)

	if repo.HasLocalPath() {
		changes, err := a.Sessions.RefreshChanges(ctx, repo)
		switch {
		case err != nil:
			warn(cmd, "could not read working copy changes: %s", apperrors.Describe(err))
		case len(changes) > 0:
			fmt.Fprintln(out)
			ui.ChangeTable(out, changes)
		}
	}

	failed := 0
	for _, c := range commands {
		if c.Status == models.CommandFailed {
			failed++
		}
	}
	if failed > 0 {
		return apperrors.New(apperrors.ErrCodeInternal, fmt.Sprintf("%d of %d commands failed", failed, len(commands)))
	}
	return nil
}

// progressMessage describes a recorded command while the rest of the
// agents are still working
func progressMessage(c models.AgentCommand, agent session.Agent) string {
	status := strings.ToLower(string(c.Status))
	if agent != session.AgentBoth {
		return fmt.Sprintf("%s %s", c.Provider, status)
	}
	return fmt.Sprintf("%s %s, waiting for the remaining agent...", c.Provider, status)
}

func endSession(cmd *cobra.Command, a *app.Context) {
	if ended, ok := a.Sessions.EndCurrentSession(); ok {
		info(cmd, "Session lasted %s", ui.FormatDuration(ended.Duration(time.Now())))
	}
}

func runAgentWatch(cmd *cobra.Command, args []string, a *app.Context) error {
	repo, err := a.Resolve(argOrEmpty(args))
	if err != nil {
		return err
	}

	a.Sessions.StartSession(repo)
	defer endSession(cmd, a)

	info(cmd, "Watching %s every %s (Ctrl+C to stop)", repo.FullName, ui.FormatDuration(a.Settings().SyncInterval))
	out := cmd.OutOrStdout()
	return a.WatchChanges(commandContext(cmd), repo, func(changes []models.FileChange, err error) {
		if err != nil {
			warn(cmd, "refresh failed: %s", apperrors.Describe(err))
			return
		}
		if len(changes) == 0 {
			fmt.Fprintln(out, "Working copy is clean")
			return
		}
		ui.ChangeTable(out, changes)
	})
}
