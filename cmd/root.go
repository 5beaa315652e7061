package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/d1childress/ccmanager/internal/app"
	"github.com/d1childress/ccmanager/internal/common"
	"github.com/d1childress/ccmanager/internal/observability"
	"github.com/d1childress/ccmanager/internal/ui"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           "ccmanager",
		Short:         "Drive AI coding assistants against your repositories",
		Long:          "ccmanager - Authenticate against GitHub, Claude and Codex, pick a repository, send it natural-language commands and track the resulting changes and usage.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the command tree; SIGINT and SIGTERM cancel the context
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.ShowError(os.Stderr, err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps configuration and input errors to 2, everything else to 1
func exitCode(err error) int {
	switch apperrors.GetErrorCode(err) {
	case apperrors.ErrCodeConfigInvalid, apperrors.ErrCodeEmptyCommand, apperrors.ErrCodeUnknownAgent:
		return 2
	default:
		return 1
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $CCMANAGER_HOME/config.yaml)")
	flags.String("home", "", "application data directory (default is ~/.ccmanager)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("executor", "", "source control executor: git or go-git")

	bindFlags()
}

func bindFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("home", flags.Lookup("home"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("executor", flags.Lookup("executor"))
}

func initConfig() {
	viper.SetEnvPrefix("CCMANAGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		if home := viper.GetString("home"); home != "" {
			viper.AddConfigPath(home)
		} else if home, err := common.AppHome(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile != "" {
			ui.ShowWarning(os.Stderr, "could not read config file: "+err.Error())
		}
	}
}

// newApp builds the application context from flags, environment and config
func newApp(cmd *cobra.Command) (*app.Context, error) {
	level := viper.GetString("log_level")
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:   observability.LogLevelFromString(orDefault(level, "warn")),
		Output:  cmd.ErrOrStderr(),
		Version: Version,
	})

	a, err := app.New(commandContext(cmd), app.Options{
		Home:         viper.GetString("home"),
		ExecutorKind: viper.GetString("executor"),
		GitHubAPI:    viper.GetString("github_api"),
		AnthropicAPI: viper.GetString("anthropic_api"),
		OpenAIAPI:    viper.GetString("openai_api"),
		ClaudeModel:  viper.GetString("claude_model"),
		CodexModel:   viper.GetString("codex_model"),
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	if level == "" {
		if fromSettings := a.Settings().LogLevel; fromSettings != "" {
			logger.SetLevel(observability.LogLevelFromString(fromSettings))
		}
	}
	return a, nil
}

// withApp wraps a command body that needs the application context
func withApp(run func(cmd *cobra.Command, args []string, a *app.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, args, a)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
