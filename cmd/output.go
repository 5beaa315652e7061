package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d1childress/ccmanager/internal/ui"
)

func success(cmd *cobra.Command, format string, args ...interface{}) {
	ui.ShowSuccess(cmd.OutOrStdout(), fmt.Sprintf(format, args...))
}

func warn(cmd *cobra.Command, format string, args ...interface{}) {
	ui.ShowWarning(cmd.OutOrStdout(), fmt.Sprintf(format, args...))
}

func info(cmd *cobra.Command, format string, args ...interface{}) {
	ui.ShowInfo(cmd.OutOrStdout(), fmt.Sprintf(format, args...))
}
