package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information, set at build time with -ldflags "-X".
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render("chatdemo"))
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Version:"), Version)
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Commit:"), GitCommit)
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Built:"), BuildDate)
		},
	}
}
