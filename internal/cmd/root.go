// Package cmd implements the chatdemo command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PauloHFS/otel-chat-tools/internal/scenario"
)

type options struct {
	scenario string
	file     string
	model    string
	verbose  bool
}

// load returns the scenario selected by --file or --scenario.
func (o *options) load() (*scenario.Scenario, error) {
	if o.file != "" {
		return scenario.LoadFile(o.file)
	}
	return scenario.Load(o.scenario)
}

func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "chatdemo",
		Short: "Traced chat completions with local tool calls",
		Long: `chatdemo sends a seed conversation to a chat completion endpoint,
runs the tools the model asks for locally and prints the final answer.
Every run is traced with OpenTelemetry.

Examples:
  chatdemo run                      Weather and temperature in Seattle
  chatdemo stream --scenario flight Next flight from Seattle to Miami, streamed
  chatdemo tools --verbose          List the tools and their parameters`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.scenario, "scenario", "s", "weather", "built-in scenario to run")
	flags.StringVarP(&opts.file, "file", "f", "", "load the scenario from a YAML file instead")
	flags.StringVar(&opts.model, "model", "", "model to request (default CHAT_MODEL)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "show the full transcript and tool parameters")

	root.AddCommand(
		newRunCommand(opts),
		newStreamCommand(opts),
		newToolsCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		return 1
	}
	return 0
}
