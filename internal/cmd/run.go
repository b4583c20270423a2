package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PauloHFS/otel-chat-tools/internal/config"
	"github.com/PauloHFS/otel-chat-tools/internal/conversation"
	"github.com/PauloHFS/otel-chat-tools/internal/llm"
)

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a scenario with non-streaming completions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversation(cmd, opts, false)
		},
	}
}

func newStreamCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stream",
		Short: "Run a scenario with streaming completions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversation(cmd, opts, true)
		},
	}
}

func runConversation(cmd *cobra.Command, opts *options, stream bool) error {
	sc, err := opts.load()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := cmd.Context()
	rt, err := startRuntime(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.close()

	loop, err := rt.newLoop(sc, opts.model)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	seed := sc.Seed()
	printSeed(out, seed)

	var transcript *conversation.Transcript
	if stream {
		transcript, err = loop.ConverseStream(ctx, seed)
	} else {
		transcript, err = loop.Converse(ctx, seed)
	}
	if err != nil {
		return err
	}

	printTranscript(out, transcript, opts.verbose)
	return nil
}

func printSeed(out io.Writer, seed []llm.Message) {
	for _, m := range seed {
		if m.Role == llm.RoleUser {
			fmt.Fprintf(out, "%s %s\n\n", headerStyle.Render("Query:"), m.Content)
		}
	}
}

func printTranscript(out io.Writer, t *conversation.Transcript, verbose bool) {
	if len(t.Tools) > 0 {
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Tools:"), toolStyle.Render(strings.Join(t.Tools, ", ")))
	}

	if verbose {
		fmt.Fprintln(out, labelStyle.Render("Transcript:"))
		for _, m := range t.Messages {
			printMessage(out, m)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "%s %s\n", successStyle.Render("Answer:"), t.Answer())
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("run %s, %d completion calls", t.RunID, t.Iterations)))
}

func printMessage(out io.Writer, m llm.Message) {
	switch {
	case len(m.ToolCalls) > 0:
		for _, c := range m.ToolCalls {
			fmt.Fprintf(out, "  %-9s %s(%s)\n", m.Role, paramStyle.Render(c.Function.Name), c.Function.Arguments)
		}
	case m.Role == llm.RoleTool:
		fmt.Fprintf(out, "  %-9s %s %s\n", m.Role, dimStyle.Render(m.ToolCallID), m.Content)
	default:
		fmt.Fprintf(out, "  %-9s %s\n", m.Role, m.Content)
	}
}
