package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/PauloHFS/otel-chat-tools/internal/functions"
	"github.com/PauloHFS/otel-chat-tools/internal/tools"
)

func newToolsCommand(opts *options) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := functions.Available()
			if !all {
				sc, err := opts.load()
				if err != nil {
					return err
				}
				names = sc.Tools
			}

			catalog, err := functions.NewCatalog(names...)
			if err != nil {
				return err
			}
			return printCatalog(cmd, catalog, opts.verbose)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every available tool instead of the scenario's")
	return cmd
}

func printCatalog(cmd *cobra.Command, catalog *tools.Catalog, verbose bool) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Available Tools (%d)", catalog.Len())))
	fmt.Fprintln(out)

	for _, def := range catalog.Definitions() {
		fmt.Fprintf(out, "  %s\n", toolStyle.Render("◆ "+def.Name))
		fmt.Fprintf(out, "    %s\n", labelStyle.Render(def.Description))

		if verbose {
			schema, err := tools.ParseSchema(def.Parameters)
			if err != nil {
				return err
			}
			params := make([]string, 0, len(schema.Properties))
			for name := range schema.Properties {
				params = append(params, name)
			}
			sort.Strings(params)

			fmt.Fprintln(out, "    Parameters:")
			for _, name := range params {
				p := schema.Properties[name]
				req := ""
				if !p.Optional {
					req = " (required)"
				}
				fmt.Fprintf(out, "      %s %s%s\n", paramStyle.Render(name), p.Type, req)
				fmt.Fprintf(out, "        %s\n", labelStyle.Render(p.Description))
			}
		}
		fmt.Fprintln(out)
	}

	if !verbose {
		fmt.Fprintln(out, dimStyle.Render("  Use --verbose for parameter details"))
	}
	return nil
}
