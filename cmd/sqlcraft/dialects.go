package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atlekbai/sqlcraft/internal/dialect"
)

func newDialectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List the dialect presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range dialect.Names() {
				marker := " "
				if name == a.cfg.Dialect {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, name)
			}
			return nil
		},
	}
}

func newFunctionsCmd(a *app) *cobra.Command {
	var dialectName string
	cmd := &cobra.Command{
		Use:   "functions",
		Short: "List the registered SQL functions of a dialect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.engine(dialectName)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			opts := e.Dialect()
			for _, name := range e.Registry().Names() {
				if translated := opts.FunctionName(name); translated != name {
					fmt.Fprintf(out, "%s -> %s\n", name, translated)
					continue
				}
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dialectName, "dialect", "d", "", "target dialect (default from config)")
	return cmd
}
