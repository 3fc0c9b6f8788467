package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/atlekbai/sqlcraft/internal/config"
	"github.com/atlekbai/sqlcraft/internal/engine"
	"github.com/atlekbai/sqlcraft/internal/schema"
)

// app carries state shared by the subcommands.
type app struct {
	cfgFile string
	catalog string
	verbose bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "sqlcraft",
		Short: "Compile Go expressions to SQL",
		Long: `sqlcraft - SQL generation from Go expressions

sqlcraft lowers a Go expression over typed row parameters and bound values
to a SQL fragment, then renders it for a target dialect with an ordered
parameter table.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return configError("loading configuration", err)
			}
			if a.catalog != "" {
				cfg.CatalogFile = a.catalog
			}
			a.cfg = cfg
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./sqlcraft.yaml if present)")
	root.PersistentFlags().StringVar(&a.catalog, "catalog", "", "catalog definition file (YAML or JSON)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log engine diagnostics to stderr")

	root.AddCommand(newCompileCmd(a), newDialectsCmd(a), newFunctionsCmd(a))
	return root
}

// engine builds an engine for the named dialect, or the configured one.
func (a *app) engine(name string) (*engine.Engine, error) {
	if name == "" {
		name = a.cfg.Dialect
	}
	opts, err := a.cfg.DialectOptionsFor(name)
	if err != nil {
		return nil, configError("resolving dialect", err)
	}

	engOpts := []engine.Option{engine.WithDialect(opts)}
	if a.cfg.CatalogFile != "" {
		cat := schema.NewCatalog()
		if err := cat.LoadFile(a.cfg.CatalogFile); err != nil {
			return nil, configError("loading catalog", err)
		}
		engOpts = append(engOpts, engine.WithCatalog(cat))
	}
	if a.verbose {
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		engOpts = append(engOpts, engine.WithLogger(log))
	}
	return engine.New(engOpts...), nil
}
