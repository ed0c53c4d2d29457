package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dukex/stepflow/pkg/cmd"
	"github.com/dukex/stepflow/pkg/editor"
	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/registry"
	cli "github.com/urfave/cli/v3"
)

func fileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Step list in YAML or JSON, - for stdin",
		Required: true,
	}
}

func newCommand(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:                  "stepflow",
		Usage:                 "Compile and inspect workflow step lists offline",
		EnableShellCompletion: true,
		Writer:                stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:    "compile",
				Aliases: []string{"c"},
				Usage:   "Print the graph of a step list",
				Flags:   []cli.Flag{fileFlag()},
				Action: func(_ context.Context, command *cli.Command) error {
					reg, steps, err := load(command, stdin)
					if err != nil {
						return err
					}

					return writeJSON(stdout, graph.Compile(steps, graph.WithLabeler(reg)))
				},
			},
			{
				Name:    "analyze",
				Aliases: []string{"a"},
				Usage:   "Report cycles, dangling paths, unreachable steps and config issues",
				Flags:   []cli.Flag{fileFlag()},
				Action: func(_ context.Context, command *cli.Command) error {
					reg, steps, err := load(command, stdin)
					if err != nil {
						return err
					}

					report, err := graph.Analyze(steps)
					if err != nil {
						return err
					}

					issues := reg.ValidateSteps(steps)
					if issues == nil {
						issues = []registry.Issue{}
					}

					return writeJSON(stdout, map[string]any{
						"report": report,
						"issues": issues,
					})
				},
			},
			{
				Name:  "actions",
				Usage: "List the available action types",
				Action: func(_ context.Context, _ *cli.Command) error {
					reg, err := cmd.NewRegistry(log.WithModule("stepflow"))
					if err != nil {
						return err
					}

					for _, def := range reg.Definitions() {
						if _, err := fmt.Fprintf(stdout, "%-22s %s\n", def.Type, def.Description); err != nil {
							return err
						}
					}

					return nil
				},
			},
		},
	}
}

// load reads the step list and normalizes it through a store, so orders,
// default configs and id-referenced branch paths are consistent.
func load(command *cli.Command, stdin io.Reader) (*registry.Registry, []models.Step, error) {
	logger := log.WithModule("stepflow")

	reg, err := cmd.NewRegistry(logger)
	if err != nil {
		return nil, nil, err
	}

	steps, err := readSteps(command.String("file"), stdin)
	if err != nil {
		return nil, nil, err
	}

	store := editor.NewStore(reg, logger)
	if err := store.Replace(steps); err != nil {
		return nil, nil, fmt.Errorf("invalid step list: %w", err)
	}

	return reg, store.Steps(), nil
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}

func main() {
	if err := newCommand(os.Stdin, os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
