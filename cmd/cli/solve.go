package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/limaJavier/placement/internal/config"
	"github.com/limaJavier/placement/internal/store"
	"github.com/limaJavier/placement/pkg/loader"
	"github.com/limaJavier/placement/pkg/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newSolveCommand(v *viper.Viper, load func() (config.Config, logr.Logger, error)) *cobra.Command {
	var outFile, lpFile string

	command := &cobra.Command{
		Use:   "solve [input]",
		Short: "Solve one placement and print the class rosters",
		Long: `Solve one placement and print the class rosters.

The input is a JSON file, an XLSX workbook or a directory of CSV tables. The process exits with 10 when a
placement was found, 20 when the solver found none, 15 when the placement failed verification and 1 on errors.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bound on run since both commands share the input keys
			bindFlags(v, cmd.Flags(), map[string]string{
				"input.path":   "file",
				"input.format": "format",
				"output":       "output",
			})
			if len(args) == 1 {
				v.Set("input.path", args[0])
			}
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if cfg.Input.Path == "" {
				return errors.New("an input file must be specified")
			}

			out := cmd.OutOrStdout()
			if outFile != "" {
				file, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("cannot create output file: %w", err)
				}
				defer file.Close()
				out = file
			}
			return solve(cmd.Context(), cfg, logger, lpFile, out)
		},
	}

	flags := command.Flags()
	flags.String("file", "", "Path to the input file or CSV directory")
	flags.String("format", "", "Input format: json, csv or xlsx; inferred from the path when empty")
	flags.String("output", "text", "Output format: text, json or yaml")
	flags.StringVar(&outFile, "out", "", "Path to the file where the output will be written; if empty, it'll be written into the Standard Output")
	flags.StringVar(&lpFile, "lp", "", "Also write the model in CPLEX LP format to this path")
	return command
}

func solve(ctx context.Context, cfg config.Config, logger logr.Logger, lpFile string, out io.Writer) error {
	//** Load
	modelInput, err := loader.Load(cfg.Input.Format, cfg.Input.Path)
	if err != nil {
		return fmt.Errorf("cannot parse input file: %w", err)
	}

	if lpFile != "" {
		if err := writeLP(modelInput, lpFile); err != nil {
			return err
		}
	}

	//** Place
	report := store.Report{
		ID:        uuid.NewString(),
		Lines:     []string{},
		StartedAt: time.Now(),
	}
	run := model.RunContext{
		ID:     report.ID,
		Logger: logger,
		Progress: func(line string) {
			report.Lines = append(report.Lines, line)
			if cfg.Output == "text" {
				fmt.Fprintln(out, line)
			}
		},
	}

	placer := model.NewPlacer(newSolver(cfg.Solver), model.WithTimeout(cfg.Solver.Timeout))
	placement, err := build(ctx, placer, run, modelInput)
	report.FinishedAt = time.Now()

	status := exitSolved
	var unsolved model.UnsolvedError
	switch {
	case errors.As(err, &unsolved):
		status = exitUnsolved
	case err != nil:
		return fmt.Errorf("an error occurred during placement construction: %w", err)
	case !placer.Verify(placement, modelInput):
		status = exitUnverified
	}

	report.Placement = placement
	switch status {
	case exitSolved:
		report.State = "succeeded"
	case exitUnsolved:
		report.State = "failed"
		report.Error = err.Error()
	case exitUnverified:
		report.State = "failed"
		report.Error = "placement failed verification"
	}
	logger.Info("placement finished", "state", report.State, "elapsed", report.FinishedAt.Sub(report.StartedAt))

	//** Output
	if err := writeReport(out, cfg.Output, report); err != nil {
		return err
	}
	return exitStatus{code: status}
}

// build runs the placer and reports a panic as an error
func build(ctx context.Context, placer model.Placer, run model.RunContext, modelInput model.ModelInput) (placement *model.Placement, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			placement, err = nil, fmt.Errorf("placement panicked: %v", recovered)
		}
	}()
	return placer.Build(ctx, run, modelInput)
}

func writeReport(out io.Writer, format string, report store.Report) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return fmt.Errorf("an error occurred while building output json: %w", err)
		}
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(report); err != nil {
			return fmt.Errorf("an error occurred while building output yaml: %w", err)
		}
		return encoder.Close()
	case "text":
		if report.Error != "" {
			fmt.Fprintln(out, report.Error)
		}
	}
	return nil
}

func writeLP(modelInput model.ModelInput, path string) error {
	ipModel, err := model.BuildModel(modelInput)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create LP file: %w", err)
	}
	defer file.Close()

	if err := ipModel.WriteLP(file); err != nil {
		return fmt.Errorf("cannot write LP file: %w", err)
	}
	return nil
}
