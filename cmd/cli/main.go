package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/limaJavier/placement/internal/config"
	"github.com/limaJavier/placement/internal/logging"
	"github.com/limaJavier/placement/pkg/ip"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Exit codes shared with the benchmark
const (
	exitFailure    = 1
	exitSolved     = 10
	exitUnverified = 15
	exitUnsolved   = 20
)

var solvers = map[string]func(config.SolverConfig) ip.Solver{
	"simplex": func(solverConfig config.SolverConfig) ip.Solver {
		return ip.NewSimplexSolver(ip.WithMaxNodes(solverConfig.MaxNodes))
	},
	"pseudoboolean": func(config.SolverConfig) ip.Solver {
		return ip.NewPseudoBooleanSolver()
	},
	"glpk": func(solverConfig config.SolverConfig) ip.Solver {
		return ip.NewGlpkSolver(solverConfig.GlpkPath)
	},
}

// exitStatus ends the process with code once the command returns
type exitStatus struct {
	code int
	err  error
}

func (status exitStatus) Error() string {
	if status.err == nil {
		return fmt.Sprintf("exit status %d", status.code)
	}
	return status.err.Error()
}

func (status exitStatus) Unwrap() error {
	return status.err
}

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}

	var status exitStatus
	if errors.As(err, &status) {
		if status.err != nil {
			fmt.Fprintln(os.Stderr, status.err)
		}
		os.Exit(status.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(exitFailure)
}

func newRootCommand() *cobra.Command {
	v := config.New()
	var configFile string

	root := &cobra.Command{
		Use:           "placement",
		Short:         "Place pupils into classes by solving an integer program",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a YAML or JSON config file")
	flags.String("solver", "simplex", "Solver backend. Allowed values are: \"simplex\", \"pseudoboolean\", \"glpk\"")
	flags.Duration("timeout", 0, "Time limit of a single solve, where 0 disables it")
	flags.Int("max-nodes", 0, "Branch and bound node limit of the simplex backend, where 0 keeps the default")
	flags.String("glpk-path", "glpsol", "Path to the glpsol executable")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.Bool("log-development", false, "Human readable logs")
	bindFlags(v, flags, map[string]string{
		"solver.backend":  "solver",
		"solver.timeout":  "timeout",
		"solver.maxNodes": "max-nodes",
		"solver.glpkPath": "glpk-path",
		"log.level":       "log-level",
		"log.development": "log-development",
	})

	load := func() (config.Config, logr.Logger, error) {
		cfg, err := config.Load(v, configFile)
		if err != nil {
			return config.Config{}, logr.Discard(), err
		}
		logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Development)
		if err != nil {
			return config.Config{}, logr.Discard(), err
		}
		return cfg, logger, nil
	}

	root.AddCommand(newSolveCommand(v, load), newServeCommand(v, load))
	return root
}

// bindFlags binds each config key to the flag of the given name
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("cannot bind flag %v: %v", name, err))
		}
	}
}

func newSolver(solverConfig config.SolverConfig) ip.Solver {
	return solvers[solverConfig.Backend](solverConfig)
}
