package ip

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

const defaultGlpkPath = "glpsol"

type glpkSolver struct {
	path string
}

// NewGlpkSolver drives the glpsol binary found at path (or on PATH when path is empty)
func NewGlpkSolver(path string) Solver {
	if path == "" {
		path = defaultGlpkPath
	}
	return &glpkSolver{path: path}
}

func (solver *glpkSolver) Solve(ctx context.Context, model *Model) (Solution, error) {
	if model.NumVariables() == 0 {
		return solveEmpty(model), nil
	}

	// Create a temporary file to hold the LP content
	inputTempFile, err := os.CreateTemp("", "model-*.lp")
	if err != nil {
		return Solution{}, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(inputTempFile.Name())

	outputTempFile, err := os.CreateTemp("", "glpsol_output-*.sol")
	if err != nil {
		return Solution{}, fmt.Errorf("failed to create temporary file: %w", err)
	}
	outputTempFile.Close()
	defer os.Remove(outputTempFile.Name())

	if err := model.WriteLP(inputTempFile); err != nil {
		inputTempFile.Close()
		return Solution{}, fmt.Errorf("failed to write LP to temporary file: %w", err)
	}
	if err := inputTempFile.Close(); err != nil {
		return Solution{}, fmt.Errorf("failed to close temporary file: %w", err)
	}

	cmd := exec.CommandContext(ctx, solver.path, "--lp", inputTempFile.Name(), "-w", outputTempFile.Name())
	if deadline, ok := ctx.Deadline(); ok {
		seconds := int(math.Ceil(time.Until(deadline).Seconds()))
		cmd.Args = append(cmd.Args, "--tmlim", strconv.Itoa(max(seconds, 1)))
	}

	var stdOut bytes.Buffer
	cmd.Stdout = &stdOut
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Solution{Status: StatusNotSolved}, fmt.Errorf("glpsol interrupted: %w", ctx.Err())
		}
		return Solution{}, fmt.Errorf("an error occurred during glpsol execution: %w : %v %v", err, stdOut.String(), stderr.String())
	}

	output, err := os.ReadFile(outputTempFile.Name())
	if err != nil {
		return Solution{}, fmt.Errorf("failed to read output file: %w", err)
	}
	return parseGlpkSolution(model, string(output))
}

// parseGlpkSolution reads glpsol's plain-text solution format:
//
//	s mip ROWS COLS STATUS OBJ        j COL VALUE
//	s bas ROWS COLS PRIMAL DUAL OBJ   j COL STATUS PRIMAL DUAL
//	s ipt ROWS COLS STATUS OBJ        j COL PRIMAL DUAL
func parseGlpkSolution(model *Model, output string) (Solution, error) {
	lines := lo.Filter(strings.Split(output, "\n"), func(line string, _ int) bool {
		return len(line) > 0 && line[0] != 'c'
	})

	solution := Solution{Status: StatusNotSolved}
	kind := ""
	values := make([]float64, len(model.variables))
	for _, line := range lines {
		fields := strings.Fields(line)
		switch fields[0] {
		case "s":
			if len(fields) < 6 {
				return Solution{}, fmt.Errorf("malformed glpsol status line %q", line)
			}
			kind = fields[1]
			solution.Status = glpkStatus(kind, fields[4:len(fields)-1])
			objective, err := strconv.ParseFloat(fields[len(fields)-1], 64)
			if err != nil {
				return Solution{}, fmt.Errorf("invalid objective in glpsol output: %w", err)
			}
			solution.Objective = objective
		case "j":
			if len(fields) < 3 {
				return Solution{}, fmt.Errorf("malformed glpsol column line %q", line)
			}
			column, err := strconv.Atoi(fields[1])
			if err != nil || column < 1 || column > len(values) {
				return Solution{}, fmt.Errorf("invalid column in glpsol output %q", line)
			}
			valueField := 2
			if kind == "bas" {
				valueField = 3
			}
			if len(fields) <= valueField {
				return Solution{}, fmt.Errorf("malformed glpsol column line %q", line)
			}
			value, err := strconv.ParseFloat(fields[valueField], 64)
			if err != nil {
				return Solution{}, fmt.Errorf("invalid value in glpsol output: %w", err)
			}
			values[column-1] = value
		}
	}

	if solution.Status.Solved() {
		solution.Values = values
	}
	return solution, nil
}

// glpkStatus maps the status letters of a glpsol solution line
func glpkStatus(kind string, statuses []string) Status {
	switch kind {
	case "mip":
		switch statuses[0] {
		case "o":
			return StatusOptimal
		case "f":
			return StatusFeasible
		case "n":
			return StatusInfeasible
		}
	case "bas", "ipt":
		primal, dual := statuses[0], statuses[len(statuses)-1]
		switch {
		case primal == "n" || primal == "i":
			return StatusInfeasible
		case primal == "f" && (dual == "n" || dual == "i"):
			return StatusUnbounded
		case primal == "o" || (primal == "f" && dual == "f"):
			return StatusOptimal
		case primal == "f":
			return StatusFeasible
		}
	}
	return StatusNotSolved
}
