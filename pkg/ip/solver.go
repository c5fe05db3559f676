package ip

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrNonIntegral     = errors.New("ip: coefficients and bounds must be integral for this solver")
	ErrUnboundedDomain = errors.New("ip: variable domain must be bounded for this solver")
)

// feasibilityTolerance is the slack accepted when checking constraint rows and integrality
const feasibilityTolerance = 1e-6

type Status int

const (
	StatusNotSolved Status = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
	StatusUnbounded
)

func (status Status) String() string {
	switch status {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	default:
		return "not-solved"
	}
}

func (status Status) MarshalText() ([]byte, error) {
	return []byte(status.String()), nil
}

func (status *Status) UnmarshalText(text []byte) error {
	for candidate := StatusNotSolved; candidate <= StatusUnbounded; candidate++ {
		if candidate.String() == string(text) {
			*status = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown solver status %q", text)
}

// Solved reports whether the status carries variable values
func (status Status) Solved() bool {
	return status == StatusOptimal || status == StatusFeasible
}

// Solution is the outcome of a Solve call. Values is indexed by Variable.Index() and is only populated
// when Status.Solved() is true.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
}

func (solution Solution) Value(variable *Variable) float64 {
	if variable.index >= len(solution.Values) {
		return 0
	}
	return solution.Values[variable.index]
}

// Solver solves a Model. A non-nil error means the backend failed; infeasible or unbounded models are
// reported through Solution.Status with a nil error.
type Solver interface {
	Solve(ctx context.Context, model *Model) (Solution, error)
}

// solveEmpty handles models without variables, which every backend would otherwise reject
func solveEmpty(model *Model) Solution {
	for _, constraint := range model.constraints {
		if constraint.lower > feasibilityTolerance || constraint.upper < -feasibilityTolerance {
			return Solution{Status: StatusInfeasible}
		}
	}
	return Solution{Status: StatusOptimal, Objective: 0, Values: []float64{}}
}

// evaluate computes the objective value of the given assignment
func evaluate(model *Model, values []float64) float64 {
	objective := 0.0
	for _, term := range model.objective.terms {
		objective += term.coefficient * values[term.variable]
	}
	return objective
}

// checkFeasible verifies values against every bound and row of the model
func checkFeasible(model *Model, values []float64) error {
	if len(values) != len(model.variables) {
		return fmt.Errorf("expected %d values, got %d", len(model.variables), len(values))
	}
	for _, variable := range model.variables {
		value := values[variable.index]
		if value < variable.lower-feasibilityTolerance || value > variable.upper+feasibilityTolerance {
			return fmt.Errorf("variable %v = %v is outside [%v, %v]", variable.name, value, variable.lower, variable.upper)
		}
		if variable.integer && math.Abs(value-math.Round(value)) > feasibilityTolerance {
			return fmt.Errorf("integer variable %v has fractional value %v", variable.name, value)
		}
	}
	for _, constraint := range model.constraints {
		activity := 0.0
		for _, term := range constraint.terms {
			activity += term.coefficient * values[term.variable]
		}
		if activity < constraint.lower-feasibilityTolerance || activity > constraint.upper+feasibilityTolerance {
			return fmt.Errorf("constraint %v = %v is outside [%v, %v]", constraint.name, activity, constraint.lower, constraint.upper)
		}
	}
	return nil
}
