package ip

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	defaultMaxNodes         = 100000
	defaultSimplexTolerance = 1e-10
)

type simplexSolver struct {
	maxNodes  int
	tolerance float64
}

type SimplexOption func(*simplexSolver)

// WithMaxNodes bounds the number of branch-and-bound nodes explored. When the limit is reached the best
// integral solution found so far is returned with StatusFeasible.
func WithMaxNodes(nodes int) SimplexOption {
	return func(solver *simplexSolver) {
		if nodes > 0 {
			solver.maxNodes = nodes
		}
	}
}

// NewSimplexSolver returns a branch-and-bound solver whose LP relaxations are solved by gonum's simplex
func NewSimplexSolver(options ...SimplexOption) Solver {
	solver := &simplexSolver{
		maxNodes:  defaultMaxNodes,
		tolerance: defaultSimplexTolerance,
	}
	for _, option := range options {
		option(solver)
	}
	return solver
}

// row is a presolved "sum(coefficient * y) <= bound" inequality over shifted variables y = x - lower
type row struct {
	terms []term
	bound float64
}

// relaxation is the LP relaxation of a model over shifted variables y = x - lower, y >= 0
type relaxation struct {
	shift []float64
	upper []float64 // upper bound of y, +Inf when unbounded
	cost  []float64 // minimization costs
	rows  []row

	// implied is the tightest upper bound on y the rows enforce on their own, +Inf when none does
	implied []float64
	inRows  []bool
}

type node struct {
	lower []float64
	upper []float64
}

func (solver *simplexSolver) Solve(ctx context.Context, model *Model) (Solution, error) {
	if model.NumVariables() == 0 {
		return solveEmpty(model), nil
	}

	//** Build relaxation
	relaxation, feasible, err := newRelaxation(model)
	if err != nil {
		return Solution{}, err
	} else if !feasible {
		return Solution{Status: StatusInfeasible}, nil
	}

	//** Branch and bound
	var incumbent []float64
	incumbentValue := math.Inf(1)

	stack := []node{{
		lower: make([]float64, len(relaxation.shift)),
		upper: append([]float64(nil), relaxation.upper...),
	}}

	explored := 0
	for len(stack) > 0 {
		if ctx.Err() != nil || explored >= solver.maxNodes {
			if incumbent != nil {
				return solver.solution(model, relaxation, incumbent, StatusFeasible), nil
			} else if ctx.Err() != nil {
				return Solution{Status: StatusNotSolved}, fmt.Errorf("branch and bound interrupted: %w", ctx.Err())
			}
			return Solution{Status: StatusNotSolved}, nil
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		explored++

		value, y, err := relaxation.solve(ctx, current, solver.tolerance)
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			if incumbent != nil {
				return solver.solution(model, relaxation, incumbent, StatusFeasible), nil
			}
			return Solution{Status: StatusNotSolved}, fmt.Errorf("branch and bound interrupted: %w", err)
		} else if errors.Is(err, lp.ErrInfeasible) {
			continue
		} else if errors.Is(err, lp.ErrUnbounded) {
			if explored == 1 {
				return Solution{Status: StatusUnbounded}, nil
			}
			continue
		} else if err != nil {
			return Solution{}, fmt.Errorf("an error occurred while solving the LP relaxation: %w", err)
		}

		// Prune nodes that cannot improve the incumbent
		if value >= incumbentValue-feasibilityTolerance {
			continue
		}

		branching := mostFractional(model, y)
		if branching < 0 {
			incumbent, incumbentValue = y, value
			if solution := solver.solution(model, relaxation, incumbent, StatusOptimal); model.objective.attained(solution.Objective) {
				return solution, nil
			}
			continue
		}

		// Push the down branch first so the up branch is explored first
		down := node{lower: append([]float64(nil), current.lower...), upper: append([]float64(nil), current.upper...)}
		down.upper[branching] = math.Floor(y[branching])
		up := node{lower: append([]float64(nil), current.lower...), upper: append([]float64(nil), current.upper...)}
		up.lower[branching] = math.Ceil(y[branching])

		stack = append(stack, down, up)
	}

	if incumbent == nil {
		return Solution{Status: StatusInfeasible}, nil
	}
	return solver.solution(model, relaxation, incumbent, StatusOptimal), nil
}

func (solver *simplexSolver) solution(model *Model, relaxation *relaxation, y []float64, status Status) Solution {
	values := make([]float64, len(y))
	for i, variable := range model.variables {
		values[i] = y[i] + relaxation.shift[i]
		if variable.integer {
			values[i] = math.Round(values[i])
		}
	}
	return Solution{
		Status:    status,
		Objective: evaluate(model, values),
		Values:    values,
	}
}

// mostFractional returns the integer variable whose relaxed value is farthest from an integer, or -1
// when every integer variable is integral
func mostFractional(model *Model, y []float64) int {
	branching, distance := -1, feasibilityTolerance
	for _, variable := range model.variables {
		if !variable.integer {
			continue
		}
		value := y[variable.index]
		fractional := math.Abs(value - math.Round(value))
		if fractional > distance {
			branching, distance = variable.index, fractional
		}
	}
	return branching
}

// newRelaxation shifts every variable to a zero lower bound and turns ranged constraints into "<=" rows,
// dropping the sides already implied by the variables' bounds. It reports infeasible=false when a
// constraint cannot be met by any value within the bounds.
func newRelaxation(model *Model) (*relaxation, bool, error) {
	relaxation := &relaxation{
		shift: make([]float64, len(model.variables)),
		upper: make([]float64, len(model.variables)),
		cost:  make([]float64, len(model.variables)),
	}

	for i, variable := range model.variables {
		if math.IsInf(variable.lower, -1) {
			return nil, false, fmt.Errorf("variable %v: %w", variable.name, ErrUnboundedDomain)
		} else if variable.upper < variable.lower {
			return relaxation, false, nil
		}
		relaxation.shift[i] = variable.lower
		relaxation.upper[i] = variable.upper - variable.lower
		if variable.integer {
			relaxation.shift[i] = math.Ceil(variable.lower)
			relaxation.upper[i] = math.Floor(variable.upper) - relaxation.shift[i]
			if relaxation.upper[i] < 0 {
				return relaxation, false, nil
			}
		}
	}

	sign := 1.0
	if model.objective.maximize {
		sign = -1.0
	}
	for _, term := range model.objective.terms {
		relaxation.cost[term.variable] = sign * term.coefficient
	}

	for _, constraint := range model.constraints {
		terms := lo.Filter(constraint.terms, func(term term, _ int) bool { return term.coefficient != 0 })

		offset, minActivity, maxActivity := 0.0, 0.0, 0.0
		for _, term := range terms {
			offset += term.coefficient * relaxation.shift[term.variable]
			if term.coefficient > 0 {
				maxActivity += term.coefficient * relaxation.upper[term.variable]
			} else {
				minActivity += term.coefficient * relaxation.upper[term.variable]
			}
		}
		lower, upper := constraint.lower-offset, constraint.upper-offset

		if maxActivity < lower-feasibilityTolerance || minActivity > upper+feasibilityTolerance {
			return relaxation, false, nil
		}

		if !math.IsInf(upper, 1) && maxActivity > upper+feasibilityTolerance {
			relaxation.rows = append(relaxation.rows, row{terms: terms, bound: upper})
		}
		if !math.IsInf(lower, -1) && minActivity < lower-feasibilityTolerance {
			negated := lo.Map(terms, func(t term, _ int) term {
				return term{variable: t.variable, coefficient: -t.coefficient}
			})
			relaxation.rows = append(relaxation.rows, row{terms: negated, bound: -lower})
		}
	}

	relaxation.implied = make([]float64, len(model.variables))
	relaxation.inRows = make([]bool, len(model.variables))
	for j := range relaxation.implied {
		relaxation.implied[j] = math.Inf(1)
	}
	for _, row := range relaxation.rows {
		nonnegative := lo.EveryBy(row.terms, func(term term) bool { return term.coefficient >= 0 })
		for _, term := range row.terms {
			relaxation.inRows[term.variable] = true
			if nonnegative && term.coefficient > 0 {
				relaxation.implied[term.variable] = math.Min(relaxation.implied[term.variable], row.bound/term.coefficient)
			}
		}
	}

	return relaxation, true, nil
}

// solve solves the relaxation restricted to the node's bounds and returns the minimized cost (without the
// constant introduced by shifting) together with the shifted variable values. A variable outside every
// row is set to its cheapest bound directly, and a bound row is only emitted when the rows do not
// already enforce it.
func (relaxation *relaxation) solve(ctx context.Context, current node, tolerance float64) (float64, []float64, error) {
	variables := len(relaxation.shift)
	y := make([]float64, variables)

	//** Collect rows
	constant := 0.0
	rows := append([]row(nil), relaxation.rows...)
	for j := range variables {
		if current.upper[j] < current.lower[j] {
			return 0, nil, lp.ErrInfeasible
		}
		if !relaxation.inRows[j] {
			y[j] = current.lower[j]
			if relaxation.cost[j] < 0 {
				if math.IsInf(current.upper[j], 1) {
					return math.Inf(-1), nil, lp.ErrUnbounded
				}
				y[j] = current.upper[j]
			}
			constant += relaxation.cost[j] * y[j]
			continue
		}
		if !math.IsInf(current.upper[j], 1) && current.upper[j] < relaxation.implied[j]-feasibilityTolerance {
			rows = append(rows, row{terms: []term{{variable: j, coefficient: 1}}, bound: current.upper[j]})
		}
		if current.lower[j] > 0 {
			rows = append(rows, row{terms: []term{{variable: j, coefficient: -1}}, bound: -current.lower[j]})
		}
	}
	if len(rows) == 0 {
		return constant, y, nil
	}

	//** Select columns that appear in at least one row
	columns := make(map[int]int)
	active := make([]int, 0, variables)
	for _, row := range rows {
		for _, term := range row.terms {
			if _, ok := columns[term.variable]; !ok {
				columns[term.variable] = len(active)
				active = append(active, term.variable)
			}
		}
	}

	//** Assemble standard form: [G I] * [y s] = h, y, s >= 0
	m, n := len(rows), len(active)+len(rows)
	A := mat.NewDense(m, n, nil)
	b := make([]float64, m)
	c := make([]float64, n)
	for i, row := range rows {
		for _, term := range row.terms {
			A.Set(i, columns[term.variable], A.At(i, columns[term.variable])+term.coefficient)
		}
		A.Set(i, len(active)+i, 1)
		b[i] = row.bound
	}
	for k, j := range active {
		c[k] = relaxation.cost[j]
	}

	value, x, err := simplex(ctx, c, A, b, tolerance)
	if err != nil {
		return 0, nil, err
	}

	for k, j := range active {
		y[j] = x[k]
	}
	return value + constant, y, nil
}

// simplex runs lp.Simplex until it returns or ctx is done. gonum offers no way to stop a running
// simplex, so on cancellation the computation finishes in the background and its result is dropped.
func simplex(ctx context.Context, c []float64, A mat.Matrix, b []float64, tolerance float64) (float64, []float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	type result struct {
		value float64
		x     []float64
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, x, err := lp.Simplex(c, A, b, tolerance, nil)
		done <- result{value: value, x: x, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.x, r.err
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}
