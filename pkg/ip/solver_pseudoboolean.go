package ip

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"slices"

	"github.com/crillab/gophersat/solver"
	"github.com/samber/lo"
)

// pseudoBooleanSolver encodes every integer variable x in [lower, upper] as lower + sum(2^k * b_k) over
// boolean literals b_k and hands the resulting pseudo-boolean problem to gophersat
type pseudoBooleanSolver struct{}

func NewPseudoBooleanSolver() Solver {
	return &pseudoBooleanSolver{}
}

// encoding maps a model variable to its boolean literals (1-based gophersat variables) and their weights
type encoding struct {
	offset   int
	literals []int
	weights  []int
}

func (s *pseudoBooleanSolver) Solve(ctx context.Context, model *Model) (Solution, error) {
	if model.NumVariables() == 0 {
		return solveEmpty(model), nil
	}

	//** Encode variables
	encodings := make([]encoding, len(model.variables))
	constraints := make([]solver.PBConstr, 0, len(model.constraints)+len(model.variables))
	nextLiteral := 1
	for i, variable := range model.variables {
		if math.IsInf(variable.lower, 0) || math.IsInf(variable.upper, 0) {
			return Solution{}, fmt.Errorf("variable %v: %w", variable.name, ErrUnboundedDomain)
		} else if !variable.integer || !integral(variable.lower) || !integral(variable.upper) {
			return Solution{}, fmt.Errorf("variable %v: %w", variable.name, ErrNonIntegral)
		} else if variable.upper < variable.lower {
			return Solution{Status: StatusInfeasible}, nil
		}

		span := int(variable.upper - variable.lower)
		width := max(bits.Len(uint(span)), 1)
		encodings[i] = encoding{
			offset:   int(variable.lower),
			literals: make([]int, width),
			weights:  make([]int, width),
		}
		for k := range width {
			encodings[i].literals[k] = nextLiteral
			encodings[i].weights[k] = 1 << k
			// Tautology that keeps every literal known to the solver, even if no row mentions it
			constraints = append(constraints, solver.PropClause(nextLiteral, -nextLiteral))
			nextLiteral++
		}
		// Binary encoding may exceed the span, unless span+1 is a power of two
		if (1<<width)-1 > span {
			negated := lo.Map(encodings[i].weights, func(weight int, _ int) int { return -weight })
			constr, _, _ := atLeast(encodings[i].literals, negated, -span)
			constraints = append(constraints, constr)
		}
	}

	//** Encode constraints
	for _, constraint := range model.constraints {
		literals, weights, offset := make([]int, 0), make([]int, 0), 0
		for _, term := range constraint.terms {
			if !integral(term.coefficient) {
				return Solution{}, fmt.Errorf("constraint %v: %w", constraint.name, ErrNonIntegral)
			}
			coefficient := int(term.coefficient)
			encoded := encodings[term.variable]
			offset += coefficient * encoded.offset
			for k, literal := range encoded.literals {
				literals = append(literals, literal)
				weights = append(weights, coefficient*encoded.weights[k])
			}
		}

		if !math.IsInf(constraint.lower, -1) {
			if !integral(constraint.lower) {
				return Solution{}, fmt.Errorf("constraint %v: %w", constraint.name, ErrNonIntegral)
			}
			constr, trivial, infeasible := atLeast(literals, weights, int(constraint.lower)-offset)
			if infeasible {
				return Solution{Status: StatusInfeasible}, nil
			} else if !trivial {
				constraints = append(constraints, constr)
			}
		}
		if !math.IsInf(constraint.upper, 1) {
			if !integral(constraint.upper) {
				return Solution{}, fmt.Errorf("constraint %v: %w", constraint.name, ErrNonIntegral)
			}
			// sum(w * l) <= upper  <=>  sum(-w * l) >= -upper
			negated := lo.Map(weights, func(weight int, _ int) int { return -weight })
			constr, trivial, infeasible := atLeast(literals, negated, offset-int(constraint.upper))
			if infeasible {
				return Solution{Status: StatusInfeasible}, nil
			} else if !trivial {
				constraints = append(constraints, constr)
			}
		}
	}

	//** Encode objective as a minimization over positive weights
	// maximize sum(c * x) is minimize sum(-c * x); a negative weight w on literal l is rewritten as
	// w + |w| * not(l), so only positive weights reach the solver
	costLiterals, costWeights := make([]solver.Lit, 0), make([]int, 0)
	for _, term := range model.objective.terms {
		if !integral(term.coefficient) {
			return Solution{}, fmt.Errorf("objective: %w", ErrNonIntegral)
		}
		coefficient := int(term.coefficient)
		if model.objective.maximize {
			coefficient = -coefficient
		}
		encoded := encodings[term.variable]
		for k, literal := range encoded.literals {
			weight := coefficient * encoded.weights[k]
			if weight == 0 {
				continue
			}
			lit := solver.IntToLit(int32(literal))
			if weight < 0 {
				lit, weight = lit.Negation(), -weight
			}
			costLiterals = append(costLiterals, lit)
			costWeights = append(costWeights, weight)
		}
	}

	//** Solve
	if err := ctx.Err(); err != nil {
		return Solution{Status: StatusNotSolved}, err
	}
	problem := solver.ParsePBConstrs(constraints)
	if len(costLiterals) > 0 {
		problem.SetCostFunc(costLiterals, costWeights)
	}
	search := &pseudoBooleanSearch{
		solver:       solver.New(problem),
		model:        model,
		encodings:    encodings,
		costLiterals: costLiterals,
		costWeights:  costWeights,
	}
	improvements := make(chan []float64)
	stop := make(chan struct{})
	go search.run(improvements, stop)

	var best []float64
	for {
		select {
		case values, ok := <-improvements:
			if !ok {
				if best == nil {
					return Solution{Status: StatusInfeasible}, nil
				}
				return Solution{Status: StatusOptimal, Objective: evaluate(model, best), Values: best}, nil
			}
			best = values
		case <-ctx.Done():
			close(stop)
			go func() {
				for range improvements {
				}
			}()
			if best == nil {
				return Solution{Status: StatusNotSolved}, fmt.Errorf("pseudo-boolean search interrupted: %w", ctx.Err())
			}
			return Solution{Status: StatusFeasible, Objective: evaluate(model, best), Values: best}, nil
		}
	}
}

// pseudoBooleanSearch walks a chain of models of strictly decreasing cost
type pseudoBooleanSearch struct {
	solver       *solver.Solver
	model        *Model
	encodings    []encoding
	costLiterals []solver.Lit
	costWeights  []int
}

// run sends every improving model on improvements and closes it once no cheaper model exists, the
// objective bound is attained or stop is closed. A running gophersat Solve cannot be interrupted, so
// stop is only observed between two calls.
func (search *pseudoBooleanSearch) run(improvements chan<- []float64, stop <-chan struct{}) {
	defer close(improvements)

	maxCost := lo.Sum(search.costWeights)
	for search.solver.Solve() == solver.Sat {
		bindings := search.solver.Model()
		values := search.decode(bindings)
		select {
		case improvements <- values:
		case <-stop:
			return
		}

		cost := search.cost(bindings)
		if cost == 0 || search.model.objective.attained(evaluate(search.model, values)) {
			return
		}
		select {
		case <-stop:
			return
		default:
		}

		// Next model must be cheaper: sum(w * not(l)) >= maxCost - cost + 1
		literals := lo.Map(search.costLiterals, func(lit solver.Lit, _ int) solver.Lit { return lit.Negation() })
		weights := slices.Clone(search.costWeights)
		search.solver.AppendClause(solver.NewPBClause(literals, weights, maxCost-cost+1))
	}
}

func (search *pseudoBooleanSearch) decode(bindings []bool) []float64 {
	values := make([]float64, len(search.encodings))
	for i, encoded := range search.encodings {
		value := encoded.offset
		for k, literal := range encoded.literals {
			if literal-1 < len(bindings) && bindings[literal-1] {
				value += encoded.weights[k]
			}
		}
		values[i] = float64(value)
	}
	return values
}

func (search *pseudoBooleanSearch) cost(bindings []bool) int {
	cost := 0
	for i, lit := range search.costLiterals {
		if int(lit.Var()) < len(bindings) && bindings[lit.Var()] == lit.IsPositive() {
			cost += search.costWeights[i]
		}
	}
	return cost
}

// atLeast builds "sum(weights * literals) >= bound" with only positive weights. trivial reports a
// constraint satisfied by every assignment and infeasible one satisfied by none.
func atLeast(literals, weights []int, bound int) (constr solver.PBConstr, trivial bool, infeasible bool) {
	normalizedLiterals := make([]int, 0, len(literals))
	normalizedWeights := make([]int, 0, len(weights))
	total := 0
	for i, literal := range literals {
		weight := weights[i]
		switch {
		case weight > 0:
			normalizedLiterals = append(normalizedLiterals, literal)
			normalizedWeights = append(normalizedWeights, weight)
			total += weight
		case weight < 0:
			// w * l = w + |w| * not(l)
			normalizedLiterals = append(normalizedLiterals, -literal)
			normalizedWeights = append(normalizedWeights, -weight)
			bound -= weight
			total -= weight
		}
	}

	if bound <= 0 {
		return constr, true, false
	} else if bound > total {
		return constr, false, true
	}
	return solver.GtEq(normalizedLiterals, normalizedWeights, bound), false, false
}

func integral(value float64) bool {
	return value == math.Trunc(value)
}
