package ip

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"
)

// Variable is a decision variable of a Model. Variables are created through the Model and are only
// meaningful for the Model that created them.
type Variable struct {
	index   int
	name    string
	lower   float64
	upper   float64
	integer bool
}

func (v *Variable) Index() int      { return v.index }
func (v *Variable) Name() string    { return v.name }
func (v *Variable) Lower() float64  { return v.lower }
func (v *Variable) Upper() float64  { return v.upper }
func (v *Variable) IsInteger() bool { return v.integer }

type term struct {
	variable    int
	coefficient float64
}

// linearExpression keeps terms in insertion order so exports and solvers see a deterministic model
type linearExpression struct {
	terms     []term
	positions map[int]int
}

func (expression *linearExpression) setCoefficient(variable *Variable, coefficient float64) {
	if expression.positions == nil {
		expression.positions = make(map[int]int)
	}
	if position, ok := expression.positions[variable.index]; ok {
		expression.terms[position].coefficient = coefficient
		return
	}
	expression.positions[variable.index] = len(expression.terms)
	expression.terms = append(expression.terms, term{variable: variable.index, coefficient: coefficient})
}

func (expression *linearExpression) coefficient(variable *Variable) float64 {
	if position, ok := expression.positions[variable.index]; ok {
		return expression.terms[position].coefficient
	}
	return 0
}

// Constraint is a ranged linear constraint: lower <= sum(coefficient * variable) <= upper.
// Either bound may be infinite.
type Constraint struct {
	linearExpression
	index int
	name  string
	lower float64
	upper float64
}

func (c *Constraint) Index() int     { return c.index }
func (c *Constraint) Name() string   { return c.name }
func (c *Constraint) Lower() float64 { return c.lower }
func (c *Constraint) Upper() float64 { return c.upper }

// SetCoefficient sets (or overwrites) the coefficient of variable in the constraint
func (c *Constraint) SetCoefficient(variable *Variable, coefficient float64) {
	c.setCoefficient(variable, coefficient)
}

func (c *Constraint) Coefficient(variable *Variable) float64 {
	return c.coefficient(variable)
}

// Objective is the linear function optimized by a Solver
type Objective struct {
	linearExpression
	maximize bool
	bound    float64
	bounded  bool
}

// SetCoefficient sets (or overwrites) the coefficient of variable in the objective
func (o *Objective) SetCoefficient(variable *Variable, coefficient float64) {
	o.setCoefficient(variable, coefficient)
}

func (o *Objective) Coefficient(variable *Variable) float64 { return o.coefficient(variable) }
func (o *Objective) SetMaximization()                       { o.maximize = true }
func (o *Objective) SetMinimization()                       { o.maximize = false }
func (o *Objective) Maximization() bool                     { return o.maximize }

// SetBound records a value no feasible solution improves on. Solvers stop searching as soon as a
// solution attains it, instead of proving optimality.
func (o *Objective) SetBound(bound float64) {
	o.bound, o.bounded = bound, true
}

func (o *Objective) Bound() (float64, bool) { return o.bound, o.bounded }

// attained reports whether value reaches the objective bound, if any
func (o *Objective) attained(value float64) bool {
	if !o.bounded {
		return false
	} else if o.maximize {
		return value >= o.bound-feasibilityTolerance
	}
	return value <= o.bound+feasibilityTolerance
}

// Model is a mixed integer linear program
type Model struct {
	name        string
	variables   []*Variable
	constraints []*Constraint
	objective   Objective
}

func NewModel(name string) *Model {
	return &Model{name: name}
}

func (model *Model) Name() string { return model.name }

// NewNumVar creates a continuous variable bounded by [lower, upper]
func (model *Model) NewNumVar(lower, upper float64, name string) *Variable {
	variable := &Variable{
		index: len(model.variables),
		name:  name,
		lower: lower,
		upper: upper,
	}
	model.variables = append(model.variables, variable)
	return variable
}

// NewIntVar creates an integer variable bounded by [lower, upper]
func (model *Model) NewIntVar(lower, upper float64, name string) *Variable {
	variable := model.NewNumVar(lower, upper, name)
	variable.integer = true
	return variable
}

// NewBoolVar creates an integer variable bounded by [0, 1]
func (model *Model) NewBoolVar(name string) *Variable {
	return model.NewIntVar(0, 1, name)
}

// NewConstraint creates an empty constraint bounded by [lower, upper]
func (model *Model) NewConstraint(lower, upper float64, name string) *Constraint {
	constraint := &Constraint{
		index: len(model.constraints),
		name:  name,
		lower: lower,
		upper: upper,
	}
	model.constraints = append(model.constraints, constraint)
	return constraint
}

func (model *Model) Objective() *Objective      { return &model.objective }
func (model *Model) Variables() []*Variable     { return model.variables }
func (model *Model) Constraints() []*Constraint { return model.constraints }
func (model *Model) NumVariables() int          { return len(model.variables) }
func (model *Model) NumConstraints() int        { return len(model.constraints) }

// ToLP returns the model in CPLEX-LP text format
func (model *Model) ToLP() string {
	var builder strings.Builder
	model.WriteLP(&builder)
	return builder.String()
}

// WriteLP writes the model in CPLEX-LP text format. Variables are renamed x1..xn and rows r1..rm so the
// output is accepted regardless of the characters used in the model's names; the original names are kept
// as comments. Every variable is listed in the objective (with a zero coefficient if needed) so readers
// that number columns by first appearance keep the model's variable order.
func (model *Model) WriteLP(w io.Writer) error {
	writer := bufio.NewWriter(w)

	fmt.Fprintf(writer, "\\ Problem: %v\n", model.name)
	for _, variable := range model.variables {
		fmt.Fprintf(writer, "\\ x%d = %v\n", variable.index+1, variable.name)
	}

	if model.objective.maximize {
		writer.WriteString("Maximize\n")
	} else {
		writer.WriteString("Minimize\n")
	}
	writer.WriteString(" obj:")
	for _, variable := range model.variables {
		fmt.Fprintf(writer, " %v x%d", formatCoefficient(model.objective.coefficient(variable)), variable.index+1)
	}
	writer.WriteString("\n")

	writer.WriteString("Subject To\n")
	row := 0
	writeRow := func(constraint *Constraint, operator string, bound float64) {
		row++
		fmt.Fprintf(writer, " r%d:", row)
		if len(constraint.terms) == 0 {
			// LP format does not allow empty rows, a zero term on the first variable keeps the row
			fmt.Fprintf(writer, " + 0 x1")
		}
		for _, term := range constraint.terms {
			fmt.Fprintf(writer, " %v x%d", formatCoefficient(term.coefficient), term.variable+1)
		}
		fmt.Fprintf(writer, " %v %v\n", operator, formatNumber(bound))
	}
	for _, constraint := range model.constraints {
		if len(constraint.terms) == 0 && len(model.variables) == 0 {
			continue
		}
		fmt.Fprintf(writer, "\\ %v\n", constraint.name)
		lowerFinite, upperFinite := !math.IsInf(constraint.lower, -1), !math.IsInf(constraint.upper, 1)
		switch {
		case lowerFinite && upperFinite && constraint.lower == constraint.upper:
			writeRow(constraint, "=", constraint.upper)
		default:
			if lowerFinite {
				writeRow(constraint, ">=", constraint.lower)
			}
			if upperFinite {
				writeRow(constraint, "<=", constraint.upper)
			}
		}
	}
	if row == 0 && len(model.variables) > 0 {
		// Some readers reject an empty constraint section
		writer.WriteString(" r1: + 0 x1 >= 0\n")
	}

	writer.WriteString("Bounds\n")
	for _, variable := range model.variables {
		lower, upper := "-inf", "+inf"
		if !math.IsInf(variable.lower, -1) {
			lower = formatNumber(variable.lower)
		}
		if !math.IsInf(variable.upper, 1) {
			upper = formatNumber(variable.upper)
		}
		fmt.Fprintf(writer, " %v <= x%d <= %v\n", lower, variable.index+1, upper)
	}

	integers := make([]string, 0, len(model.variables))
	for _, variable := range model.variables {
		if variable.integer {
			integers = append(integers, fmt.Sprintf("x%d", variable.index+1))
		}
	}
	if len(integers) > 0 {
		writer.WriteString("General\n")
		for _, name := range integers {
			fmt.Fprintf(writer, " %v\n", name)
		}
	}
	writer.WriteString("End\n")

	return writer.Flush()
}

func formatCoefficient(coefficient float64) string {
	if coefficient < 0 {
		return "- " + formatNumber(-coefficient)
	}
	return "+ " + formatNumber(coefficient)
}

func formatNumber(value float64) string {
	return fmt.Sprintf("%v", value)
}
