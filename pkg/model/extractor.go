package model

import (
	"fmt"
	"strings"

	"github.com/limaJavier/placement/pkg/ip"
	"github.com/samber/lo"
)

type VariableValue struct {
	Name  string
	Value float64
}

// Roster lists the pupils placed in a class, in input order
type Roster struct {
	Class  Class
	Pupils []Pupil
	Count  int
}

// Placement is the extracted outcome of a solved placement model
type Placement struct {
	Status      ip.Status
	Objective   float64
	Variables   int
	Constraints int
	Values      []VariableValue
	Rosters     []Roster
}

// Placed returns the number of pupils placed in any class
func (placement *Placement) Placed() int {
	return lo.SumBy(placement.Rosters, func(roster Roster) int { return roster.Count })
}

// Lines renders the placement as the report lines emitted at the end of a run
func (placement *Placement) Lines() []string {
	lines := make([]string, 0, len(placement.Values)+len(placement.Rosters)+1)
	lines = append(lines, fmt.Sprintf("Solution: objective value = %v", placement.Objective))
	for _, value := range placement.Values {
		lines = append(lines, fmt.Sprintf("%v = %v", value.Name, value.Value))
	}
	for _, roster := range placement.Rosters {
		lines = append(lines, roster.String())
	}
	return lines
}

func (roster Roster) String() string {
	names := lo.Map(roster.Pupils, func(pupil Pupil, _ int) string { return pupil.Name })
	return fmt.Sprintf("In class %v,%d: %v", roster.Class.Name, roster.Count, strings.Join(names, ";"))
}

// extractPlacement reads the solved assignment variables back into rosters. A value strictly greater
// than zero counts as assigned.
func extractPlacement(state constraintState, solution ip.Solution) *Placement {
	placement := &Placement{
		Status:      solution.Status,
		Objective:   solution.Objective,
		Variables:   state.model.NumVariables(),
		Constraints: state.model.NumConstraints(),
		Values: lo.Map(state.model.Variables(), func(variable *ip.Variable, _ int) VariableValue {
			return VariableValue{Name: variable.Name(), Value: solution.Value(variable)}
		}),
		Rosters: make([]Roster, 0, len(state.input.Classes)),
	}

	for _, class := range state.input.Classes {
		pupils := lo.Filter(state.input.Pupils, func(pupil Pupil, _ int) bool {
			return solution.Value(state.registry.pupilClassVariable(pupil, class)) > 0
		})
		placement.Rosters = append(placement.Rosters, Roster{
			Class:  class,
			Pupils: pupils,
			Count:  len(pupils),
		})
	}

	return placement
}
