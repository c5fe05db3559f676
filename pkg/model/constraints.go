package model

import (
	"errors"
	"fmt"

	"github.com/limaJavier/placement/pkg/ip"
)

var ErrInvalidCapacity = errors.New("class capacity must not be negative")

type constraintState struct {
	input    ModelInput
	model    *ip.Model
	registry *variableRegistry
}

// assignmentVariables creates x[p,c] for every pupil and class, each restated by a [0,1] row
func assignmentVariables(state constraintState) error {
	for _, pupil := range state.input.Pupils {
		for _, class := range state.input.Classes {
			variable, err := state.registry.createPupilClassVariable(pupil, class)
			if err != nil {
				return err
			}
			state.model.NewConstraint(0, 1, variable.Name()).SetCoefficient(variable, 1)
		}
	}
	return nil
}

// wishVariables creates w[wish,c] for every wish and class, each restated by a [0,2] row. Nothing links
// them to the assignment variables.
func wishVariables(state constraintState) error {
	for _, wish := range state.input.Wishes {
		for _, class := range state.input.Classes {
			variable, err := state.registry.createWishClassVariable(wish, class)
			if err != nil {
				return err
			}
			state.model.NewConstraint(0, 2, variable.Name()).SetCoefficient(variable, 1)
		}
	}
	return nil
}

// singleAssignmentConstraints: 0 <= sum_c x[p,c] <= 1 for every pupil
func singleAssignmentConstraints(state constraintState) error {
	for _, pupil := range state.input.Pupils {
		constraint := state.model.NewConstraint(0, 1, fmt.Sprintf("PupilInOneClass.%d.%v", pupil.Id, pupil.Name))
		for _, class := range state.input.Classes {
			constraint.SetCoefficient(state.registry.pupilClassVariable(pupil, class), 1)
		}
	}
	return nil
}

// capacityConstraints: 0 <= sum_p x[p,c] <= maxInClass for every class
func capacityConstraints(state constraintState) error {
	for _, class := range state.input.Classes {
		if class.MaxInClass < 0 {
			return ConstructionError{
				Entity: fmt.Sprintf("class \"%v\" with capacity %d", class.Name, class.MaxInClass),
				Err:    ErrInvalidCapacity,
			}
		}

		constraint := state.model.NewConstraint(0, float64(class.MaxInClass), fmt.Sprintf("MaxPerClass.%v", class.Name))
		for _, pupil := range state.input.Pupils {
			constraint.SetCoefficient(state.registry.pupilClassVariable(pupil, class), 1)
		}
	}
	return nil
}
