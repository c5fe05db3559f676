package model

import (
	"errors"
	"fmt"
	"log"

	"github.com/limaJavier/placement/pkg/ip"
)

var ErrDuplicateKey = errors.New("variable key already registered")

// ConstructionError reports a model that cannot be built from its input. Entity names the pupil, wish or
// class that triggered it.
type ConstructionError struct {
	Entity string
	Err    error
}

func (err ConstructionError) Error() string {
	return fmt.Sprintf("cannot build model for %v: %v", err.Entity, err.Err)
}

func (err ConstructionError) Unwrap() error {
	return err.Err
}

type pupilClassKey struct {
	pupil int64
	class string
}

type wishClassKey struct {
	pupil1, pupil2 int64
	class          string
}

// variableRegistry creates the model's variables and resolves them by entity key in constant time
type variableRegistry struct {
	model      *ip.Model
	pupilClass map[pupilClassKey]*ip.Variable
	wishClass  map[wishClassKey]*ip.Variable
}

func newVariableRegistry(model *ip.Model) *variableRegistry {
	return &variableRegistry{
		model:      model,
		pupilClass: make(map[pupilClassKey]*ip.Variable),
		wishClass:  make(map[wishClassKey]*ip.Variable),
	}
}

func (registry *variableRegistry) createPupilClassVariable(pupil Pupil, class Class) (*ip.Variable, error) {
	key := pupilClassKey{pupil: pupil.Id, class: class.Name}
	if _, ok := registry.pupilClass[key]; ok {
		return nil, ConstructionError{
			Entity: fmt.Sprintf("pupil %d \"%v\" in class \"%v\"", pupil.Id, pupil.Name, class.Name),
			Err:    ErrDuplicateKey,
		}
	}

	variable := registry.model.NewBoolVar(pupilClassName(pupil, class))
	registry.pupilClass[key] = variable
	return variable, nil
}

func (registry *variableRegistry) createWishClassVariable(wish Wish, class Class) (*ip.Variable, error) {
	key := wishClassKey{pupil1: wish.PupilId1, pupil2: wish.PupilId2, class: class.Name}
	if _, ok := registry.wishClass[key]; ok {
		return nil, ConstructionError{
			Entity: fmt.Sprintf("wish %d~%d in class \"%v\"", wish.PupilId1, wish.PupilId2, class.Name),
			Err:    ErrDuplicateKey,
		}
	}

	variable := registry.model.NewIntVar(0, 2, wishClassName(wish, class))
	registry.wishClass[key] = variable
	return variable, nil
}

func (registry *variableRegistry) pupilClassVariable(pupil Pupil, class Class) *ip.Variable {
	variable, ok := registry.pupilClass[pupilClassKey{pupil: pupil.Id, class: class.Name}]
	if !ok {
		log.Panicf("no variable registered for pupil %d in class \"%v\"", pupil.Id, class.Name)
	}
	return variable
}

func (registry *variableRegistry) wishClassVariable(wish Wish, class Class) *ip.Variable {
	variable, ok := registry.wishClass[wishClassKey{pupil1: wish.PupilId1, pupil2: wish.PupilId2, class: class.Name}]
	if !ok {
		log.Panicf("no variable registered for wish %d~%d in class \"%v\"", wish.PupilId1, wish.PupilId2, class.Name)
	}
	return variable
}

func pupilClassName(pupil Pupil, class Class) string {
	return fmt.Sprintf("IsInClass.%d.%v.%v", pupil.Id, pupil.Name, class.Name)
}

func wishClassName(wish Wish, class Class) string {
	return fmt.Sprintf("WishMatchInClass.%d.%d.%v", wish.PupilId1, wish.PupilId2, class.Name)
}
