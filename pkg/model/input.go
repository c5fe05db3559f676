package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

var ErrInvalidInput = errors.New("invalid input")

type Pupil struct {
	Id   int64
	Name string
}

type Class struct {
	Name       string
	MaxInClass int64
}

// Wish states that two pupils would like to share a class
type Wish struct {
	PupilId1 int64
	PupilId2 int64
}

type RawModelInput struct {
	Pupils  []Pupil
	Classes []Class
	Wishes  []Wish
}

// ModelInput is the validated, read-only input of a placement run. Slice order is the reporting order.
type ModelInput struct {
	Pupils  []Pupil
	Classes []Class
	Wishes  []Wish
}

func InputFromJson(file string) (ModelInput, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return ModelInput{}, fmt.Errorf("cannot read input file: %w", err)
	}
	var inputJson map[string]any
	if err := json.Unmarshal(bytes, &inputJson); err != nil {
		return ModelInput{}, fmt.Errorf("cannot parse input file %v: %w", file, err)
	}

	var rawInput RawModelInput
	if err := mapstructure.Decode(inputJson, &rawInput); err != nil {
		return ModelInput{}, fmt.Errorf("cannot decode input file %v: %w", file, err)
	}
	return ProcessRawInput(rawInput)
}

// ProcessRawInput checks the entities' identities and references and returns them as a ModelInput.
// Every violation is reported as ErrInvalidInput.
func ProcessRawInput(rawInput RawModelInput) (ModelInput, error) {
	//** Pupils
	pupils := make(map[int64]Pupil, len(rawInput.Pupils))
	for _, pupil := range rawInput.Pupils {
		if existing, ok := pupils[pupil.Id]; ok {
			return ModelInput{}, fmt.Errorf("%w: pupils \"%v\" and \"%v\" share id %d", ErrInvalidInput, existing.Name, pupil.Name, pupil.Id)
		}
		pupils[pupil.Id] = pupil
	}

	//** Classes
	if duplicates := lo.FindDuplicatesBy(rawInput.Classes, func(class Class) string { return class.Name }); len(duplicates) > 0 {
		return ModelInput{}, fmt.Errorf("%w: class \"%v\" is defined more than once", ErrInvalidInput, duplicates[0].Name)
	}
	if class, ok := lo.Find(rawInput.Classes, func(class Class) bool { return class.MaxInClass < 0 }); ok {
		return ModelInput{}, fmt.Errorf("%w: class \"%v\" has negative capacity %d", ErrInvalidInput, class.Name, class.MaxInClass)
	}

	//** Wishes
	for _, wish := range rawInput.Wishes {
		if _, ok := pupils[wish.PupilId1]; !ok {
			return ModelInput{}, fmt.Errorf("%w: wish %d~%d references unknown pupil %d", ErrInvalidInput, wish.PupilId1, wish.PupilId2, wish.PupilId1)
		} else if _, ok := pupils[wish.PupilId2]; !ok {
			return ModelInput{}, fmt.Errorf("%w: wish %d~%d references unknown pupil %d", ErrInvalidInput, wish.PupilId1, wish.PupilId2, wish.PupilId2)
		} else if wish.PupilId1 == wish.PupilId2 {
			return ModelInput{}, fmt.Errorf("%w: pupil %d cannot wish for itself", ErrInvalidInput, wish.PupilId1)
		}
	}

	return ModelInput{
		Pupils:  rawInput.Pupils,
		Classes: rawInput.Classes,
		Wishes:  rawInput.Wishes,
	}, nil
}
