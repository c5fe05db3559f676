package model

// buildObjective maximizes the number of placed pupils. Wish variables do not take part.
func buildObjective(state constraintState) {
	objective := state.model.Objective()
	for _, pupil := range state.input.Pupils {
		for _, class := range state.input.Classes {
			objective.SetCoefficient(state.registry.pupilClassVariable(pupil, class), 1)
		}
	}
	objective.SetMaximization()
	objective.SetBound(float64(placementBound(state.input)))
}

// placementBound is the largest number of pupils any placement can seat. Every pupil fits every class,
// so it is reached whenever the seats allow it.
func placementBound(modelInput ModelInput) int64 {
	pupils := int64(len(modelInput.Pupils))
	seats := int64(0)
	for _, class := range modelInput.Classes {
		seats += min(max(class.MaxInClass, 0), pupils)
	}
	return min(seats, pupils)
}
