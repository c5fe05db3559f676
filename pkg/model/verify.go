package model

import (
	"log"
	"math"

	"github.com/limaJavier/placement/pkg/ip"
	"github.com/onsi/gomega/matchers/support/goraph/bipartitegraph"
	"github.com/samber/lo"
)

type seat struct {
	class string
	index int64
}

func verify(placement *Placement, modelInput ModelInput) bool {
	if placement == nil || !placement.Status.Solved() || len(placement.Rosters) != len(modelInput.Classes) {
		return false
	}

	pupils := lo.SliceToMap(modelInput.Pupils, func(pupil Pupil) (int64, Pupil) { return pupil.Id, pupil })
	placed := make(map[int64]bool)
	for i, roster := range placement.Rosters {
		// Check that:
		// - Rosters follow the input's class order
		// - The count matches the roster
		// - The class is within capacity
		if roster.Class.Name != modelInput.Classes[i].Name ||
			roster.Count != len(roster.Pupils) ||
			int64(roster.Count) > modelInput.Classes[i].MaxInClass {
			return false
		}

		for _, pupil := range roster.Pupils {
			// Check the pupil exists and is placed only once
			if _, ok := pupils[pupil.Id]; !ok || placed[pupil.Id] {
				return false
			}
			placed[pupil.Id] = true
		}
	}

	// Every placed pupil contributes one unit to the objective
	if math.Abs(placement.Objective-float64(len(placed))) > 1e-6 {
		return false
	}

	// A Feasible status only promises a valid placement, not a maximal one
	if placement.Status != ip.StatusOptimal {
		return true
	}
	return len(placed) == maximumPlacement(modelInput)
}

// maximumPlacement computes the number of pupils that can be placed at once as the size of a maximum matching
// between pupils and class seats
func maximumPlacement(modelInput ModelInput) int {
	// Seats beyond the number of pupils can never be matched
	seats := make([]any, 0, len(modelInput.Pupils))
	for _, class := range modelInput.Classes {
		for index := int64(0); index < class.MaxInClass && len(seats) < len(modelInput.Pupils); index++ {
			seats = append(seats, seat{class: class.Name, index: index})
		}
	}
	if len(seats) == 0 || len(modelInput.Pupils) == 0 {
		return 0
	}

	pupils := lo.Map(modelInput.Pupils, func(pupil Pupil, _ int) any { return pupil })
	// Any pupil may take any seat
	neighbours := func(any, any) (bool, error) { return true, nil }

	graph, err := bipartitegraph.NewBipartiteGraph(pupils, seats, neighbours)
	if err != nil {
		log.Panicf("cannot build pupil-seat graph: %v", err)
	}
	return len(graph.LargestMatching())
}
