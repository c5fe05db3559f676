package model

import (
	"context"
	"fmt"
	"time"

	"github.com/limaJavier/placement/internal/logging"
	"github.com/limaJavier/placement/pkg/ip"
)

// UnsolvedError is returned when the solver finished without a placement
type UnsolvedError struct {
	Status ip.Status
}

func (err UnsolvedError) Error() string {
	return fmt.Sprintf("no placement found: solver status is %v", err.Status)
}

type ipPlacer struct {
	solver  ip.Solver
	timeout time.Duration
}

type PlacerOption func(*ipPlacer)

// WithTimeout bounds the solve step. Zero means no timeout.
func WithTimeout(timeout time.Duration) PlacerOption {
	return func(placer *ipPlacer) {
		placer.timeout = timeout
	}
}

func NewPlacer(solver ip.Solver, options ...PlacerOption) Placer {
	placer := &ipPlacer{
		solver: solver,
	}
	for _, option := range options {
		option(placer)
	}
	return placer
}

func (placer *ipPlacer) Build(ctx context.Context, run RunContext, modelInput ModelInput) (*Placement, error) {
	logger := run.Logger.WithValues("run", run.ID)

	run.report("Read %d pupils", len(modelInput.Pupils))
	run.report("Read %d classes", len(modelInput.Classes))
	run.report("Read %d wishes", len(modelInput.Wishes))

	state, err := buildModel(run, modelInput)
	if err != nil {
		return nil, err
	}
	model := state.model
	logger.V(logging.DEBUG).Info("model built", "variables", model.NumVariables(), "constraints", model.NumConstraints())

	//** Solve
	solveCtx := ctx
	if placer.timeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, placer.timeout)
		defer cancel()
	}
	start := time.Now()
	solution, err := placer.solver.Solve(solveCtx, model)
	logger.V(logging.DEBUG).Info("solver finished", "status", solution.Status.String(), "elapsed", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("solver failed: %w", err)
	} else if !solution.Status.Solved() {
		return nil, UnsolvedError{Status: solution.Status}
	}

	//** Extract placement
	placement := extractPlacement(state, solution)
	for _, line := range placement.Lines() {
		run.report("%v", line)
	}
	return placement, nil
}

// BuildModel encodes the input as an integer program without solving it
func BuildModel(modelInput ModelInput) (*ip.Model, error) {
	state, err := buildModel(RunContext{}, modelInput)
	if err != nil {
		return nil, err
	}
	return state.model, nil
}

func buildModel(run RunContext, modelInput ModelInput) (constraintState, error) {
	model := ip.NewModel("placement")
	state := constraintState{
		input:    modelInput,
		model:    model,
		registry: newVariableRegistry(model),
	}

	//** Build variables
	for _, phase := range []func(state constraintState) error{
		assignmentVariables,
		wishVariables,
	} {
		if err := phase(state); err != nil {
			return state, err
		}
	}
	run.report("Number of variables = %d", model.NumVariables())

	//** Build constraints
	for _, phase := range []func(state constraintState) error{
		singleAssignmentConstraints,
		capacityConstraints,
	} {
		if err := phase(state); err != nil {
			return state, err
		}
	}
	run.report("Number of constraints = %d", model.NumConstraints())

	//** Build objective
	buildObjective(state)
	return state, nil
}

func (placer *ipPlacer) Verify(placement *Placement, modelInput ModelInput) bool {
	return verify(placement, modelInput)
}
