package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/limaJavier/placement/internal/logging"
	"github.com/limaJavier/placement/internal/metrics"
	"github.com/limaJavier/placement/internal/store"
	"github.com/limaJavier/placement/pkg/model"
)

var (
	ErrRunning      = errors.New("a run is in progress")
	ErrVerification = errors.New("placement failed verification")
)

// Loader produces the input of a run. It is called on the run's goroutine.
type Loader func(ctx context.Context) (model.ModelInput, error)

// Snapshot is a consistent view of the runner. Report is nil before the first run.
type Snapshot struct {
	State  State         `json:"state" yaml:"state"`
	Report *store.Report `json:"report,omitempty" yaml:"report,omitempty"`
}

// Runner executes one placement run at a time in the background:
// Load -> Build -> Solve -> Extract -> Verify -> Save
type Runner struct {
	placer   model.Placer
	store    store.Store
	metrics  *metrics.Metrics
	logger   logr.Logger
	observer chan<- string

	mutex   sync.Mutex
	state   State
	current *store.Report
	done    chan struct{}
}

type Option func(*Runner)

// WithObserver forwards every progress line to observer without blocking. Lines are dropped while
// the observer is not ready to receive; the run log keeps all of them.
func WithObserver(observer chan<- string) Option {
	return func(runner *Runner) {
		runner.observer = observer
	}
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(runner *Runner) {
		runner.metrics = metrics
	}
}

func New(placer model.Placer, store store.Store, logger logr.Logger, options ...Option) *Runner {
	runner := &Runner{
		placer: placer,
		store:  store,
		logger: logger.WithName("runner"),
		state:  StateIdle,
	}
	for _, option := range options {
		option(runner)
	}
	return runner
}

// Start launches a run unless the runner is busy or holds an unreset result, in which case the
// request is ignored and false is returned
func (runner *Runner) Start(load Loader) (string, bool) {
	runner.mutex.Lock()
	defer runner.mutex.Unlock()

	if runner.state != StateIdle {
		runner.logger.Info("start request ignored", "state", runner.state.String())
		if runner.metrics != nil {
			runner.metrics.StartIgnored()
		}
		return "", false
	}

	id := uuid.NewString()
	runner.state = StateRunning
	runner.current = &store.Report{
		ID:        id,
		State:     StateRunning.String(),
		Lines:     []string{},
		StartedAt: time.Now(),
	}
	runner.done = make(chan struct{})

	go runner.run(id, load, runner.done)
	return id, true
}

// Reset returns a finished runner to Idle. The last report stays available through Current.
func (runner *Runner) Reset() error {
	runner.mutex.Lock()
	defer runner.mutex.Unlock()

	if runner.state == StateRunning {
		return ErrRunning
	}
	runner.state = StateIdle
	return nil
}

// Wait blocks until the current run finishes or ctx is done
func (runner *Runner) Wait(ctx context.Context) error {
	runner.mutex.Lock()
	done := runner.done
	runner.mutex.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (runner *Runner) State() State {
	runner.mutex.Lock()
	defer runner.mutex.Unlock()
	return runner.state
}

// Lines returns a copy of the progress lines of the current run
func (runner *Runner) Lines() []string {
	runner.mutex.Lock()
	defer runner.mutex.Unlock()

	if runner.current == nil {
		return []string{}
	}
	return slices.Clone(runner.current.Lines)
}

func (runner *Runner) Current() Snapshot {
	runner.mutex.Lock()
	defer runner.mutex.Unlock()

	snapshot := Snapshot{State: runner.state}
	if runner.current != nil {
		report := *runner.current
		report.Lines = slices.Clone(report.Lines)
		snapshot.Report = &report
	}
	return snapshot
}

func (runner *Runner) run(id string, load Loader, done chan struct{}) {
	logger := runner.logger.WithValues("run", id)
	// Runs are not cancelled by the request that started them
	ctx := context.Background()

	var placement *model.Placement
	var err error
	defer func() {
		if recovered := recover(); recovered != nil {
			placement, err = nil, fmt.Errorf("run panicked: %v", recovered)
		}
		runner.finish(ctx, logger, placement, err)
		close(done)
	}()

	placement, err = runner.place(ctx, model.RunContext{
		ID:       id,
		Logger:   logger,
		Progress: runner.progress(logger),
	}, load)
}

func (runner *Runner) place(ctx context.Context, run model.RunContext, load Loader) (*model.Placement, error) {
	//** Load
	modelInput, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot load input: %w", err)
	}

	//** Build, solve and extract
	placement, err := runner.placer.Build(ctx, run, modelInput)
	if err != nil {
		return nil, err
	}

	//** Verify
	if !runner.placer.Verify(placement, modelInput) {
		return nil, ErrVerification
	}
	run.Logger.V(logging.DEBUG).Info("placement verified", "placed", placement.Placed())
	return placement, nil
}

func (runner *Runner) progress(logger logr.Logger) func(line string) {
	return func(line string) {
		runner.mutex.Lock()
		runner.current.Lines = append(runner.current.Lines, line)
		runner.mutex.Unlock()

		logger.Info(line)
		if runner.observer == nil {
			return
		}
		select {
		case runner.observer <- line:
		default:
		}
	}
}

func (runner *Runner) finish(ctx context.Context, logger logr.Logger, placement *model.Placement, err error) {
	runner.mutex.Lock()
	report := runner.current
	report.FinishedAt = time.Now()
	if err != nil {
		runner.state = StateFailed
		report.Error = err.Error()
	} else {
		runner.state = StateSucceeded
		report.Placement = placement
	}
	report.State = runner.state.String()
	saved := *report
	saved.Lines = slices.Clone(report.Lines)
	runner.mutex.Unlock()

	elapsed := saved.FinishedAt.Sub(saved.StartedAt)
	if err != nil {
		logger.Error(err, "run failed", "elapsed", elapsed)
	} else {
		logger.Info("run succeeded", "objective", placement.Objective, "placed", placement.Placed(), "elapsed", elapsed)
	}

	if runner.metrics != nil {
		if err != nil {
			runner.metrics.RunFailed(elapsed)
		} else {
			runner.metrics.RunSucceeded(elapsed, placement.Objective, placement.Placed())
		}
	}

	if runner.store != nil {
		if err := runner.store.Save(ctx, saved); err != nil {
			logger.Error(err, "cannot save report")
		}
	}
}
