package model

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
)

type Placer interface {
	Build(
		ctx context.Context,
		run RunContext,
		modelInput ModelInput,
	) (*Placement, error)

	Verify(
		placement *Placement,
		modelInput ModelInput,
	) bool
}

// RunContext carries what a single placement run reports through. Progress may be nil.
type RunContext struct {
	ID       string
	Logger   logr.Logger
	Progress func(line string)
}

func (run RunContext) report(format string, args ...any) {
	if run.Progress != nil {
		run.Progress(fmt.Sprintf(format, args...))
	}
}
