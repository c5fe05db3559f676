package store

import (
	"context"
	"errors"
	"time"

	"github.com/limaJavier/placement/pkg/model"
)

var ErrNotFound = errors.New("report not found")

// Report is the persisted outcome of a single placement run
type Report struct {
	ID         string           `json:"id" yaml:"id"`
	State      string           `json:"state" yaml:"state"`
	Lines      []string         `json:"lines" yaml:"lines"`
	Placement  *model.Placement `json:"placement,omitempty" yaml:"placement,omitempty"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time        `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt" yaml:"finishedAt"`
}

// Succeeded reports whether the run produced a placement
func (report Report) Succeeded() bool {
	return report.Placement != nil && report.Error == ""
}

// Store keeps finished run reports. Latest only ever returns a succeeded report.
type Store interface {
	Save(ctx context.Context, report Report) error
	Get(ctx context.Context, id string) (Report, error)
	Latest(ctx context.Context) (Report, error)
	// Recent returns up to count report ids, most recently finished first
	Recent(ctx context.Context, count int64) ([]string, error)
}
