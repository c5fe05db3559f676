package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	//** Arrange
	metrics := New()

	//** Act
	metrics.RunSucceeded(2*time.Second, 17, 17)
	metrics.RunFailed(time.Second)
	metrics.RunFailed(time.Second)
	metrics.StartIgnored()

	//** Assert
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(OutcomeSucceeded)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.runs.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ignoredStarts))
	assert.Equal(t, 17.0, testutil.ToFloat64(metrics.objective))
	assert.Equal(t, 17.0, testutil.ToFloat64(metrics.placed))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.runSeconds))
}

func TestFailedRunKeepsLastValues(t *testing.T) {
	//** Arrange
	metrics := New()
	metrics.RunSucceeded(time.Second, 3, 3)

	//** Act
	metrics.RunFailed(time.Second)

	//** Assert
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.objective))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.placed))
}
