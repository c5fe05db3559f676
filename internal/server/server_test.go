package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/limaJavier/placement/internal/logging"
	"github.com/limaJavier/placement/internal/metrics"
	"github.com/limaJavier/placement/internal/runner"
	"github.com/limaJavier/placement/internal/store"
	"github.com/limaJavier/placement/pkg/ip"
	"github.com/limaJavier/placement/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const instancesDirectory = "../../test/instances/"

type fixture struct {
	router *gin.Engine
	runner *runner.Runner
	store  store.Store
}

func newFixture(loader runner.Loader) fixture {
	gin.SetMode(gin.TestMode)
	logger := logging.NewTestLogger()
	runMetrics := metrics.New()
	reports := store.NewMemoryStore()
	placementRunner := runner.New(model.NewPlacer(ip.NewSimplexSolver()), reports, logger, runner.WithMetrics(runMetrics))
	handler := NewAPIHandler(placementRunner, reports, loader, logger)
	return fixture{
		router: NewRouter(handler, runMetrics),
		runner: placementRunner,
		store:  reports,
	}
}

func schoolLoader(context.Context) (model.ModelInput, error) {
	return model.InputFromJson(instancesDirectory + "school.json")
}

func (f fixture) request(t *testing.T, method, path string) (int, map[string]any) {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(method, path, nil)
	f.router.ServeHTTP(recorder, request)

	body := map[string]any{}
	if strings.HasPrefix(recorder.Header().Get("Content-Type"), "application/json") {
		require.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	}
	return recorder.Code, body
}

func (f fixture) wait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.Nil(t, f.runner.Wait(ctx))
}

func TestPing(t *testing.T) {
	f := newFixture(schoolLoader)

	code, body := f.request(t, http.MethodGet, "/api/ping")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pong", body["message"])
}

func TestRunLifecycle(t *testing.T) {
	f := newFixture(schoolLoader)

	//** Idle
	code, body := f.request(t, http.MethodGet, "/api/runs/current")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "idle", body["state"])

	code, _ = f.request(t, http.MethodGet, "/api/runs/latest")
	assert.Equal(t, http.StatusNotFound, code)

	//** Start
	code, body = f.request(t, http.MethodPost, "/api/runs")
	require.Equal(t, http.StatusAccepted, code)
	id := body["id"].(string)
	f.wait(t)

	//** Finished runs reject new starts until reset
	code, body = f.request(t, http.MethodPost, "/api/runs")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "succeeded", body["state"])

	code, body = f.request(t, http.MethodGet, "/api/runs/current")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "succeeded", body["state"])
	report := body["report"].(map[string]any)
	assert.Equal(t, id, report["id"])
	assert.Contains(t, report["lines"], "Read 18 pupils")

	//** Stored report
	code, body = f.request(t, http.MethodGet, "/api/runs/latest")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, body["id"])
	placement := body["placement"].(map[string]any)
	assert.Equal(t, "optimal", placement["Status"])
	assert.Equal(t, 15.0, placement["Objective"])

	code, body = f.request(t, http.MethodGet, "/api/runs/"+id)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "succeeded", body["state"])

	code, body = f.request(t, http.MethodGet, "/api/runs")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{id}, body["ids"])

	//** Reset
	code, body = f.request(t, http.MethodPost, "/api/runs/reset")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "idle", body["state"])

	code, _ = f.request(t, http.MethodPost, "/api/runs")
	assert.Equal(t, http.StatusAccepted, code)
	f.wait(t)
}

func TestResetWhileRunning(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(func(ctx context.Context) (model.ModelInput, error) {
		<-release
		return schoolLoader(ctx)
	})

	code, _ := f.request(t, http.MethodPost, "/api/runs")
	require.Equal(t, http.StatusAccepted, code)

	code, body := f.request(t, http.MethodPost, "/api/runs/reset")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, runner.ErrRunning.Error(), body["error"])

	code, body = f.request(t, http.MethodPost, "/api/runs")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "running", body["state"])

	close(release)
	f.wait(t)
}

func TestFailedRun(t *testing.T) {
	f := newFixture(func(context.Context) (model.ModelInput, error) {
		return model.ModelInput{}, errors.New("no such file")
	})

	code, body := f.request(t, http.MethodPost, "/api/runs")
	require.Equal(t, http.StatusAccepted, code)
	id := body["id"].(string)
	f.wait(t)

	code, body = f.request(t, http.MethodGet, "/api/runs/"+id)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "failed", body["state"])
	assert.Equal(t, "cannot load input: no such file", body["error"])
	assert.NotContains(t, body, "placement")

	code, _ = f.request(t, http.MethodGet, "/api/runs/latest")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUnknownRun(t *testing.T) {
	f := newFixture(schoolLoader)

	code, body := f.request(t, http.MethodGet, "/api/runs/unknown")

	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Run not found", body["error"])
}

func TestListRunsLimit(t *testing.T) {
	f := newFixture(schoolLoader)

	code, _ := f.request(t, http.MethodGet, "/api/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := f.request(t, http.MethodGet, "/api/runs?limit=5")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["ids"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(schoolLoader)
	f.request(t, http.MethodPost, "/api/runs")
	f.wait(t)
	f.request(t, http.MethodPost, "/api/runs")

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `placement_runs_total{outcome="succeeded"} 1`)
	assert.Contains(t, recorder.Body.String(), "placement_ignored_starts_total 1")
	assert.Contains(t, recorder.Body.String(), "placement_last_placed_pupils 15")
}
