package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/limaJavier/placement/internal/metrics"
	"github.com/limaJavier/placement/internal/runner"
	"github.com/limaJavier/placement/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultRecent = 20

// APIHandler serves the run lifecycle over HTTP
type APIHandler struct {
	Runner *runner.Runner
	Store  store.Store
	Loader runner.Loader
	Logger logr.Logger
}

func NewAPIHandler(runner *runner.Runner, store store.Store, loader runner.Loader, logger logr.Logger) *APIHandler {
	return &APIHandler{
		Runner: runner,
		Store:  store,
		Loader: loader,
		Logger: logger.WithName("api"),
	}
}

// NewRouter registers the API routes under /api and the Prometheus handler under /metrics
func NewRouter(handler *APIHandler, metrics *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.GET("/ping", PingHandler)

		api.GET("/runs", handler.ListRuns)
		api.POST("/runs", handler.StartRun)
		api.GET("/runs/current", handler.GetCurrentRun)
		api.POST("/runs/reset", handler.ResetRun)
		api.GET("/runs/latest", handler.GetLatestRun)
		api.GET("/runs/:runId", handler.GetRunByID)
	}

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	}
	return router
}

// PingHandler handles GET /api/ping
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// StartRun handles POST /api/runs
func (h *APIHandler) StartRun(c *gin.Context) {
	id, started := h.Runner.Start(h.Loader)
	if !started {
		c.JSON(http.StatusConflict, gin.H{
			"error": "A run is in progress or awaits a reset",
			"state": h.Runner.State(),
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "state": runner.StateRunning})
}

// GetCurrentRun handles GET /api/runs/current
func (h *APIHandler) GetCurrentRun(c *gin.Context) {
	c.JSON(http.StatusOK, h.Runner.Current())
}

// ResetRun handles POST /api/runs/reset
func (h *APIHandler) ResetRun(c *gin.Context) {
	if err := h.Runner.Reset(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.Runner.State()})
}

// GetLatestRun handles GET /api/runs/latest
func (h *APIHandler) GetLatestRun(c *gin.Context) {
	report, err := h.Store.Latest(c.Request.Context())
	h.writeReport(c, report, err)
}

// GetRunByID handles GET /api/runs/:runId
func (h *APIHandler) GetRunByID(c *gin.Context) {
	report, err := h.Store.Get(c.Request.Context(), c.Param("runId"))
	h.writeReport(c, report, err)
}

// ListRuns handles GET /api/runs?limit=N
func (h *APIHandler) ListRuns(c *gin.Context) {
	limit := int64(defaultRecent)
	if value := c.Query("limit"); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	ids, err := h.Store.Recent(c.Request.Context(), limit)
	if err != nil {
		h.Logger.Error(err, "cannot list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

func (h *APIHandler) writeReport(c *gin.Context, report store.Report, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	} else if err != nil {
		h.Logger.Error(err, "cannot read report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve run"})
		return
	}
	c.JSON(http.StatusOK, report)
}
