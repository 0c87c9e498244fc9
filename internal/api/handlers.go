package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"davbackup/internal/backup"
	"davbackup/internal/run"
)

// RunManager is the part of *run.Manager the HTTP surface needs.
type RunManager interface {
	Start() (run.Run, error)
	GetRun(runID string) (run.Run, bool)
	ListRuns() []run.Run
	IsBusy() bool
}

type startRunResponse struct {
	RunID  string     `json:"run_id"`
	Status run.Status `json:"status"`
}

type runResponse struct {
	ID         string         `json:"id"`
	Status     run.Status     `json:"status"`
	CreatedAt  string         `json:"created_at"`
	FinishedAt string         `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
	Report     *backup.Report `json:"report,omitempty"`
}

type API struct {
	runs   RunManager
	logger zerolog.Logger
}

func NewAPI(runs RunManager, logger zerolog.Logger) *API {
	return &API{runs: runs, logger: logger}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/runs", a.StartRun)
		api.GET("/runs", a.ListRuns)
		api.GET("/runs/:id", a.GetRun)
	}
}

// StartRun triggers a backup run in the background
func (a *API) StartRun(c *gin.Context) {
	started, err := a.runs.Start()
	if err != nil {
		if errors.Is(err, run.ErrBusy) {
			a.logger.Warn().Msg("rejecting run: a backup is already in progress")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backup already running"})
			return
		}
		a.logger.Error().Err(err).Msg("failed to start run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	a.logger.Info().Str("run_id", started.ID).Msg("run started")
	c.JSON(http.StatusAccepted, startRunResponse{RunID: started.ID, Status: started.Status})
}

// ListRuns returns all known runs, newest first
func (a *API) ListRuns(c *gin.Context) {
	runs := a.runs.ListRuns()
	resp := make([]runResponse, 0, len(runs))
	for _, r := range runs {
		resp = append(resp, toRunResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"runs": resp, "busy": a.runs.IsBusy()})
}

// GetRun returns one run and its report
func (a *API) GetRun(c *gin.Context) {
	id := c.Param("id")
	if found, ok := a.runs.GetRun(id); ok {
		c.JSON(http.StatusOK, toRunResponse(found))
		return
	}
	a.logger.Warn().Str("run_id", id).Msg("run not found on get")
	c.JSON(http.StatusNotFound, gin.H{"error": run.ErrRunNotFound.Error()})
}

func toRunResponse(r run.Run) runResponse {
	resp := runResponse{
		ID:        r.ID,
		Status:    r.Status,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		Error:     r.Error,
		Report:    r.Report,
	}
	if r.FinishedAt != nil {
		resp.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
