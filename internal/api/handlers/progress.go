package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kenn1ld/stop-killing-games-monitor/internal/models"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/monitor"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/store"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// ProgressHandler serves the stored campaign history and the manual
// sampling trigger.
type ProgressHandler struct {
	monitor *monitor.Monitor
	store   *store.Store
}

func NewProgressHandler(m *monitor.Monitor, s *store.Store) *ProgressHandler {
	return &ProgressHandler{monitor: m, store: s}
}

// GetLatest returns the most recent history record.
func (h *ProgressHandler) GetLatest(c *gin.Context) {
	rec, err := h.store.Latest(c.Request.Context())
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data yet"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetHistory returns a page of history records, most recent first.
func (h *ProgressHandler) GetHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	records, total, err := h.store.History(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []models.HistoryRecord{}
	}
	c.JSON(http.StatusOK, models.HistoryResponse{
		Records: records,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// GetStats summarizes the stored history.
func (h *ProgressHandler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Refresh runs one sampling cycle synchronously and reports the outcome.
func (h *ProgressHandler) Refresh(c *gin.Context) {
	result := h.monitor.Run(c.Request.Context())
	switch {
	case result.Skipped:
		c.JSON(http.StatusConflict, result)
	case result.Error != "":
		c.JSON(http.StatusBadGateway, result)
	default:
		c.JSON(http.StatusOK, result)
	}
}

// Health reports the coordinator's state and the store mode.
func (h *ProgressHandler) Health(c *gin.Context) {
	status := h.monitor.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"state":               status.State,
		"last_successful_run": status.LastSuccessfulRun,
		"consecutive_errors":  status.ConsecutiveErrors,
		"last_run_error":      status.LastRunError,
		"store_enabled":       h.store.Enabled(),
	})
}
