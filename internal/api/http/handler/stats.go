package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetware/registrar/internal/api/http/dto"
	"github.com/fleetware/registrar/internal/registration"
)

type StatsHandler struct {
	stats *registration.Stats
}

func NewStatsHandler(stats *registration.Stats) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Snapshot returns the admission outcome counters.
// GET /api/v1/stats
func (h *StatsHandler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, dto.StatsResponse{Outcomes: h.stats.Snapshot()})
}
