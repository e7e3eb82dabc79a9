// Package api serves the pipeline's artifacts read-only: the latest-position
// view as GeoJSON and the current alert conditions. It never touches the
// record log directly.
package api

import (
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oceanlab/driftwatch/internal/alert"
	"github.com/oceanlab/driftwatch/internal/view"
)

type Handler struct {
	latestCSV  string
	alertState *alert.StateStore
}

func NewHandler(latestCSV string, alertState *alert.StateStore) *Handler {
	return &Handler{
		latestCSV:  latestCSV,
		alertState: alertState,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/positions", h.getPositions)
	r.GET("/api/alerts", h.getAlerts)
	r.GET("/health", h.health)
}

func (h *Handler) getPositions(c *gin.Context) {
	v, err := view.Load(h.latestCSV)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "no positions published yet",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to read latest positions",
		})
		return
	}

	fc := toGeoJSON(v)
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) getAlerts(c *gin.Context) {
	state, err := h.alertState.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to read alert state",
		})
		return
	}

	type condition struct {
		Buoy           string `json:"buoy"`
		Kind           string `json:"kind"`
		FirstAlertedAt string `json:"first_alerted_at"`
	}

	conditions := make([]condition, 0)
	for buoyID, conds := range state {
		for kind, since := range conds {
			conditions = append(conditions, condition{
				Buoy:           buoyID,
				Kind:           string(kind),
				FirstAlertedAt: since.UTC().Format(time.RFC3339),
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{"alerts": conditions})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
