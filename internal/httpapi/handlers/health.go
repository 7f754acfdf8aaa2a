package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/yieldwise/internal/db"
)

const Version = "3.0.0"

var features = []string{"farm_planning", "plant_diagnosis", "chat_support", "pdf_export", "showcase_sharing"}

type healthy interface{ Healthy() bool }

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "unavailable"
}

// Health reports which backing services are usable. The service itself is
// healthy whenever it can answer.
func (h *Handler) Health(c *gin.Context) {
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	services := gin.H{
		"ai":       availability(h.Advisor.Configured()),
		"database": availability(db.Ping(h.DB) == nil),
		"redis":    "unconfigured",
		"queue":    "unconfigured",
		"pdf":      "unconfigured",
	}
	if h.Redis != nil {
		services["redis"] = availability(h.Redis.Ping(ctx) == nil)
	}
	if h.Jobs != nil {
		ok := true
		if hc, isHC := h.Jobs.(healthy); isHC {
			ok = hc.Healthy()
		}
		services["queue"] = availability(ok)
	}
	if h.PDF != nil {
		services["pdf"] = "available"
	}

	model := h.Model
	if model == "" {
		model = "none"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"services":     services,
		"version":      Version,
		"ai_model":     model,
		"database_env": h.Cfg.DatabaseEnv,
		"features":     features,
	})
}
