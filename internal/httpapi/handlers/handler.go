package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/yieldwise/internal/advisor"
	"github.com/suPer8Hu/yieldwise/internal/auth"
	"github.com/suPer8Hu/yieldwise/internal/chat"
	"github.com/suPer8Hu/yieldwise/internal/common"
	"github.com/suPer8Hu/yieldwise/internal/config"
	"github.com/suPer8Hu/yieldwise/internal/farm"
	"github.com/suPer8Hu/yieldwise/internal/guest"
	"github.com/suPer8Hu/yieldwise/internal/httpapi/middleware"
	"github.com/suPer8Hu/yieldwise/internal/pdf"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// JobPublisher hands an async follow-up job to the worker queue.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// Pinger is any dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators a Handler needs. Jobs, PDF and Redis may be nil
// when the matching feature is not configured.
type Deps struct {
	DB      *gorm.DB
	Cfg     config.Config
	Log     *zap.Logger
	Advisor *advisor.Advisor
	ChatSvc *chat.Service
	Farm    *farm.Repo
	Guest   *guest.Gate
	Jobs    JobPublisher
	PDF     pdf.Renderer
	Redis   Pinger
	// Model names the configured AI backend for the health report.
	Model string
}

type Handler struct {
	Deps
}

func NewHandler(d Deps) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Handler{Deps: d}
}

func (h *Handler) logger(c *gin.Context) *zap.Logger {
	return h.Log.With(zap.String("request_id", c.GetString(middleware.RequestIDKey)))
}

func currentUser(c *gin.Context) (uint64, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "authentication required")
	}
	return uid, ok
}

// pathID parses a numeric path parameter. Non-numeric ids are reported as
// not found, the same as ids that do not exist.
func pathID(c *gin.Context, name, notFoundMsg string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		common.Fail(c, http.StatusNotFound, 40401, notFoundMsg)
		return 0, false
	}
	return id, true
}

func (h *Handler) setAuthCookie(c *gin.Context, userID uint64) (string, error) {
	ttl := h.Cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	token, err := auth.SignJWT(userID, h.Cfg.JWTSecret, ttl)
	if err != nil {
		return "", err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookie, token, int(ttl/time.Second), "/", "", h.Cfg.CookieSecure, true)
	return token, nil
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}
