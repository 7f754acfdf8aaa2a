package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/yieldwise/internal/chat"
	"github.com/suPer8Hu/yieldwise/internal/common"
	"github.com/suPer8Hu/yieldwise/internal/httpapi/handlers"
	"github.com/suPer8Hu/yieldwise/internal/httpapi/middleware"
	"github.com/suPer8Hu/yieldwise/internal/ratelimit"
)

// NewRouter wires every route. lim backs both the global and the
// generation rate limits.
func NewRouter(h *handlers.Handler, lim ratelimit.Limiter) *gin.Engine {
	cfg := h.Cfg
	log := h.Log

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.MaxMultipartMemory = middleware.MaxBodyBytes

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/api/health", h.Health)
	r.HEAD("/api/health", h.Health)

	app := r.Group("/")
	app.Use(middleware.BodyLimit(middleware.MaxBodyBytes))
	app.Use(middleware.GuestSession(cfg.SessionTTL, cfg.CookieSecure))
	app.Use(middleware.AuthOptional(cfg.JWTSecret))
	app.Use(middleware.RateLimit(lim, "global", log,
		ratelimit.PerDay(cfg.GlobalDailyLimit), ratelimit.PerHour(cfg.GlobalHourlyLimit)))

	// public
	app.GET("/showcase/:token", h.Showcase)

	// auth
	app.POST("/register", h.Register)
	app.POST("/login", h.Login)
	app.POST("/logout", h.Logout)

	generateLimit := middleware.RateLimit(lim, "generate", log, ratelimit.PerDay(cfg.GenerateDailyLimit))

	// guests may generate one plan
	app.POST("/api/generate", generateLimit, h.Generate)

	authed := app.Group("/")
	authed.Use(middleware.AuthRequired(cfg.JWTSecret))
	authed.GET("/me", h.Me)
	authed.GET("/download_pdf/:id", h.DownloadPDF)

	api := authed.Group("/api")
	api.POST("/diagnose", generateLimit, h.Diagnose)

	api.GET("/plans", h.ListPlans)
	api.GET("/search_plans", h.SearchPlans)
	api.GET("/get_plan/:id", h.GetPlan)
	api.DELETE("/delete_plan/:id", h.DeletePlan)
	api.POST("/create_showcase", h.CreateShowcase)

	api.GET("/diagnoses", h.ListDiagnoses)
	api.GET("/get_diagnosis/:id", h.GetDiagnosis)
	api.DELETE("/delete_diagnosis/:id", h.DeleteDiagnosis)

	api.GET("/export_data", h.ExportData)

	// follow-up chat
	api.POST("/follow_up", h.FollowUp(chat.KindPlan))
	api.POST("/diagnose_follow_up", h.FollowUp(chat.KindDiagnosis))
	api.POST("/follow_up/stream", h.FollowUpStream(chat.KindPlan))
	api.POST("/diagnose_follow_up/stream", h.FollowUpStream(chat.KindDiagnosis))
	api.POST("/follow_up/async", h.FollowUpAsync(chat.KindPlan))
	api.POST("/diagnose_follow_up/async", h.FollowUpAsync(chat.KindDiagnosis))
	api.GET("/jobs/:job_id", h.GetChatJob)

	return r
}
