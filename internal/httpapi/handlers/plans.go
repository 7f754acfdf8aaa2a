package handlers

import (
	"encoding/json"
	"errors"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/yieldwise/internal/advisor"
	"github.com/suPer8Hu/yieldwise/internal/chat"
	"github.com/suPer8Hu/yieldwise/internal/common"
	"github.com/suPer8Hu/yieldwise/internal/farm"
	"github.com/suPer8Hu/yieldwise/internal/guest"
	"github.com/suPer8Hu/yieldwise/internal/httpapi/middleware"
	"github.com/suPer8Hu/yieldwise/internal/models"
	"github.com/suPer8Hu/yieldwise/internal/pdf"
	"go.uber.org/zap"
)

const (
	planNotFound     = "Plan not found"
	planAccessDenied = "Plan not found or access denied"
	guestQuotaHTML   = `<p class="error-message">Free plan already used. Please register to continue.</p>`
)

type generateReq struct {
	Location string          `json:"location"`
	Space    string          `json:"space"`
	Budget   json.RawMessage `json:"budget"`
	Country  string          `json:"country"`
	Currency string          `json:"currency"`
}

// budgetValue accepts the budget as a JSON number or a numeric string.
func budgetValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return string(raw), true
}

func textLen(s string) int { return utf8.RuneCountInString(strings.TrimSpace(s)) }

// validatePlanRequest returns a caller-facing message when req is unusable.
func validatePlanRequest(req generateReq) (advisor.PlanRequest, string) {
	budgetStr, hasBudget := budgetValue(req.Budget)
	if strings.TrimSpace(req.Location) == "" || strings.TrimSpace(req.Space) == "" || !hasBudget ||
		strings.TrimSpace(req.Country) == "" || strings.TrimSpace(req.Currency) == "" {
		return advisor.PlanRequest{}, "Missing required fields"
	}
	budget, err := strconv.ParseFloat(budgetStr, 64)
	if err != nil {
		return advisor.PlanRequest{}, "Invalid budget format"
	}
	if !(budget > 0) || math.IsInf(budget, 1) {
		return advisor.PlanRequest{}, "Budget must be a positive number"
	}
	if textLen(req.Location) < 2 {
		return advisor.PlanRequest{}, "Location must be at least 2 characters"
	}
	if textLen(req.Space) < 5 {
		return advisor.PlanRequest{}, "Please provide more details about your available space"
	}
	return advisor.PlanRequest{
		Location: strings.TrimSpace(req.Location),
		Space:    strings.TrimSpace(req.Space),
		Budget:   budget,
		Country:  strings.TrimSpace(req.Country),
		Currency: strings.TrimSpace(req.Currency),
	}, ""
}

// Generate produces a plan. Signed-in users get it stored; a guest gets one
// plan per session, held until they register.
func (h *Handler) Generate(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if middleware.IsTooLarge(err) {
			common.Fail(c, http.StatusRequestEntityTooLarge, 41301, middleware.TooLargeMessage)
			return
		}
		common.Fail(c, http.StatusBadRequest, 10001, "Missing required fields")
		return
	}
	preq, msg := validatePlanRequest(req)
	if msg != "" {
		common.Fail(c, http.StatusBadRequest, 10002, msg)
		return
	}

	ctx := c.Request.Context()
	log := h.logger(c)
	uid, signedIn := middleware.UserID(c)
	sid := middleware.SessionID(c)

	if !signedIn {
		if err := h.Guest.Admit(ctx, sid); err != nil {
			if errors.Is(err, guest.ErrQuotaExceeded) {
				common.Fail(c, http.StatusTooManyRequests, 42902, guestQuotaHTML)
				return
			}
			log.Error("guest admit", zap.Error(err))
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
	}

	res, err := h.Advisor.GeneratePlan(ctx, preq)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, advisor.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		common.Fail(c, status, 50002, res.HTML)
		return
	}

	if !signedIn {
		gp := guest.Plan{Location: preq.Location, Country: preq.Country, Currency: preq.Currency, PlanHTML: res.HTML}
		if err := h.Guest.Commit(ctx, sid, gp); err != nil {
			if errors.Is(err, guest.ErrQuotaExceeded) {
				common.Fail(c, http.StatusTooManyRequests, 42902, guestQuotaHTML)
				return
			}
			log.Error("guest commit", zap.Error(err))
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
		common.OK(c, gin.H{"plan": res.HTML, "plan_id": nil, "suggestions": res.Suggestions})
		return
	}

	p := &farm.Plan{
		UserID:   &uid,
		Location: preq.Location,
		Country:  preq.Country,
		Currency: preq.Currency,
		PlanHTML: res.HTML,
	}
	if err := h.Farm.CreatePlan(ctx, p); err != nil {
		log.Error("store plan", zap.Uint64("user_id", uid), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"plan": res.HTML, "plan_id": p.ID, "suggestions": res.Suggestions})
}

func (h *Handler) GetPlan(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", planNotFound)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	p, err := h.Farm.GetPlan(ctx, uid, id)
	if err != nil {
		h.farmError(c, err, planNotFound)
		return
	}
	history, err := h.ChatSvc.History(ctx, chat.KindPlan, p.ID)
	if err != nil {
		h.logger(c).Error("plan history", zap.Uint64("plan_id", id), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"plan": p, "chat_history": history})
}

func (h *Handler) DeletePlan(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", planAccessDenied)
	if !ok {
		return
	}
	if err := h.Farm.DeletePlan(c.Request.Context(), uid, id); err != nil {
		h.farmError(c, err, planAccessDenied)
		return
	}
	common.OK(c, gin.H{"success": true})
}

func (h *Handler) ListPlans(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	plans, err := h.Farm.ListPlans(c.Request.Context(), uid)
	if err != nil {
		h.farmError(c, err, planNotFound)
		return
	}
	common.OK(c, gin.H{"plans": plans})
}

func (h *Handler) SearchPlans(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	plans, err := h.Farm.SearchPlans(c.Request.Context(), uid, c.Query("q"))
	if err != nil {
		h.farmError(c, err, planNotFound)
		return
	}
	common.OK(c, gin.H{"plans": plans})
}

type showcaseReq struct {
	PlanID uint64 `json:"plan_id"`
}

func (h *Handler) CreateShowcase(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req showcaseReq
	if err := c.ShouldBindJSON(&req); err != nil || req.PlanID == 0 {
		common.Fail(c, http.StatusBadRequest, 10002, "Plan ID is required")
		return
	}
	token, err := h.Farm.CreateShowcase(c.Request.Context(), uid, req.PlanID)
	if err != nil {
		h.farmError(c, err, planAccessDenied)
		return
	}
	common.OK(c, gin.H{"showcase_id": token})
}

// Showcase is public: anyone holding the token may read the plan.
func (h *Handler) Showcase(c *gin.Context) {
	view, err := h.Farm.GetShowcase(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.farmError(c, err, "Showcase not found")
		return
	}
	common.OK(c, gin.H{"plan": view})
}

func (h *Handler) DownloadPDF(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", planNotFound)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	log := h.logger(c)

	p, err := h.Farm.GetPlan(ctx, uid, id)
	if err != nil {
		h.farmError(c, err, planNotFound)
		return
	}
	if h.PDF == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50302, "PDF export is currently unavailable.")
		return
	}

	var user models.User
	if err := h.DB.WithContext(ctx).Select("id", "name").First(&user, uid).Error; err != nil {
		log.Error("pdf user lookup", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	// plan html was sanitised when it was rendered from markdown
	doc := pdf.Document{Location: p.Location, PreparedFor: user.Name, PlanHTML: template.HTML(p.PlanHTML)}
	html, err := doc.HTML()
	if err != nil {
		log.Error("pdf document", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to build document")
		return
	}
	out, err := h.PDF.Render(ctx, html)
	if err != nil {
		log.Error("pdf render", zap.Uint64("plan_id", id), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to render pdf")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+pdf.Filename(p.ID))
	c.Data(http.StatusOK, "application/pdf", out)
}

func (h *Handler) ExportData(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	exp, err := h.Farm.Export(c.Request.Context(), uid)
	if err != nil {
		h.farmError(c, err, "user not found")
		return
	}
	c.Header("Content-Disposition", "attachment; filename=yieldwise_data_"+strconv.FormatUint(uid, 10)+".json")
	common.OK(c, exp)
}

// farmError maps repository errors; anything other than not found is logged
// and reported generically.
func (h *Handler) farmError(c *gin.Context, err error, notFoundMsg string) {
	if errors.Is(err, farm.ErrNotFound) {
		common.Fail(c, http.StatusNotFound, 40401, notFoundMsg)
		return
	}
	h.logger(c).Error("farm store", zap.String("path", c.FullPath()), zap.Error(err))
	common.Fail(c, http.StatusInternalServerError, 20001, "db error")
}
