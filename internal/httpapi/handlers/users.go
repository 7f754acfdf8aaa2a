package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/yieldwise/internal/auth"
	"github.com/suPer8Hu/yieldwise/internal/common"
	"github.com/suPer8Hu/yieldwise/internal/farm"
	"github.com/suPer8Hu/yieldwise/internal/httpapi/middleware"
	"github.com/suPer8Hu/yieldwise/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register creates the account and, when the session holds a guest plan,
// stores that plan under the new user.
func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "All fields are required.")
		return
	}

	ctx := c.Request.Context()
	log := h.logger(c)

	if h.emailTaken(c, req.Email) {
		common.Fail(c, http.StatusConflict, 10003, "Email address already exists.")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}

	// The plan leaves the guest store before the transaction so two
	// registrations from one session cannot both store it.
	sid := middleware.SessionID(c)
	gp, err := h.Guest.Claim(ctx, sid)
	if err != nil {
		// a lost guest plan must not block the registration
		log.Warn("claim guest plan", zap.Error(err))
		gp = nil
	}

	user := models.User{Email: req.Email, Name: req.Name, PasswordHash: hash}
	var planID *uint64
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if gp == nil {
			return nil
		}
		p := &farm.Plan{
			UserID:   &user.ID,
			Location: gp.Location,
			Country:  gp.Country,
			Currency: gp.Currency,
			PlanHTML: gp.PlanHTML,
		}
		if err := h.Farm.WithTx(tx).CreatePlan(ctx, p); err != nil {
			return err
		}
		planID = &p.ID
		return nil
	})
	if err != nil {
		if gp != nil {
			if rerr := h.Guest.Restore(ctx, sid, *gp); rerr != nil {
				log.Error("restore guest plan", zap.Error(rerr))
			}
		}
		if h.emailTaken(c, req.Email) {
			common.Fail(c, http.StatusConflict, 10003, "Email address already exists.")
			return
		}
		log.Error("register", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	token, err := h.setAuthCookie(c, user.ID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"id":      user.ID,
		"email":   user.Email,
		"name":    user.Name,
		"token":   token,
		"plan_id": planID,
	})
}

// emailTaken reports whether an account already uses email. Lookup errors
// are logged and reported as not taken.
func (h *Handler) emailTaken(c *gin.Context, email string) bool {
	var cnt int64
	err := h.DB.WithContext(c.Request.Context()).Model(&models.User{}).Where("email = ?", email).Count(&cnt).Error
	if err != nil {
		h.logger(c).Error("check email", zap.Error(err))
		return false
	}
	return cnt > 0
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "Both email and password are required.")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger(c).Error("login lookup", zap.Error(err))
			common.Fail(c, http.StatusInternalServerError, 20001, "db error")
			return
		}
		common.Fail(c, http.StatusUnauthorized, 40103, "Invalid email or password.")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40103, "Invalid email or password.")
		return
	}

	token, err := h.setAuthCookie(c, user.ID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}
	common.OK(c, gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"token": token,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookie, "", -1, "/", "", h.Cfg.CookieSecure, true)
	common.OK(c, gin.H{"success": true})
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"created_at": user.CreatedAt,
	})
}
