package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/yieldwise/internal/advisor"
	"github.com/suPer8Hu/yieldwise/internal/ai"
	"github.com/suPer8Hu/yieldwise/internal/chat"
	"github.com/suPer8Hu/yieldwise/internal/common"
	"github.com/suPer8Hu/yieldwise/internal/farm"
	"github.com/suPer8Hu/yieldwise/internal/httpapi/middleware"
	"go.uber.org/zap"
)

const (
	maxImageBytes         = 5 << 20
	diagnosisNotFound     = "Diagnosis not found"
	diagnosisAccessDenied = "Diagnosis not found or access denied"
)

var allowedImageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// sniffImage returns the detected MIME type when data really is a PNG or JPEG.
func sniffImage(data []byte) (string, bool) {
	mt := mimetype.Detect(data)
	for _, want := range []string{"image/png", "image/jpeg"} {
		if mt.Is(want) {
			return want, true
		}
	}
	return "", false
}

func (h *Handler) Diagnose(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("plant_image")
	if err != nil {
		if middleware.IsTooLarge(err) {
			common.Fail(c, http.StatusRequestEntityTooLarge, 41301, middleware.TooLargeMessage)
			return
		}
		common.Fail(c, http.StatusBadRequest, 10002, "Missing file or crop type")
		return
	}
	cropType, hasCrop := c.GetPostForm("crop_type")
	if !hasCrop {
		common.Fail(c, http.StatusBadRequest, 10002, "Missing file or crop type")
		return
	}
	cropType = strings.TrimSpace(cropType)
	if fh.Filename == "" || cropType == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "No selected file or crop type")
		return
	}
	if textLen(cropType) < 2 {
		common.Fail(c, http.StatusBadRequest, 10003, "Crop type must be at least 2 characters")
		return
	}
	if !allowedImageExt[strings.ToLower(filepath.Ext(fh.Filename))] {
		common.Fail(c, http.StatusBadRequest, 10004, "Invalid file type.")
		return
	}
	if fh.Size > maxImageBytes {
		common.Fail(c, http.StatusBadRequest, 10005, "Image size must be less than 5MB")
		return
	}

	f, err := fh.Open()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "Invalid file type.")
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	_ = f.Close()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "Invalid file type.")
		return
	}
	if len(data) > maxImageBytes {
		common.Fail(c, http.StatusBadRequest, 10005, "Image size must be less than 5MB")
		return
	}
	mime, ok := sniffImage(data)
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10004, "Invalid file type.")
		return
	}

	ctx := c.Request.Context()
	res, err := h.Advisor.Diagnose(ctx, advisor.DiagnosisRequest{
		Image:    ai.Image{MIMEType: mime, Data: data},
		CropType: cropType,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, advisor.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		common.Fail(c, status, 50002, res.HTML)
		return
	}

	d := &farm.Diagnosis{UserID: uid, Title: res.Title, CropType: cropType, ReportHTML: res.HTML}
	if err := h.Farm.CreateDiagnosis(ctx, d); err != nil {
		h.logger(c).Error("store diagnosis", zap.Uint64("user_id", uid), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	common.OK(c, gin.H{
		"title":        res.Title,
		"diagnosis":    res.HTML,
		"suggestions":  res.Suggestions,
		"diagnosis_id": d.ID,
	})
}

func (h *Handler) GetDiagnosis(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", diagnosisNotFound)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	d, err := h.Farm.GetDiagnosis(ctx, uid, id)
	if err != nil {
		h.farmError(c, err, diagnosisNotFound)
		return
	}
	history, err := h.ChatSvc.History(ctx, chat.KindDiagnosis, d.ID)
	if err != nil {
		h.logger(c).Error("diagnosis history", zap.Uint64("diagnosis_id", id), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"diagnosis": d, "chat_history": history})
}

func (h *Handler) DeleteDiagnosis(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", diagnosisAccessDenied)
	if !ok {
		return
	}
	if err := h.Farm.DeleteDiagnosis(c.Request.Context(), uid, id); err != nil {
		h.farmError(c, err, diagnosisAccessDenied)
		return
	}
	common.OK(c, gin.H{"success": true})
}

func (h *Handler) ListDiagnoses(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	out, err := h.Farm.ListDiagnoses(c.Request.Context(), uid)
	if err != nil {
		h.farmError(c, err, diagnosisNotFound)
		return
	}
	common.OK(c, gin.H{"diagnoses": out})
}
