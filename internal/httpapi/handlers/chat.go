package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/yieldwise/internal/chat"
	"github.com/suPer8Hu/yieldwise/internal/common"
	"github.com/suPer8Hu/yieldwise/internal/farm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type followUpReq struct {
	PlanID      uint64 `json:"plan_id"`
	DiagnosisID uint64 `json:"diagnosis_id"`
	Question    string `json:"question"`
}

func (r followUpReq) parentID(kind chat.Kind) uint64 {
	if kind == chat.KindDiagnosis {
		return r.DiagnosisID
	}
	return r.PlanID
}

func accessDenied(kind chat.Kind) string {
	if kind == chat.KindDiagnosis {
		return diagnosisAccessDenied
	}
	return planAccessDenied
}

func unavailableMsg(kind chat.Kind) string {
	if kind == chat.KindDiagnosis {
		return "Plant diagnosis service is currently unavailable. Please configure an AI provider."
	}
	return "Farm planning service is currently unavailable. Please configure an AI provider."
}

// resolveThread validates the request and loads the caller's thread. It
// writes the error response itself and reports false on failure.
func (h *Handler) resolveThread(c *gin.Context, kind chat.Kind) (uint64, chat.Thread, string, bool) {
	uid, ok := currentUser(c)
	if !ok {
		return 0, chat.Thread{}, "", false
	}
	var req followUpReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "Missing data")
		return 0, chat.Thread{}, "", false
	}
	question := strings.TrimSpace(req.Question)
	parentID := req.parentID(kind)
	if parentID == 0 || question == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "Missing data")
		return 0, chat.Thread{}, "", false
	}
	if textLen(question) < 3 {
		common.Fail(c, http.StatusBadRequest, 10003, "Question must be at least 3 characters")
		return 0, chat.Thread{}, "", false
	}

	thread, err := h.Farm.Thread(c.Request.Context(), uid, kind, parentID)
	if err != nil {
		h.farmError(c, err, accessDenied(kind))
		return 0, chat.Thread{}, "", false
	}
	return uid, thread, question, true
}

// FollowUp answers a question about an owned plan or diagnosis.
func (h *Handler) FollowUp(kind chat.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, thread, question, ok := h.resolveThread(c, kind)
		if !ok {
			return
		}

		reply, err := h.ChatSvc.FollowUp(c.Request.Context(), thread, question)
		if err != nil {
			if errors.Is(err, chat.ErrUnavailable) {
				common.Fail(c, http.StatusServiceUnavailable, 50301, unavailableMsg(kind))
				return
			}
			h.logger(c).Error("follow-up", zap.String("kind", string(kind)), zap.Uint64("parent_id", thread.ParentID), zap.Error(err))
			common.Fail(c, http.StatusInternalServerError, 50001, "Sorry, an error occurred.")
			return
		}
		common.OK(c, gin.H{"answer": reply.HTML})
	}
}

// FollowUpStream is FollowUp delivered as server-sent events.
func (h *Handler) FollowUpStream(kind chat.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, thread, question, ok := h.resolveThread(c, kind)
		if !ok {
			return
		}
		if !h.ChatSvc.Configured() {
			// records the question, like the non-streaming path
			_, _ = h.ChatSvc.FollowUp(c.Request.Context(), thread, question)
			common.Fail(c, http.StatusServiceUnavailable, 50301, unavailableMsg(kind))
			return
		}

		flusher, canFlush := c.Writer.(http.Flusher)
		if !canFlush {
			common.Fail(c, http.StatusInternalServerError, 50004, "streaming not supported")
			return
		}

		// SSE headers
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
		c.Status(http.StatusOK)

		writeJSON := func(event string, payload any) {
			b, err := json.Marshal(payload)
			if err != nil {
				fmt.Fprintf(c.Writer, "event: error\ndata: {\"type\":\"error\",\"message\":\"json marshal failed\"}\n\n")
				flusher.Flush()
				return
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, b)
			flusher.Flush()
		}

		ctx := c.Request.Context()
		chunks, result := h.ChatSvc.FollowUpStream(ctx, thread, question)

		// heartbeat ticker (keeps connections alive)
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case delta, ok := <-chunks:
				if ok {
					writeJSON("chunk", gin.H{"type": "chunk", "delta": delta})
					continue
				}
				res := <-result
				if res.Err != nil {
					h.logger(c).Error("follow-up stream", zap.String("kind", string(kind)), zap.Error(res.Err))
					writeJSON("error", gin.H{"type": "error", "message": "Sorry, an error occurred."})
					return
				}
				writeJSON("done", gin.H{
					"type":       "done",
					"message_id": res.Reply.MessageID,
					"answer":     res.Reply.HTML,
				})
				return

			case <-ticker.C:
				writeJSON("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})

			case <-ctx.Done():
				return
			}
		}
	}
}

// FollowUpAsync records the question and queues the answer for the worker.
func (h *Handler) FollowUpAsync(kind chat.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		// read idempotency key
		idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		if len(idempoKey) > 128 {
			common.Fail(c, http.StatusBadRequest, 10004, "idempotency key too long")
			return
		}

		uid, thread, question, ok := h.resolveThread(c, kind)
		if !ok {
			return
		}
		if h.Jobs == nil {
			common.Fail(c, http.StatusServiceUnavailable, 50303, "async follow-up is not enabled")
			return
		}
		if !h.ChatSvc.Configured() {
			common.Fail(c, http.StatusServiceUnavailable, 50301, unavailableMsg(kind))
			return
		}

		var keyPtr *string
		if idempoKey != "" {
			keyPtr = &idempoKey
		}

		ctx := c.Request.Context()
		log := h.logger(c)
		job, created, err := h.ChatSvc.Enqueue(ctx, uid, thread, question, keyPtr)
		if err != nil {
			log.Error("enqueue follow-up", zap.Uint64("user_id", uid), zap.Error(err))
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}

		// publish only when a new job was created
		if created {
			if err := h.Jobs.PublishJob(ctx, job.ID); err != nil {
				log.Error("publish job", zap.String("job_id", job.ID), zap.Error(err))
				common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
				return
			}
		}

		c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
	}
}

func (h *Handler) GetChatJob(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), uid, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, farm.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "job not found")
			return
		}
		h.logger(c).Error("get job", zap.String("job_id", jobID), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// the stored error is for operators only
	var jobErr *string
	if j.Error != nil {
		msg := "Sorry, an error occurred."
		jobErr = &msg
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":                j.ID,
			"kind":              j.Kind,
			"parent_id":         j.ParentID,
			"status":            j.Status,
			"answer":            j.Answer,
			"result_message_id": j.ResultMessageID,
			"error":             jobErr,
			"created_at":        j.CreatedAt,
			"updated_at":        j.UpdatedAt,
		},
	})
}
