// Package advisor turns plan and diagnosis requests into model prompts and
// model output into stored HTML artifacts plus suggested follow-up questions.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suPer8Hu/yieldwise/internal/ai"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable means no AI backend is configured; no call was attempted.
	ErrUnavailable = errors.New("advisor: ai backend not configured")
	// ErrGeneration wraps any backend or post-processing failure.
	ErrGeneration = errors.New("advisor: generation failed")
)

const (
	PlanUnavailableHTML      = `<p class="error-message">Farm planning service is currently unavailable. Please configure an AI provider.</p>`
	PlanFailedHTML           = `<p class="error-message">Error: Could not generate the plan. The AI service may be temporarily unavailable.</p>`
	DiagnosisUnavailableHTML = `<p class="error-message">Plant diagnosis service is currently unavailable. Please configure an AI provider.</p>`
	DiagnosisFailedHTML      = `<p class="error-message">Sorry, an error occurred while analyzing the image.</p>`
)

type PlanResult struct {
	HTML        string
	Suggestions []string
}

type DiagnosisResult struct {
	Title       string
	HTML        string
	Suggestions []string
}

type DiagnosisRequest struct {
	Image    ai.Image
	CropType string
}

// Advisor renders prompts, calls the backend and post-processes its answer.
// A nil provider means the backend is unconfigured.
type Advisor struct {
	provider ai.Provider
	log      *zap.Logger
}

func New(provider ai.Provider, log *zap.Logger) *Advisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Advisor{provider: provider, log: log}
}

func (a *Advisor) Configured() bool { return a.provider != nil }

// GeneratePlan never returns a zero result: on failure the result holds a
// safe HTML error fragment and no suggestions, and err is ErrUnavailable or
// wraps ErrGeneration.
func (a *Advisor) GeneratePlan(ctx context.Context, req PlanRequest) (PlanResult, error) {
	if a.provider == nil {
		return PlanResult{HTML: PlanUnavailableHTML, Suggestions: []string{}}, ErrUnavailable
	}

	prompt, err := PlanPrompt(req)
	if err != nil {
		return a.planFailed(err)
	}

	raw, err := a.provider.Chat(ctx, []ai.Message{{Role: ai.RoleUser, Content: prompt}})
	if err != nil {
		return a.planFailed(err)
	}

	primary, suggestions, _ := SplitSuggestions(raw)
	html, err := RenderMarkdown(primary)
	if err != nil {
		return a.planFailed(err)
	}
	return PlanResult{HTML: html, Suggestions: suggestions}, nil
}

func (a *Advisor) planFailed(err error) (PlanResult, error) {
	a.log.Error("plan generation failed", zap.Error(err))
	return PlanResult{HTML: PlanFailedHTML, Suggestions: []string{}}, fmt.Errorf("%w: %v", ErrGeneration, err)
}

// Diagnose sends the image and the diagnosis prompt in a single user turn.
// Failure handling mirrors GeneratePlan; the failed result carries the title "Error".
func (a *Advisor) Diagnose(ctx context.Context, req DiagnosisRequest) (DiagnosisResult, error) {
	if a.provider == nil {
		return DiagnosisResult{Title: "Error", HTML: DiagnosisUnavailableHTML, Suggestions: []string{}}, ErrUnavailable
	}

	prompt, err := DiagnosisPrompt(req.CropType)
	if err != nil {
		return a.diagnosisFailed(err)
	}

	raw, err := a.provider.Chat(ctx, []ai.Message{{
		Role:    ai.RoleUser,
		Content: prompt,
		Images:  []ai.Image{req.Image},
	}})
	if err != nil {
		return a.diagnosisFailed(err)
	}

	report, suggestions, found := SplitSuggestions(raw)
	title := fallbackTitle(req.CropType)
	if found {
		title = ExtractTitle(report, req.CropType)
	}

	html, err := RenderMarkdown(report)
	if err != nil {
		return a.diagnosisFailed(err)
	}
	return DiagnosisResult{Title: title, HTML: html, Suggestions: suggestions}, nil
}

func (a *Advisor) diagnosisFailed(err error) (DiagnosisResult, error) {
	a.log.Error("diagnosis failed", zap.Error(err))
	return DiagnosisResult{Title: "Error", HTML: DiagnosisFailedHTML, Suggestions: []string{}}, fmt.Errorf("%w: %v", ErrGeneration, err)
}

// Answer renders a follow-up answer. Follow-ups have no suggestions section.
func Answer(raw string) (string, error) {
	return RenderMarkdown(strings.TrimSpace(raw))
}
