package main

import (
	"context"
	"errors"
	"strings"

	"github.com/suPer8Hu/yieldwise/internal/ai"
	"github.com/suPer8Hu/yieldwise/internal/chat"
	"github.com/suPer8Hu/yieldwise/internal/config"
	"go.uber.org/zap"
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.AppEnv == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	reg.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.GoogleAPIKey == "" {
			return nil, errors.New("GOOGLE_API_KEY is not set")
		}
		if strings.TrimSpace(model) == "" {
			model = cfg.GeminiModel
		}
		return ai.NewGeminiProvider(ctx, cfg.GoogleAPIKey, model)
	})

	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.OpenRouterAPIKey == "" {
			return nil, errors.New("OPENROUTER_API_KEY is not set")
		}
		if strings.TrimSpace(model) == "" {
			model = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		if strings.TrimSpace(model) == "" {
			model = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})

	return reg
}

// newProvider returns nil when the configured backend cannot be built; the
// service then runs with AI features reporting unavailable.
func newProvider(ctx context.Context, cfg config.Config, log *zap.Logger) ai.Provider {
	reg := newRegistry(cfg)
	p, err := reg.Get(ctx, cfg.AIProvider, "")
	if err != nil {
		log.Warn("ai backend not configured; generation disabled",
			zap.String("provider", cfg.AIProvider), zap.Strings("known", reg.Names()), zap.Error(err))
		return nil
	}
	log.Info("ai backend ready", zap.String("model", ai.Describe(p)))
	return p
}

func newChatService(repo *chat.Repo, provider ai.Provider, cfg config.Config, log *zap.Logger) (*chat.Service, error) {
	enc, err := chat.ParseEncoding(cfg.ChatEncoding)
	if err != nil {
		return nil, err
	}
	return chat.NewService(repo, provider, chat.Options{
		ContextWindowSize: cfg.ChatContextWindowSize,
		Encoding:          enc,
		Logger:            log,
	}), nil
}
