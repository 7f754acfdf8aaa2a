package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/yieldwise/internal/advisor"
	"github.com/suPer8Hu/yieldwise/internal/ai"
	"github.com/suPer8Hu/yieldwise/internal/chat"
	"github.com/suPer8Hu/yieldwise/internal/config"
	"github.com/suPer8Hu/yieldwise/internal/db"
	"github.com/suPer8Hu/yieldwise/internal/farm"
	"github.com/suPer8Hu/yieldwise/internal/guest"
	"github.com/suPer8Hu/yieldwise/internal/httpapi"
	"github.com/suPer8Hu/yieldwise/internal/httpapi/handlers"
	"github.com/suPer8Hu/yieldwise/internal/pdf"
	"github.com/suPer8Hu/yieldwise/internal/ratelimit"
	"github.com/suPer8Hu/yieldwise/internal/store/rabbitmq"
	"github.com/suPer8Hu/yieldwise/internal/store/redisstore"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var addr string
	var noPDF bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if addr == "" {
				addr = ":" + cfg.Port
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.AppEnv != "development" {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gdb, err := db.Connect(cfg)
			if err != nil {
				return err
			}
			if err := db.Migrate(gdb); err != nil {
				return err
			}

			provider := newProvider(ctx, cfg, log)
			chatSvc, err := newChatService(chat.NewRepo(gdb), provider, cfg, log)
			if err != nil {
				return err
			}

			deps := handlers.Deps{
				DB:      gdb,
				Cfg:     cfg,
				Log:     log,
				Advisor: advisor.New(provider, log),
				ChatSvc: chatSvc,
				Farm:    farm.NewRepo(gdb),
			}
			if provider != nil {
				deps.Model = ai.Describe(provider)
			}

			var guestStore guest.Store = guest.NewMemoryStore()
			var limiter ratelimit.Limiter = ratelimit.NewMemory()
			if cfg.RedisAddr != "" {
				rds, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
				if err != nil {
					return err
				}
				defer rds.Close()
				guestStore, limiter, deps.Redis = rds, rds, rds
			} else {
				log.Warn("REDIS_ADDR not set; guest quota and rate limits are per process")
			}
			deps.Guest = guest.NewGate(guestStore, cfg.SessionTTL)

			if cfg.RabbitURL != "" {
				pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
				if err != nil {
					return err
				}
				defer pub.Close()
				deps.Jobs = pub
			}

			if !noPDF {
				renderer := pdf.NewChromeRenderer(cfg.ChromeBin)
				defer renderer.Close()
				deps.PDF = renderer
			}

			router := httpapi.NewRouter(handlers.NewHandler(deps), limiter)
			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :$PORT)")
	cmd.Flags().BoolVar(&noPDF, "no-pdf", false, "disable PDF export (no Chrome available)")
	return cmd
}
