package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/yieldwise/internal/chat"
	"github.com/suPer8Hu/yieldwise/internal/config"
	"github.com/suPer8Hu/yieldwise/internal/db"
	"github.com/suPer8Hu/yieldwise/internal/farm"
	"github.com/suPer8Hu/yieldwise/internal/store/rabbitmq"
)

func workerCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Answer queued follow-up questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.RabbitURL == "" {
				return errors.New("RABBIT_URL is not set")
			}
			if concurrency > 0 {
				cfg.WorkerConcurrency = concurrency
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gdb, err := db.Connect(cfg)
			if err != nil {
				return err
			}

			provider := newProvider(ctx, cfg, log)
			if provider == nil {
				return errors.New("worker needs a configured AI backend")
			}
			svc, err := newChatService(chat.NewRepo(gdb), provider, cfg, log)
			if err != nil {
				return err
			}
			threads := farm.NewRepo(gdb)

			consumer := &rabbitmq.Consumer{
				URL:         cfg.RabbitURL,
				Queue:       cfg.RabbitQueue,
				Concurrency: cfg.WorkerConcurrency,
				Log:         log,
			}
			return consumer.Run(ctx, func(ctx context.Context, jobID string) error {
				return svc.ProcessJob(ctx, jobID, threads)
			})
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel jobs (default $WORKER_CONCURRENCY)")
	return cmd
}
