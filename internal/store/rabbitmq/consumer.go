package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// JobHandler processes one job id. A returned error nacks the delivery,
// which dead-letters it.
type JobHandler func(ctx context.Context, jobID string) error

type Consumer struct {
	URL         string
	Queue       string
	Concurrency int
	Log         *zap.Logger
}

func decodeJob(body []byte) (string, error) {
	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return "", err
	}
	if m.JobID == "" {
		return "", errors.New("empty job_id")
	}
	return m.JobID, nil
}

// Run consumes until ctx is cancelled and waits for running jobs to return.
func (c *Consumer) Run(ctx context.Context, handle JobHandler) error {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := DeclareTopology(ch, c.Queue); err != nil {
		return err
	}

	// strict concurrency control
	if err := ch.Qos(concurrency, 0, false); err != nil {
		return err
	}

	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	log.Info("worker started", zap.String("queue", c.Queue), zap.Int("concurrency", concurrency))
	return serve(ctx, msgs, concurrency, handle, log)
}

// serve feeds deliveries to a pool of concurrency workers until ctx is
// cancelled or msgs closes. On cancellation, deliveries that were not
// finished go back to the queue.
func serve(ctx context.Context, msgs <-chan amqp.Delivery, concurrency int, handle JobHandler, log *zap.Logger) error {
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				if ctx.Err() != nil {
					_ = d.Nack(false, true)
					continue
				}
				jobID, err := decodeJob(d.Body)
				if err != nil {
					log.Warn("bad message", zap.Int("worker", workerID), zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handle(ctx, jobID); err != nil {
					if ctx.Err() != nil {
						log.Info("job interrupted", zap.Int("worker", workerID), zap.String("job_id", jobID))
						_ = d.Nack(false, true)
						continue
					}
					log.Error("job failed", zap.Int("worker", workerID), zap.String("job_id", jobID),
						zap.Duration("cost", time.Since(start)), zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}
				if cost := time.Since(start); cost > 2*time.Second {
					log.Info("job slow", zap.String("job_id", jobID), zap.Duration("cost", cost))
				}

				if err := d.Ack(false); err != nil {
					log.Warn("ack failed", zap.Int("worker", workerID), zap.String("job_id", jobID), zap.Error(err))
				}
			}
		}(i)
	}

	stop := func() {
		close(jobs)
		wg.Wait()
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			stop()
			return nil

		case d, ok := <-msgs:
			if !ok {
				stop()
				return errors.New("delivery channel closed")
			}
			select {
			case jobs <- d:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				log.Info("worker shutting down")
				stop()
				return nil
			}
		}
	}
}
