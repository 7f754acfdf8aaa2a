package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDecodeJob(t *testing.T) {
	body, err := json.Marshal(JobMessage{JobID: "01HZX3Q4R5S6T7V8W9XAYBZC0D"})
	require.NoError(t, err)

	id, err := decodeJob(body)
	require.NoError(t, err)
	assert.Equal(t, "01HZX3Q4R5S6T7V8W9XAYBZC0D", id)

	_, err = decodeJob([]byte(`{"job_id":""}`))
	assert.Error(t, err)
	_, err = decodeJob([]byte(`not json`))
	assert.Error(t, err)
}

type ackRecord struct {
	tag     uint64
	ack     bool
	requeue bool
}

type recordingAcker struct {
	mu   sync.Mutex
	seen []ackRecord
}

func (a *recordingAcker) add(r ackRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, r)
	return nil
}

func (a *recordingAcker) Ack(tag uint64, multiple bool) error {
	return a.add(ackRecord{tag: tag, ack: true})
}

func (a *recordingAcker) Nack(tag uint64, multiple, requeue bool) error {
	return a.add(ackRecord{tag: tag, requeue: requeue})
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error {
	return a.add(ackRecord{tag: tag, requeue: requeue})
}

func (a *recordingAcker) records() []ackRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ackRecord(nil), a.seen...)
}

func delivery(t *testing.T, acker amqp.Acknowledger, tag uint64, jobID string) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(JobMessage{JobID: jobID})
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: acker, DeliveryTag: tag, Body: body}
}

func TestServe_AcksAndDeadLetters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	acker := &recordingAcker{}
	msgs := make(chan amqp.Delivery, 3)
	msgs <- delivery(t, acker, 1, "ok")
	msgs <- delivery(t, acker, 2, "boom")
	msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 3, Body: []byte("junk")}
	close(msgs)

	err := serve(ctx, msgs, 1, func(ctx context.Context, id string) error {
		if id == "boom" {
			return errors.New("backend failed")
		}
		return nil
	}, zap.NewNop())
	assert.Error(t, err)

	assert.ElementsMatch(t, []ackRecord{
		{tag: 1, ack: true},
		{tag: 2},
		{tag: 3},
	}, acker.records())
}

func TestServe_ShutdownWithFullPool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	acker := &recordingAcker{}
	msgs := make(chan amqp.Delivery)
	started := make(chan string, 4)

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, msgs, 1, func(ctx context.Context, id string) error {
			started <- id
			<-ctx.Done()
			return ctx.Err()
		}, zap.NewNop())
	}()

	// one running, two buffered, the fourth held by the dispatcher
	for i := uint64(1); i <= 4; i++ {
		msgs <- delivery(t, acker, i, fmt.Sprintf("job-%d", i))
	}
	require.Equal(t, "job-1", <-started)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	assert.ElementsMatch(t, []ackRecord{
		{tag: 1, requeue: true},
		{tag: 2, requeue: true},
		{tag: 3, requeue: true},
		{tag: 4, requeue: true},
	}, acker.records())
	assert.Len(t, started, 0)
}
