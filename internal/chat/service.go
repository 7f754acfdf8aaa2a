package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suPer8Hu/yieldwise/internal/advisor"
	"github.com/suPer8Hu/yieldwise/internal/ai"
	"github.com/suPer8Hu/yieldwise/internal/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrUnavailable means no backend is configured. The user turn is still recorded.
	ErrUnavailable = errors.New("chat: ai backend not configured")
	// ErrBackend means the backend call failed; no assistant turn was recorded.
	ErrBackend = errors.New("chat: backend call failed")
	// ErrStreamingUnsupported means the configured provider cannot stream.
	ErrStreamingUnsupported = errors.New("chat: provider does not support streaming")
)

type Options struct {
	// ContextWindowSize caps how many prior turns are sent; <= 0 sends all of them.
	ContextWindowSize int
	Encoding          Encoding
	Logger            *zap.Logger
}

type Service struct {
	repo              *Repo
	provider          ai.Provider
	contextWindowSize int
	encoding          Encoding
	log               *zap.Logger
}

func NewService(repo *Repo, provider ai.Provider, opts Options) *Service {
	if opts.ContextWindowSize < 0 || opts.ContextWindowSize > 100 {
		opts.ContextWindowSize = 0
	}
	if opts.Encoding == "" {
		opts.Encoding = EncodingLinear
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		repo:              repo,
		provider:          provider,
		contextWindowSize: opts.ContextWindowSize,
		encoding:          opts.Encoding,
		log:               opts.Logger,
	}
}

func (s *Service) Configured() bool { return s.provider != nil }

// Reply is a stored assistant answer.
type Reply struct {
	MessageID uint64
	Markdown  string
	HTML      string
}

// History returns the full thread history, oldest first.
func (s *Service) History(ctx context.Context, kind Kind, parentID uint64) ([]Turn, error) {
	turns, err := s.repo.ListTurns(ctx, kind, parentID, 0, 0)
	if err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}

// prepare loads prior history and records the new user turn before any
// backend call is made.
func (s *Service) prepare(ctx context.Context, thread Thread, question string) (Transcript, error) {
	history, err := s.repo.ListTurns(ctx, thread.Kind, thread.ParentID, 0, s.contextWindowSize)
	if err != nil {
		return Transcript{}, err
	}
	if _, err := s.repo.AppendTurn(ctx, thread.Kind, thread.ParentID, RoleUser, question); err != nil {
		return Transcript{}, err
	}
	return Transcript{Thread: thread, History: history, Question: question}, nil
}

func (s *Service) complete(ctx context.Context, thread Thread, raw string) (Reply, error) {
	id, err := s.repo.AppendTurn(ctx, thread.Kind, thread.ParentID, RoleAssistant, raw)
	if err != nil {
		return Reply{}, err
	}
	html, err := advisor.Answer(raw)
	if err != nil {
		return Reply{}, err
	}
	return Reply{MessageID: id, Markdown: raw, HTML: html}, nil
}

// FollowUp answers a question about the thread's artifact. The caller must
// have verified ownership of the thread.
func (s *Service) FollowUp(ctx context.Context, thread Thread, question string) (Reply, error) {
	tr, err := s.prepare(ctx, thread, question)
	if err != nil {
		return Reply{}, err
	}
	if s.provider == nil {
		return Reply{}, ErrUnavailable
	}

	raw, err := s.provider.Chat(ctx, tr.Encode(s.encoding))
	if err != nil {
		s.log.Error("follow-up backend call failed",
			zap.String("kind", string(thread.Kind)), zap.Uint64("parent_id", thread.ParentID), zap.Error(err))
		return Reply{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return s.complete(ctx, thread, raw)
}

// StreamResult is delivered once, after the chunk channel has drained.
type StreamResult struct {
	Reply Reply
	Err   error
}

// FollowUpStream is FollowUp with incremental delivery. The chunk channel is
// closed after the single StreamResult has been sent.
func (s *Service) FollowUpStream(ctx context.Context, thread Thread, question string) (<-chan string, <-chan StreamResult) {
	chunks := make(chan string, 16)
	result := make(chan StreamResult, 1)

	go func() {
		defer close(chunks)

		fail := func(err error) { result <- StreamResult{Err: err} }

		tr, err := s.prepare(ctx, thread, question)
		if err != nil {
			fail(err)
			return
		}
		if s.provider == nil {
			fail(ErrUnavailable)
			return
		}
		sp, ok := s.provider.(ai.StreamProvider)
		if !ok {
			fail(ErrStreamingUnsupported)
			return
		}

		pChunks, pErrs := sp.StreamChat(ctx, tr.Encode(s.encoding))

		var b strings.Builder
		for c := range pChunks {
			b.WriteString(c)
			select {
			case chunks <- c:
			case <-ctx.Done():
			}
		}
		if err := <-pErrs; err != nil {
			s.log.Error("follow-up stream failed",
				zap.String("kind", string(thread.Kind)), zap.Uint64("parent_id", thread.ParentID), zap.Error(err))
			fail(fmt.Errorf("%w: %v", ErrBackend, err))
			return
		}

		reply, err := s.complete(ctx, thread, b.String())
		if err != nil {
			fail(err)
			return
		}
		result <- StreamResult{Reply: reply}
	}()

	return chunks, result
}

// Enqueue records the user turn and creates a queued job for the worker.
// A repeated idempotency key returns the existing job with created=false and
// records nothing.
func (s *Service) Enqueue(ctx context.Context, userID uint64, thread Thread, question string, idempotencyKey *string) (*Job, bool, error) {
	if idempotencyKey != nil {
		existing, err := s.repo.FindJobByIdempotencyKey(ctx, userID, *idempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	msgID, err := s.repo.AppendTurn(ctx, thread.Kind, thread.ParentID, RoleUser, question)
	if err != nil {
		return nil, false, err
	}

	jobID, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	job := &Job{
		ID:             jobID,
		UserID:         userID,
		Kind:           thread.Kind,
		ParentID:       thread.ParentID,
		UserMessageID:  msgID,
		IdempotencyKey: idempotencyKey,
		Status:         JobQueued,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, false, err
	}
	return job, true, nil
}

// GetJob hides jobs owned by other users behind gorm.ErrRecordNotFound.
func (s *Service) GetJob(ctx context.Context, userID uint64, jobID string) (*Job, error) {
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return j, nil
}

// ThreadLoader resolves an owned thread; it returns an error wrapping
// gorm.ErrRecordNotFound (or any not-found error) when the artifact is gone.
type ThreadLoader interface {
	Thread(ctx context.Context, userID uint64, kind Kind, parentID uint64) (Thread, error)
}

// ProcessJob answers a queued job. Failures are recorded on the job row and
// returned so the worker can nack the delivery.
func (s *Service) ProcessJob(ctx context.Context, jobID string, loader ThreadLoader) error {
	_ = s.repo.UpdateJobStatusRunning(ctx, jobID)

	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status == JobSucceeded {
		return nil
	}

	reply, err := s.answerJob(ctx, j, loader)
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}
	return s.repo.MarkJobSucceeded(ctx, jobID, reply.MessageID, reply.HTML)
}

func (s *Service) answerJob(ctx context.Context, j *Job, loader ThreadLoader) (Reply, error) {
	thread, err := loader.Thread(ctx, j.UserID, j.Kind, j.ParentID)
	if err != nil {
		return Reply{}, fmt.Errorf("load thread: %w", err)
	}

	question, err := s.repo.GetTurn(ctx, j.Kind, j.ParentID, j.UserMessageID)
	if err != nil {
		return Reply{}, fmt.Errorf("load question: %w", err)
	}
	history, err := s.repo.ListTurns(ctx, j.Kind, j.ParentID, j.UserMessageID, s.contextWindowSize)
	if err != nil {
		return Reply{}, err
	}

	if s.provider == nil {
		return Reply{}, ErrUnavailable
	}

	tr := Transcript{Thread: thread, History: history, Question: question.Content}
	raw, err := s.provider.Chat(ctx, tr.Encode(s.encoding))
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return s.complete(ctx, thread, raw)
}
