package chat

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// AppendTurn inserts one message into the thread's history and returns its id.
func (r *Repo) AppendTurn(ctx context.Context, kind Kind, parentID uint64, role, content string) (uint64, error) {
	switch kind {
	case KindPlan:
		m := &PlanMessage{PlanID: parentID, Role: role, Content: content}
		if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
			return 0, err
		}
		return m.ID, nil
	case KindDiagnosis:
		m := &DiagnosisMessage{DiagnosisID: parentID, Role: role, Content: content}
		if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
			return 0, err
		}
		return m.ID, nil
	}
	return 0, fmt.Errorf("chat: unknown thread kind %q", kind)
}

func (r *Repo) threadQuery(ctx context.Context, kind Kind, parentID uint64) (*gorm.DB, error) {
	q := r.db.WithContext(ctx)
	switch kind {
	case KindPlan:
		return q.Model(&PlanMessage{}).Where("plan_id = ?", parentID), nil
	case KindDiagnosis:
		return q.Model(&DiagnosisMessage{}).Where("diagnosis_id = ?", parentID), nil
	}
	return nil, fmt.Errorf("chat: unknown thread kind %q", kind)
}

// ListTurns returns the thread's history oldest first. beforeID > 0 restricts
// it to messages older than that id; limit > 0 keeps only the newest limit turns.
func (r *Repo) ListTurns(ctx context.Context, kind Kind, parentID uint64, beforeID uint64, limit int) ([]Turn, error) {
	q, err := r.threadQuery(ctx, kind, parentID)
	if err != nil {
		return nil, err
	}
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var turns []Turn
	if limit <= 0 {
		if err := q.Select("id", "role", "content").
			Order("created_at ASC").Order("id ASC").
			Scan(&turns).Error; err != nil {
			return nil, err
		}
		return turns, nil
	}

	// newest -> oldest, then reverse
	if err := q.Select("id", "role", "content").
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Scan(&turns).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (r *Repo) GetTurn(ctx context.Context, kind Kind, parentID, id uint64) (*Turn, error) {
	q, err := r.threadQuery(ctx, kind, parentID)
	if err != nil {
		return nil, err
	}
	var t Turn
	res := q.Select("id", "role", "content").Where("id = ?", id).Limit(1).Scan(&t)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}

// DeleteThread removes every message of a thread. Callers pass a transaction
// handle when the parent row is deleted in the same step.
func DeleteThread(tx *gorm.DB, kind Kind, parentID uint64) error {
	switch kind {
	case KindPlan:
		return tx.Where("plan_id = ?", parentID).Delete(&PlanMessage{}).Error
	case KindDiagnosis:
		return tx.Where("diagnosis_id = ?", parentID).Delete(&DiagnosisMessage{}).Error
	}
	return fmt.Errorf("chat: unknown thread kind %q", kind)
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, assistantMsgID uint64, answer string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": assistantMsgID,
			"answer":            answer,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindJobByIdempotencyKey returns (nil, nil) when no job carries the key.
func (r *Repo) FindJobByIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	job, err := r.GetJobByUserAndIdempotencyKey(ctx, userID, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return job, err
}
