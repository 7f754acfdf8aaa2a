package farm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/suPer8Hu/yieldwise/internal/chat"
	"github.com/suPer8Hu/yieldwise/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound covers both a missing row and a row owned by someone else.
var ErrNotFound = errors.New("farm: not found")

const searchLimit = 10

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// WithTx returns a repo bound to tx.
func (r *Repo) WithTx(tx *gorm.DB) *Repo {
	return &Repo{db: tx}
}

// Plans

func (r *Repo) CreatePlan(ctx context.Context, p *Plan) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repo) GetPlan(ctx context.Context, userID, id uint64) (*Plan, error) {
	var p Plan
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListPlans returns the user's plans, newest first.
func (r *Repo) ListPlans(ctx context.Context, userID uint64) ([]Plan, error) {
	plans := []Plan{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&plans).Error
	return plans, err
}

// SearchPlans matches q against the plan location. An empty query matches nothing.
func (r *Repo) SearchPlans(ctx context.Context, userID uint64, q string) ([]Plan, error) {
	plans := []Plan{}
	q = strings.TrimSpace(q)
	if q == "" {
		return plans, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND location LIKE ?", userID, "%"+q+"%").
		Order("created_at DESC").Order("id DESC").
		Limit(searchLimit).
		Find(&plans).Error
	return plans, err
}

// DeletePlan removes the plan and its chat history in one transaction.
func (r *Repo) DeletePlan(ctx context.Context, userID, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Plan
		if err := tx.Select("id").Where("id = ? AND user_id = ?", id, userID).First(&p).Error; err != nil {
			return notFound(err)
		}
		if err := chat.DeleteThread(tx, chat.KindPlan, p.ID); err != nil {
			return err
		}
		return tx.Delete(&Plan{}, p.ID).Error
	})
}

// CreateShowcase assigns a public token to the plan, or returns the one it
// already has.
func (r *Repo) CreateShowcase(ctx context.Context, userID, planID uint64) (string, error) {
	var token string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Plan
		if err := tx.Where("id = ? AND user_id = ?", planID, userID).First(&p).Error; err != nil {
			return notFound(err)
		}
		if p.ShowcaseID != nil && *p.ShowcaseID != "" {
			token = *p.ShowcaseID
			return nil
		}

		candidate := uuid.NewString()
		res := tx.Model(&Plan{}).
			Where("id = ? AND showcase_id IS NULL", p.ID).
			Update("showcase_id", candidate)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			token = candidate
			return nil
		}

		// lost a race with a concurrent request; use the winner's token
		if err := tx.Select("showcase_id").First(&p, p.ID).Error; err != nil {
			return err
		}
		if p.ShowcaseID == nil {
			return errors.New("farm: showcase token not assigned")
		}
		token = *p.ShowcaseID
		return nil
	})
	return token, err
}

// GetShowcase is the public lookup; it performs no ownership check.
func (r *Repo) GetShowcase(ctx context.Context, token string) (*Showcase, error) {
	var s Showcase
	res := r.db.WithContext(ctx).
		Table("farm_plans AS p").
		Select("p.id, p.location, p.country, p.currency, p.plan_html, p.created_at, u.name AS user_name").
		Joins("JOIN users AS u ON u.id = p.user_id").
		Where("p.showcase_id = ?", token).
		Limit(1).
		Scan(&s)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &s, nil
}

// Diagnoses

func (r *Repo) CreateDiagnosis(ctx context.Context, d *Diagnosis) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *Repo) GetDiagnosis(ctx context.Context, userID, id uint64) (*Diagnosis, error) {
	var d Diagnosis
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (r *Repo) ListDiagnoses(ctx context.Context, userID uint64) ([]Diagnosis, error) {
	out := []Diagnosis{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	return out, err
}

func (r *Repo) DeleteDiagnosis(ctx context.Context, userID, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d Diagnosis
		if err := tx.Select("id").Where("id = ? AND user_id = ?", id, userID).First(&d).Error; err != nil {
			return notFound(err)
		}
		if err := chat.DeleteThread(tx, chat.KindDiagnosis, d.ID); err != nil {
			return err
		}
		return tx.Delete(&Diagnosis{}, d.ID).Error
	})
}

// Thread resolves an owned plan or diagnosis into the conversation it anchors.
func (r *Repo) Thread(ctx context.Context, userID uint64, kind chat.Kind, parentID uint64) (chat.Thread, error) {
	switch kind {
	case chat.KindPlan:
		p, err := r.GetPlan(ctx, userID, parentID)
		if err != nil {
			return chat.Thread{}, err
		}
		return chat.Thread{Kind: kind, ParentID: p.ID, Artifact: p.PlanHTML}, nil
	case chat.KindDiagnosis:
		d, err := r.GetDiagnosis(ctx, userID, parentID)
		if err != nil {
			return chat.Thread{}, err
		}
		return chat.Thread{Kind: kind, ParentID: d.ID, Artifact: d.ReportHTML}, nil
	}
	return chat.Thread{}, ErrNotFound
}

// Export collects everything stored for the user.
func (r *Repo) Export(ctx context.Context, userID uint64) (*Export, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		return nil, notFound(err)
	}
	plans, err := r.ListPlans(ctx, userID)
	if err != nil {
		return nil, err
	}
	diagnoses, err := r.ListDiagnoses(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Export{
		User:       ExportUser{Name: u.Name, Email: u.Email},
		Plans:      plans,
		Diagnoses:  diagnoses,
		ExportedAt: time.Now().UTC(),
	}, nil
}
