package farm

import (
	"time"

	"github.com/suPer8Hu/yieldwise/internal/models"
)

// Plan is a generated farm business plan. UserID is nil only while a guest
// plan has not been claimed by a registration.
type Plan struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *uint64   `gorm:"index:idx_farm_plans_user_created,priority:1" json:"user_id"`
	Location   string    `gorm:"type:varchar(255);not null" json:"location"`
	Country    string    `gorm:"type:varchar(100)" json:"country"`
	Currency   string    `gorm:"type:varchar(16)" json:"currency"`
	PlanHTML   string    `gorm:"type:longtext;not null" json:"plan_html"`
	ShowcaseID *string   `gorm:"type:varchar(36);uniqueIndex" json:"showcase_id"`
	CreatedAt  time.Time `gorm:"index:idx_farm_plans_user_created,priority:2" json:"created_at"`

	User *models.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Plan) TableName() string { return "farm_plans" }

type Diagnosis struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint64    `gorm:"not null;index:idx_diagnoses_user_created,priority:1" json:"user_id"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	CropType   string    `gorm:"type:varchar(100)" json:"crop_type"`
	ReportHTML string    `gorm:"type:longtext;not null" json:"report_html"`
	CreatedAt  time.Time `gorm:"index:idx_diagnoses_user_created,priority:2" json:"created_at"`

	User *models.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Diagnosis) TableName() string { return "diagnoses" }

// Showcase is the public read-only view of a shared plan.
type Showcase struct {
	ID        uint64    `json:"id"`
	Location  string    `json:"location"`
	Country   string    `json:"country"`
	Currency  string    `json:"currency"`
	PlanHTML  string    `json:"plan_html"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Export is a user's full data dump.
type Export struct {
	User       ExportUser  `json:"user"`
	Plans      []Plan      `json:"plans"`
	Diagnoses  []Diagnosis `json:"diagnoses"`
	ExportedAt time.Time   `json:"exported_at"`
}

type ExportUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
