package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PlanMessage is one turn of a farm plan's follow-up conversation.
type PlanMessage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PlanID    uint64    `gorm:"not null;index:idx_chat_history_plan_created,priority:1" json:"plan_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_chat_history_plan_created,priority:2" json:"created_at"`

	Plan *planRow `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"-"`
}

func (PlanMessage) TableName() string { return "chat_history" }

// DiagnosisMessage is one turn of a diagnosis' follow-up conversation.
type DiagnosisMessage struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	DiagnosisID uint64    `gorm:"not null;index:idx_diag_chat_diag_created,priority:1" json:"diagnosis_id"`
	Role        string    `gorm:"type:varchar(16);not null" json:"role"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time `gorm:"index:idx_diag_chat_diag_created,priority:2" json:"created_at"`

	Diagnosis *diagnosisRow `gorm:"foreignKey:DiagnosisID;constraint:OnDelete:CASCADE" json:"-"`
}

func (DiagnosisMessage) TableName() string { return "diagnoses_chat_history" }

// planRow and diagnosisRow name the parent tables for the foreign keys above.
// The full models live in package farm.
type planRow struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`
}

func (planRow) TableName() string { return "farm_plans" }

type diagnosisRow struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`
}

func (diagnosisRow) TableName() string { return "diagnoses" }

// Turn is the storage-neutral view of a chat message.
type Turn struct {
	ID      uint64 `json:"-"`
	Role    string `json:"role"`
	Content string `json:"content"`
}
