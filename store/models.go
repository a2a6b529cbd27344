package store

import (
	"time"

	"gorm.io/gorm"
)

// Persistence models. Domain types live in the types package; these
// structs exist only to give gorm stable column layouts, with list and
// map fields serialized to JSON text columns.

// UserPO is a registered user.
type UserPO struct {
	ID        uint   `gorm:"primarykey"`
	UID       string `gorm:"size:64;uniqueIndex"`
	Name      string `gorm:"size:128"`
	Locale    string `gorm:"size:16"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (UserPO) TableName() string { return "users" }

// ResourcePO is a referenced knowledge resource.
type ResourcePO struct {
	ID         uint   `gorm:"primarykey"`
	ResourceID string `gorm:"size:64;index:idx_resources_uid_rid,unique"`
	UID        string `gorm:"size:64;index:idx_resources_uid_rid,unique"`
	Title      string `gorm:"size:512"`
	Content    string `gorm:"type:text"`
	URL        string `gorm:"size:2048"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (ResourcePO) TableName() string { return "resources" }

// DocumentPO is a referenced document.
type DocumentPO struct {
	ID         uint   `gorm:"primarykey"`
	DocumentID string `gorm:"size:64;index:idx_documents_uid_did,unique"`
	UID        string `gorm:"size:64;index:idx_documents_uid_did,unique"`
	Title      string `gorm:"size:512"`
	Content    string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (DocumentPO) TableName() string { return "documents" }

// ActionResultPO is the durable record of one invocation. ResultID is
// unique per user; the idempotency check in admission relies on it.
type ActionResultPO struct {
	ID        uint   `gorm:"primarykey"`
	ResultID  string `gorm:"size:64;index:idx_results_uid_rid,unique"`
	UID       string `gorm:"size:64;index:idx_results_uid_rid,unique"`
	CanvasID  string `gorm:"size:64;index"`
	TriggerID string `gorm:"size:64;index"`
	Type      string `gorm:"size:16"`
	SkillName string `gorm:"size:128;index"`
	ModelName string `gorm:"size:128"`
	Input     string `gorm:"type:text"`

	Status         string `gorm:"size:16;index"`
	Content        string `gorm:"type:text"`
	Logs           string `gorm:"type:text"` // JSON array
	StructuredData string `gorm:"type:text"` // JSON object
	Errors         string `gorm:"type:text"` // JSON array
	ToolCalls      string `gorm:"type:text"` // JSON array
	TokenUsage     string `gorm:"type:text"` // JSON object

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (ActionResultPO) TableName() string { return "action_results" }

// SkillTriggerPO is a stored trigger configuration.
type SkillTriggerPO struct {
	ID              uint   `gorm:"primarykey"`
	TriggerID       string `gorm:"size:64;index:idx_triggers_uid_tid,unique"`
	UID             string `gorm:"size:64;index:idx_triggers_uid_tid,unique"`
	SkillName       string `gorm:"size:128;index"`
	Type            string `gorm:"size:16"`
	SimpleEventName string `gorm:"size:128"`
	TimerDatetime   *time.Time
	RepeatInterval  string `gorm:"size:16"`
	Input           string `gorm:"type:text"` // JSON
	Context         string `gorm:"type:text"` // JSON
	Config          string `gorm:"type:text"` // JSON
	Enabled         bool
	BoundJobID      string `gorm:"size:64"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (SkillTriggerPO) TableName() string { return "skill_triggers" }

// UsageRecordPO is one row of the token-usage accounting ledger, written
// by the usage reporter from the asynchronous usage channel.
type UsageRecordPO struct {
	ID           uint   `gorm:"primarykey"`
	UID          string `gorm:"size:64;index"`
	ResultID     string `gorm:"size:64;index"`
	SkillName    string `gorm:"size:128"`
	Tier         string `gorm:"size:16"`
	Provider     string `gorm:"size:64"`
	ModelName    string `gorm:"size:128"`
	InputTokens  int
	OutputTokens int
	Timestamp    time.Time
	CreatedAt    time.Time
}

func (UsageRecordPO) TableName() string { return "usage_records" }
