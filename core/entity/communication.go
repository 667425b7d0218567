package entity

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Announcement audiences
const (
	AudienceAll      = "all"
	AudienceStudents = "students"
	AudienceTeachers = "teachers"
	AudienceStaff    = "staff"
	AudienceParents  = "parents"
)

// Announcement priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Announcement struct {
	Base
	Title     string    `json:"title" db:"title" validate:"required,notblank,max=150"`
	Body      string    `json:"body" db:"body" validate:"required,notblank,max=5000"`
	Audience  string    `json:"audience" db:"audience" validate:"required,oneof=all students teachers staff parents"`
	Priority  string    `json:"priority" db:"priority" validate:"required,oneof=low normal high urgent"`
	PublishAt time.Time `json:"publish_at" db:"publish_at" validate:"required"`
	ExpiresAt null.Time `json:"expires_at" db:"expires_at"`
	IsPinned  bool      `json:"is_pinned" db:"is_pinned"`
	AuthorID  string    `json:"author_id" db:"author_id" validate:"omitempty,uuid4"`
}

func (Announcement) Kind() Kind { return KindAnnouncement }

// Setting value types
const (
	SettingString = "string"
	SettingInt    = "int"
	SettingBool   = "bool"
	SettingJSON   = "json"
)

type AppSetting struct {
	Base
	Key         string `json:"key" db:"setting_key" validate:"required,max=100,settingkey"`
	Value       string `json:"value" db:"value" validate:"max=2000"`
	ValueType   string `json:"value_type" db:"value_type" validate:"required,oneof=string int bool json"`
	Description string `json:"description" db:"description" validate:"max=300"`
}

func (AppSetting) Kind() Kind { return KindAppSetting }

// Audit actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionLogin  = "login"
	ActionLogout = "logout"
	ActionSeed   = "seed"
	ActionReset  = "reset"
)

type AuditLogEntry struct {
	Base
	ActorID    string    `json:"actor_id" db:"actor_id" validate:"required,max=64"`
	Action     string    `json:"action" db:"action" validate:"required,oneof=create update delete login logout seed reset"`
	EntityKind string    `json:"entity_kind" db:"entity_kind" validate:"required,max=40"`
	EntityID   string    `json:"entity_id" db:"entity_id" validate:"max=64"`
	Details    string    `json:"details" db:"details" validate:"max=4000"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at" validate:"required"`
}

func (AuditLogEntry) Kind() Kind { return KindAuditLogEntry }
