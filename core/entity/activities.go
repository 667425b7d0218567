package entity

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Activity statuses
const (
	ActivityPlanned   = "planned"
	ActivityOpen      = "open"
	ActivityClosed    = "closed"
	ActivityCompleted = "completed"
	ActivityCancelled = "cancelled"
)

type Activity struct {
	Base
	Name                 string    `json:"name" db:"name" validate:"required,notblank,max=120"`
	Category             string    `json:"category" db:"category" validate:"required,oneof=sports clubs arts academic community"`
	Description          string    `json:"description" db:"description" validate:"max=1000"`
	Date                 time.Time `json:"date" db:"date" validate:"required"`
	StartTime            time.Time `json:"start_time" db:"start_time" validate:"required"`
	EndTime              time.Time `json:"end_time" db:"end_time" validate:"required"`
	Venue                string    `json:"venue" db:"venue" validate:"max=120"`
	RegistrationDeadline time.Time `json:"registration_deadline" db:"registration_deadline" validate:"required"`
	Capacity             int       `json:"capacity" db:"capacity" validate:"min=0,max=5000"`
	CoordinatorID        string    `json:"coordinator_id" db:"coordinator_id" validate:"omitempty,uuid4"`
	Status               string    `json:"status" db:"status" validate:"required,oneof=planned open closed completed cancelled"`
}

func (Activity) Kind() Kind { return KindActivity }

// Registration statuses
const (
	RegistrationRegistered = "registered"
	RegistrationWaitlisted = "waitlisted"
	RegistrationWithdrawn  = "withdrawn"
	RegistrationAttended   = "attended"
)

type ActivityRegistration struct {
	Base
	ActivityID   string    `json:"activity_id" db:"activity_id" validate:"required,uuid4"`
	StudentID    string    `json:"student_id" db:"student_id" validate:"required,uuid4"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at" validate:"required"`
	Status       string    `json:"status" db:"status" validate:"required,oneof=registered waitlisted withdrawn attended"`
	WithdrawnAt  null.Time `json:"withdrawn_at" db:"withdrawn_at"`
}

func (ActivityRegistration) Kind() Kind { return KindActivityRegistration }

type Achievement struct {
	Base
	StudentID   string    `json:"student_id" db:"student_id" validate:"required,uuid4"`
	Title       string    `json:"title" db:"title" validate:"required,notblank,max=150"`
	Category    string    `json:"category" db:"category" validate:"required,oneof=academic sports arts leadership community"`
	Level       string    `json:"level" db:"level" validate:"required,oneof=school county regional national international"`
	Position    null.Int  `json:"position" db:"position" validate:"omitempty,min=1,max=100"`
	AwardedOn   time.Time `json:"awarded_on" db:"awarded_on" validate:"required"`
	Description string    `json:"description" db:"description" validate:"max=1000"`
}

func (Achievement) Kind() Kind { return KindAchievement }
