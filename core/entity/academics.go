package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

type Assignment struct {
	Base
	TeacherID    string    `json:"teacher_id" db:"teacher_id" validate:"required,uuid4"`
	Title        string    `json:"title" db:"title" validate:"required,notblank,max=150"`
	Description  string    `json:"description" db:"description" validate:"max=2000"`
	Subject      string    `json:"subject" db:"subject" validate:"required,max=60"`
	Form         int       `json:"form" db:"form" validate:"min=1,max=4"`
	AssignedDate time.Time `json:"assigned_date" db:"assigned_date" validate:"required"`
	DueDate      time.Time `json:"due_date" db:"due_date" validate:"required"`
	MaxScore     int       `json:"max_score" db:"max_score" validate:"min=1,max=1000"`
}

func (Assignment) Kind() Kind { return KindAssignment }

// Submission statuses
const (
	SubmissionSubmitted = "submitted"
	SubmissionLate      = "late"
	SubmissionGraded    = "graded"
	SubmissionReturned  = "returned"
)

type AssignmentSubmission struct {
	Base
	AssignmentID string    `json:"assignment_id" db:"assignment_id" validate:"required,uuid4"`
	StudentID    string    `json:"student_id" db:"student_id" validate:"required,uuid4"`
	SubmittedAt  time.Time `json:"submitted_at" db:"submitted_at" validate:"required"`
	Content      string    `json:"content" db:"content" validate:"max=5000"`
	Score        null.Int  `json:"score" db:"score" validate:"omitempty,min=0"`
	Feedback     string    `json:"feedback" db:"feedback" validate:"max=1000"`
	Status       string    `json:"status" db:"status" validate:"required,oneof=submitted late graded returned"`
}

func (AssignmentSubmission) Kind() Kind { return KindAssignmentSubmission }

type Mark struct {
	Base
	StudentID string          `json:"student_id" db:"student_id" validate:"required,uuid4"`
	ExamID    string          `json:"exam_id" db:"exam_id" validate:"required,uuid4"`
	Subject   string          `json:"subject" db:"subject" validate:"required,max=60"`
	Score     decimal.Decimal `json:"score" db:"score" validate:"gte=0"`
	MaxScore  decimal.Decimal `json:"max_score" db:"max_score" validate:"gt=0"`
	Grade     string          `json:"grade" db:"grade" validate:"max=2"`
	Remarks   string          `json:"remarks" db:"remarks" validate:"max=200"`
}

func (Mark) Kind() Kind { return KindMark }

// Percentage of the max score, rounded to the nearest integer.
func (m Mark) Percentage() int {
	if !m.MaxScore.IsPositive() {
		return 0
	}
	return int(m.Score.Mul(decimal.NewFromInt(100)).Div(m.MaxScore).Round(0).IntPart())
}

// Exam types
const (
	ExamOpener  = "opener"
	ExamCAT     = "cat"
	ExamMidterm = "midterm"
	ExamEndterm = "endterm"
	ExamMock    = "mock"
)

type Exam struct {
	Base
	Name         string    `json:"name" db:"name" validate:"required,notblank,max=100"`
	ExamType     string    `json:"exam_type" db:"exam_type" validate:"required,oneof=opener cat midterm endterm mock"`
	AcademicYear int       `json:"academic_year" db:"academic_year" validate:"min=2000,max=2100"`
	Term         int       `json:"term" db:"term" validate:"min=1,max=3"`
	Form         null.Int  `json:"form" db:"form" validate:"omitempty,min=1,max=4"`
	StartDate    time.Time `json:"start_date" db:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" db:"end_date" validate:"required"`
	MaxScore     int       `json:"max_score" db:"max_score" validate:"min=1,max=1000"`
}

func (Exam) Kind() Kind { return KindExam }

// TimetableSlot times are minutes since midnight.
type TimetableSlot struct {
	Base
	Form        int    `json:"form" db:"form" validate:"min=1,max=4"`
	Stream      string `json:"stream" db:"stream" validate:"max=20"`
	DayOfWeek   int    `json:"day_of_week" db:"day_of_week" validate:"min=1,max=7"`
	StartMinute int    `json:"start_minute" db:"start_minute" validate:"min=0,max=1439"`
	EndMinute   int    `json:"end_minute" db:"end_minute" validate:"min=1,max=1440"`
	Subject     string `json:"subject" db:"subject" validate:"required,max=60"`
	TeacherID   string `json:"teacher_id" db:"teacher_id" validate:"required,uuid4"`
	Room        string `json:"room" db:"room" validate:"max=30"`
}

func (TimetableSlot) Kind() Kind { return KindTimetableSlot }

// Attendance statuses
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
	AttendanceExcused = "excused"
)

type Attendance struct {
	Base
	StudentID   string    `json:"student_id" db:"student_id" validate:"required,uuid4"`
	Date        time.Time `json:"date" db:"date" validate:"required"`
	Status      string    `json:"status" db:"status" validate:"required,oneof=present absent late excused"`
	ArrivalTime null.Time `json:"arrival_time" db:"arrival_time"`
	Remarks     string    `json:"remarks" db:"remarks" validate:"max=200"`
	MarkedBy    string    `json:"marked_by" db:"marked_by" validate:"max=64"`
}

func (Attendance) Kind() Kind { return KindAttendance }

// DisciplinaryIssue
const (
	IssueOpen        = "open"
	IssueUnderReview = "under_review"
	IssueResolved    = "resolved"
)

type DisciplinaryIssue struct {
	Base
	StudentID    string    `json:"student_id" db:"student_id" validate:"required,uuid4"`
	ReportedBy   string    `json:"reported_by" db:"reported_by" validate:"required,max=64"`
	IncidentDate time.Time `json:"incident_date" db:"incident_date" validate:"required"`
	Category     string    `json:"category" db:"category" validate:"required,oneof=absenteeism misconduct bullying academic_dishonesty property_damage other"`
	Severity     string    `json:"severity" db:"severity" validate:"required,oneof=minor moderate major severe"`
	Description  string    `json:"description" db:"description" validate:"required,notblank,max=2000"`
	ActionTaken  string    `json:"action_taken" db:"action_taken" validate:"max=1000"`
	Status       string    `json:"status" db:"status" validate:"required,oneof=open under_review resolved"`
	ResolvedAt   null.Time `json:"resolved_at" db:"resolved_at"`
}

func (DisciplinaryIssue) Kind() Kind { return KindDisciplinaryIssue }
