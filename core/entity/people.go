package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// User is a login account. Role-specific data lives in a linked profile.
type User struct {
	Base
	Name         string      `json:"name" db:"name" validate:"required,notblank,max=120"`
	Username     string      `json:"username" db:"username" validate:"required,min=4,max=50,alphanum_"`
	Email        string      `json:"email" db:"email" validate:"required,email,max=254"`
	Phone        null.String `json:"phone" db:"phone" validate:"omitempty,phone"`
	Roles        StringList  `json:"roles" db:"roles" validate:"required,min=1,dive,role"`
	PasswordHash string      `json:"-" db:"password_hash" validate:"required"`
	IsActive     bool        `json:"is_active" db:"is_active"`
	LastLogin    null.Time   `json:"last_login" db:"last_login"`
}

func (User) Kind() Kind { return KindUser }

// Student
const (
	StudentActive      = "active"
	StudentSuspended   = "suspended"
	StudentGraduated   = "graduated"
	StudentTransferred = "transferred"
)

type Student struct {
	Base
	UserID          string      `json:"user_id" db:"user_id" validate:"required,uuid4"`
	AdmissionNumber string      `json:"admission_number" db:"admission_number" validate:"required,alphanum,max=20"`
	FirstName       string      `json:"first_name" db:"first_name" validate:"required,notblank,max=60"`
	LastName        string      `json:"last_name" db:"last_name" validate:"required,notblank,max=60"`
	Gender          string      `json:"gender" db:"gender" validate:"required,oneof=male female other"`
	DateOfBirth     time.Time   `json:"date_of_birth" db:"date_of_birth" validate:"required"`
	Form            int         `json:"form" db:"form" validate:"min=1,max=4"`
	Stream          string      `json:"stream" db:"stream" validate:"max=20"`
	GuardianName    string      `json:"guardian_name" db:"guardian_name" validate:"required,notblank,max=120"`
	GuardianPhone   null.String `json:"guardian_phone" db:"guardian_phone" validate:"omitempty,phone"`
	AdmissionDate   time.Time   `json:"admission_date" db:"admission_date" validate:"required"`
	Status          string      `json:"status" db:"status" validate:"required,oneof=active suspended graduated transferred"`
}

func (Student) Kind() Kind              { return KindStudent }
func (s *Student) SetUserID(id string) { s.UserID = id }

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Teacher
const (
	TeacherActive  = "active"
	TeacherOnLeave = "on_leave"
	TeacherRetired = "retired"
)

type Teacher struct {
	Base
	UserID         string      `json:"user_id" db:"user_id" validate:"required,uuid4"`
	EmployeeNumber string      `json:"employee_number" db:"employee_number" validate:"required,alphanum,max=20"`
	FirstName      string      `json:"first_name" db:"first_name" validate:"required,notblank,max=60"`
	LastName       string      `json:"last_name" db:"last_name" validate:"required,notblank,max=60"`
	Subjects       StringList  `json:"subjects" db:"subjects" validate:"required,min=1,max=6,dive,notblank"`
	Phone          null.String `json:"phone" db:"phone" validate:"omitempty,phone"`
	Qualification  string      `json:"qualification" db:"qualification" validate:"max=120"`
	HireDate       time.Time   `json:"hire_date" db:"hire_date" validate:"required"`
	IsClassTeacher bool        `json:"is_class_teacher" db:"is_class_teacher"`
	ClassForm      null.Int    `json:"class_form" db:"class_form" validate:"omitempty,min=1,max=4"`
	Status         string      `json:"status" db:"status" validate:"required,oneof=active on_leave retired"`
}

func (Teacher) Kind() Kind              { return KindTeacher }
func (t *Teacher) SetUserID(id string) { t.UserID = id }

func (t Teacher) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// Staff positions
const (
	PositionDirector      = "director"
	PositionPrincipal     = "principal"
	PositionDeputy        = "deputy_principal"
	PositionAdministrator = "administrator"
	PositionBursar        = "bursar"
	PositionLibrarian     = "librarian"
	PositionSecretary     = "secretary"
)

type Staff struct {
	Base
	UserID        string          `json:"user_id" db:"user_id" validate:"required,uuid4"`
	StaffNumber   string          `json:"staff_number" db:"staff_number" validate:"required,alphanum,max=20"`
	FirstName     string          `json:"first_name" db:"first_name" validate:"required,notblank,max=60"`
	LastName      string          `json:"last_name" db:"last_name" validate:"required,notblank,max=60"`
	Position      string          `json:"position" db:"position" validate:"required,oneof=director principal deputy_principal administrator bursar librarian secretary"`
	Department    string          `json:"department" db:"department" validate:"max=60"`
	Phone         null.String     `json:"phone" db:"phone" validate:"omitempty,phone"`
	Salary        decimal.Decimal `json:"salary" db:"salary" validate:"gte=0"`
	HireDate      time.Time       `json:"hire_date" db:"hire_date" validate:"required"`
	ContractEnd   null.Time       `json:"contract_end" db:"contract_end"`
}

func (Staff) Kind() Kind              { return KindStaff }
func (s *Staff) SetUserID(id string) { s.UserID = id }
