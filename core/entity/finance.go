package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fees statuses, derived from the paid amount.
const (
	FeesUnpaid  = "unpaid"
	FeesPartial = "partial"
	FeesPaid    = "paid"
)

// Fees is the amount billed to a student for one term.
type Fees struct {
	Base
	StudentID    string          `json:"student_id" db:"student_id" validate:"required,uuid4"`
	AcademicYear int             `json:"academic_year" db:"academic_year" validate:"min=2000,max=2100"`
	Term         int             `json:"term" db:"term" validate:"min=1,max=3"`
	TotalFees    decimal.Decimal `json:"total_fees" db:"total_fees" validate:"gt=0"`
	PaidAmount   decimal.Decimal `json:"paid_amount" db:"paid_amount" validate:"gte=0"`
	DueDate      time.Time       `json:"due_date" db:"due_date" validate:"required"`
	Description  string          `json:"description" db:"description" validate:"max=200"`
}

func (Fees) Kind() Kind { return KindFees }

func (f Fees) Balance() decimal.Decimal {
	return f.TotalFees.Sub(f.PaidAmount)
}

func (f Fees) Status() string {
	switch {
	case !f.Balance().IsPositive():
		return FeesPaid
	case f.PaidAmount.IsPositive():
		return FeesPartial
	default:
		return FeesUnpaid
	}
}

// Payment methods
const (
	PaymentCash   = "cash"
	PaymentMpesa  = "mpesa"
	PaymentBank   = "bank"
	PaymentCheque = "cheque"
)

type FeesPayment struct {
	Base
	FeesID     string          `json:"fees_id" db:"fees_id" validate:"required,uuid4"`
	StudentID  string          `json:"student_id" db:"student_id" validate:"required,uuid4"`
	Amount     decimal.Decimal `json:"amount" db:"amount" validate:"gt=0"`
	Method     string          `json:"method" db:"method" validate:"required,oneof=cash mpesa bank cheque"`
	Reference  string          `json:"reference" db:"reference" validate:"max=40"`
	PaidAt     time.Time       `json:"paid_at" db:"paid_at" validate:"required"`
	ReceivedBy string          `json:"received_by" db:"received_by" validate:"max=64"`
}

func (FeesPayment) Kind() Kind { return KindFeesPayment }
