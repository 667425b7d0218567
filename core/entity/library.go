package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

type LibraryBook struct {
	Base
	ISBN            string `json:"isbn" db:"isbn" validate:"omitempty,isbn"`
	Title           string `json:"title" db:"title" validate:"required,notblank,max=200"`
	Author          string `json:"author" db:"author" validate:"required,notblank,max=120"`
	Publisher       string `json:"publisher" db:"publisher" validate:"max=120"`
	Category        string `json:"category" db:"category" validate:"required,max=60"`
	PublishedYear   int    `json:"published_year" db:"published_year" validate:"omitempty,min=1450,max=2100"`
	TotalCopies     int    `json:"total_copies" db:"total_copies" validate:"min=0,max=10000"`
	AvailableCopies int    `json:"available_copies" db:"available_copies" validate:"min=0"`
	DamagedCopies   int    `json:"damaged_copies" db:"damaged_copies" validate:"min=0"`
	LostCopies      int    `json:"lost_copies" db:"lost_copies" validate:"min=0"`
	ShelfLocation   string `json:"shelf_location" db:"shelf_location" validate:"max=30"`
}

func (LibraryBook) Kind() Kind { return KindLibraryBook }

// OnShelf reports whether at least one copy can be issued.
func (b LibraryBook) OnShelf() bool {
	return b.AvailableCopies > 0
}

// Copies currently issued to readers.
func (b LibraryBook) IssuedCopies() int {
	return b.TotalCopies - b.AvailableCopies - b.DamagedCopies - b.LostCopies
}

// Book issue statuses
const (
	BookIssued   = "issued"
	BookReturned = "returned"
	BookOverdue  = "overdue"
	BookLost     = "lost"
)

type BookIssue struct {
	Base
	BookID     string          `json:"book_id" db:"book_id" validate:"required,uuid4"`
	StudentID  string          `json:"student_id" db:"student_id" validate:"required,uuid4"`
	IssuedAt   time.Time       `json:"issued_at" db:"issued_at" validate:"required"`
	DueDate    time.Time       `json:"due_date" db:"due_date" validate:"required"`
	ReturnedAt null.Time       `json:"returned_at" db:"returned_at"`
	Status     string          `json:"status" db:"status" validate:"required,oneof=issued returned overdue lost"`
	FineAmount decimal.Decimal `json:"fine_amount" db:"fine_amount" validate:"gte=0"`
}

func (BookIssue) Kind() Kind { return KindBookIssue }
