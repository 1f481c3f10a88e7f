package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const (
	// MaxTerm is the maximum borrowing duration in days.
	MaxTerm = 14
	// FineMultiplier is applied to the per-day fee for overdue returns.
	FineMultiplier = 2
)

type Cover string

const (
	CoverHard Cover = "HARD"
	CoverSoft Cover = "SOFT"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

type PaymentType string

const (
	PaymentTypePayment PaymentType = "PAYMENT"
	PaymentTypeFine    PaymentType = "FINE"
)

type Book struct {
	ID        int     `json:"id" db:"id"`
	Title     string  `json:"title" db:"title"`
	Author    string  `json:"author" db:"author"`
	Cover     Cover   `json:"cover" db:"cover"`
	Inventory int     `json:"inventory" db:"inventory"`
	DailyFee  float64 `json:"dailyFee" db:"daily_fee"`
}

type Borrowing struct {
	ID                 int    `json:"id" db:"id"`
	BorrowDate         Date   `json:"borrowDate" db:"borrow_date"`
	ExpectedReturnDate Date   `json:"expectedReturnDate" db:"expected_return_date"`
	ActualReturnDate   *Date  `json:"actualReturnDate" db:"actual_return_date"`
	UserID             int    `json:"userId" db:"user_id"`
	UserEmail          string `json:"userEmail" db:"user_email"`
	BookID             int    `json:"bookId" db:"book_id"`
}

// Active reports whether the borrowing has not been returned yet.
func (b Borrowing) Active() bool {
	return b.ActualReturnDate == nil
}

type Payment struct {
	ID          int           `json:"id" db:"id"`
	Status      PaymentStatus `json:"status" db:"status"`
	Type        PaymentType   `json:"type" db:"type"`
	BorrowingID int           `json:"borrowingId" db:"borrowing_id"`
	SessionURL  string        `json:"sessionUrl" db:"session_url"`
	SessionID   string        `json:"sessionId" db:"session_id"`
	MoneyToPay  float64       `json:"moneyToPay" db:"money_to_pay"`
}

// Date marshals as yyyy-mm-dd.
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(time.DateOnly) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = v
		return nil
	case string:
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return err
		}
		d.Time = t
		return nil
	case nil:
		return nil
	}
	return fmt.Errorf("cannot scan %T into Date", src)
}

func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

type CreateBookRequest struct {
	Title     string  `json:"title" validate:"required,max=63"`
	Author    string  `json:"author" validate:"required,max=63"`
	Cover     Cover   `json:"cover" validate:"required,oneof=HARD SOFT"`
	Inventory int     `json:"inventory" validate:"gte=0"`
	DailyFee  float64 `json:"dailyFee" validate:"gte=0"`
}

type UpdateBookRequest struct {
	Title     *string  `json:"title" validate:"omitempty,max=63"`
	Author    *string  `json:"author" validate:"omitempty,max=63"`
	Cover     *Cover   `json:"cover" validate:"omitempty,oneof=HARD SOFT"`
	Inventory *int     `json:"inventory" validate:"omitempty,gte=0"`
	DailyFee  *float64 `json:"dailyFee" validate:"omitempty,gte=0"`
}

type CreateBorrowingRequest struct {
	BookID int `json:"bookId" validate:"required,gt=0"`
}

type ReturnBorrowingRequest struct {
	ActualReturnDate Date `json:"actualReturnDate" validate:"required"`
}

type CreateBorrowingResponse struct {
	Borrowing  Borrowing `json:"borrowing"`
	SessionURL string    `json:"sessionUrl"`
	MoneyToPay float64   `json:"moneyToPay"`
}

type ReturnBorrowingResponse struct {
	Borrowing Borrowing `json:"borrowing"`
	Fine      *Payment  `json:"fine,omitempty"`
}

// BorrowingFilter scopes borrowing listings. UserID is honored for staff
// callers only, the serving layer pins it to the caller otherwise.
type BorrowingFilter struct {
	UserID   *int
	IsActive *bool
}

type SuccessPaymentResponse struct {
	Message string  `json:"message"`
	Payment Payment `json:"payment"`
}

// OverdueBorrowing is what the scheduled sweep reads to compose
// overdue notifications.
type OverdueBorrowing struct {
	BorrowingID        int    `db:"id"`
	UserEmail          string `db:"user_email"`
	BookTitle          string `db:"title"`
	ExpectedReturnDate Date   `db:"expected_return_date"`
}
