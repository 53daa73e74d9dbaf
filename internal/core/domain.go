package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly  Pattern = "weekly"
	Monthly Pattern = "monthly"
	Yearly  Pattern = "yearly"
)

const (
	AccountChecking   AccountKind = "checking"
	AccountSavings    AccountKind = "savings"
	AccountCreditCard AccountKind = "credit_card"
)

type (
	// Pattern is the repetition frequency of a recurring transaction.
	// The empty string is treated as Monthly wherever a pattern is consumed.
	Pattern string

	AccountKind string

	Date struct {
		time.Time
	}

	// Money is a signed amount in cents. Income is positive; expenses and
	// outgoing transfers are negative.
	Money struct {
		Cents int64
	}

	Account struct {
		ID       int64
		Name     string
		Kind     AccountKind
		Currency string
	}

	Transaction struct {
		ID          int64
		AccountID   int64
		Date        Date
		Description string
		Amount      Money
		Category    string
		// RecurringID links an instance back to the template that generated
		// it. Nil marks discretionary (variable) flow.
		RecurringID *int64
	}

	Budget struct {
		ID       int64
		Category string
		Year     int
		Month    int // 1-12
		Limit    Money
	}

	RecurringTransaction struct {
		ID          int64
		AccountID   int64
		Description string
		Amount      Money
		Category    string
		Every       Pattern
		// FixedDay pins the day-of-week (1-7), day-of-month (1-31) or
		// day-of-year used for every occurrence. Zero means "carry the day
		// of the anchor date". Callers must always pass the template's
		// original FixedDay, never a previous instance's derived day, so a
		// clamped occurrence (Jan 31 -> Feb 28) re-expands on the next
		// long-enough month (-> Mar 31).
		FixedDay  int
		StartDate Date
		EndDate   Date // zero value means no end
		NextDate  Date
		Active    bool
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidPattern   = errors.New("invalid repetition pattern")
	ErrInvalidFixedDay  = errors.New("fixed day out of range for pattern")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
)

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as an int.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

// IsEmpty reports whether the date is unset (used for optional end dates).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (p Pattern) Valid() bool {
	switch p {
	case Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// OrDefault resolves the empty pattern to Monthly.
func (p Pattern) OrDefault() Pattern {
	if p == "" {
		return Monthly
	}
	return p
}

// MaxFixedDay returns the upper bound for FixedDay under this pattern.
func (p Pattern) MaxFixedDay() int {
	switch p.OrDefault() {
	case Weekly:
		return 7
	case Yearly:
		return 366
	default:
		return 31
	}
}

func (m Money) Validate() error {
	if m.Cents == 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (b Budget) Validate() error {
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Limit.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (rt RecurringTransaction) Validate() error {
	if err := rt.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}

	if !rt.EndDate.IsEmpty() {
		if err := rt.EndDate.Validate(); err != nil {
			return errors.New("invalid end date: " + err.Error())
		}
		if rt.EndDate.Before(rt.StartDate.Time) {
			return errors.New("end date must be after start date")
		}
	}

	if !rt.Every.OrDefault().Valid() {
		return ErrInvalidPattern
	}

	if rt.FixedDay < 0 || rt.FixedDay > rt.Every.MaxFixedDay() {
		return ErrInvalidFixedDay
	}

	if len(strings.TrimSpace(rt.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(rt.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}

	if err := rt.Amount.Validate(); err != nil {
		return err
	}

	if strings.TrimSpace(rt.Category) == "" {
		return ErrEmptyCategory
	}

	return nil
}
