package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateIsEmpty(t *testing.T) {
	if !(Date{}).IsEmpty() {
		t.Error("zero date should be empty")
	}
	if NewDate(2025, 6, 1).IsEmpty() {
		t.Error("set date should not be empty")
	}
}

func TestPatternOrDefault(t *testing.T) {
	if got := Pattern("").OrDefault(); got != Monthly {
		t.Fatalf("empty pattern expected Monthly, got %q", got)
	}
	if got := Weekly.OrDefault(); got != Weekly {
		t.Fatalf("expected Weekly, got %q", got)
	}
}

func TestPatternMaxFixedDay(t *testing.T) {
	cases := []struct {
		p   Pattern
		max int
	}{
		{Weekly, 7},
		{Monthly, 31},
		{Yearly, 366},
		{Pattern(""), 31}, // defaults to monthly
	}
	for _, tc := range cases {
		if got := tc.p.MaxFixedDay(); got != tc.max {
			t.Fatalf("%q expected max %d, got %d", tc.p, tc.max, got)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		AccountID:   1,
		Date:        NewDate(2025, 1, 1),
		Description: "groceries",
		Amount:      Money{Cents: -4200},
		Category:    "Food",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		tx   Transaction
		want error
	}{
		{"zero date", Transaction{Description: "a", Amount: Money{Cents: 1}, Category: "c"}, nil},
		{"empty description", Transaction{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Category: "c"}, ErrEmptyDescription},
		{"long description", Transaction{Date: NewDate(2025, 1, 1), Description: strings.Repeat("x", 201), Amount: Money{Cents: 1}, Category: "c"}, nil},
		{"zero amount", Transaction{Date: NewDate(2025, 1, 1), Description: "a", Category: "c"}, ErrInvalidAmount},
		{"empty category", Transaction{Date: NewDate(2025, 1, 1), Description: "a", Amount: Money{Cents: 1}}, ErrEmptyCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tx.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{Category: "Food", Year: 2025, Month: 3, Limit: Money{Cents: 50000}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		b    Budget
		want error
	}{
		{"month zero", Budget{Category: "c", Month: 0, Limit: Money{Cents: 1}}, ErrInvalidMonth},
		{"month thirteen", Budget{Category: "c", Month: 13, Limit: Money{Cents: 1}}, ErrInvalidMonth},
		{"empty category", Budget{Month: 1, Limit: Money{Cents: 1}}, ErrEmptyCategory},
		{"zero limit", Budget{Category: "c", Month: 1}, ErrInvalidAmount},
		{"negative limit", Budget{Category: "c", Month: 1, Limit: Money{Cents: -100}}, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.b.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRecurringTransactionValidate(t *testing.T) {
	good := RecurringTransaction{
		AccountID:   1,
		Description: "rent",
		Amount:      Money{Cents: -90000},
		Category:    "Housing",
		Every:       Monthly,
		FixedDay:    1,
		StartDate:   NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	// Empty pattern falls back to monthly
	noPattern := good
	noPattern.Every = ""
	if err := noPattern.Validate(); err != nil {
		t.Fatalf("empty pattern expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*RecurringTransaction)
		want   error
	}{
		{"zero start", func(rt *RecurringTransaction) { rt.StartDate = Date{} }, nil},
		{"end before start", func(rt *RecurringTransaction) { rt.EndDate = NewDate(2024, 12, 31) }, nil},
		{"bad pattern", func(rt *RecurringTransaction) { rt.Every = "fortnightly" }, ErrInvalidPattern},
		{"weekly day eight", func(rt *RecurringTransaction) { rt.Every = Weekly; rt.FixedDay = 8 }, ErrInvalidFixedDay},
		{"monthly day 32", func(rt *RecurringTransaction) { rt.FixedDay = 32 }, ErrInvalidFixedDay},
		{"negative fixed day", func(rt *RecurringTransaction) { rt.FixedDay = -1 }, ErrInvalidFixedDay},
		{"empty description", func(rt *RecurringTransaction) { rt.Description = " " }, ErrEmptyDescription},
		{"zero amount", func(rt *RecurringTransaction) { rt.Amount = Money{} }, ErrInvalidAmount},
		{"empty category", func(rt *RecurringTransaction) { rt.Category = "" }, ErrEmptyCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt := good
			tc.mutate(&rt)
			err := rt.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
