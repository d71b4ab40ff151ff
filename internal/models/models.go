package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StatementLine is one line from an uploaded bank or credit-card statement
type StatementLine struct {
	ID          string          `json:"id,omitempty"`
	PostedDate  time.Time       `json:"posted_date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// NewStatementLine creates a new statement line
func NewStatementLine(id string, amount decimal.Decimal, postedDate time.Time, description string) *StatementLine {
	return &StatementLine{
		ID:          id,
		PostedDate:  postedDate,
		Amount:      amount,
		Description: description,
	}
}

// Validate checks that the line carries a posting date
func (s *StatementLine) Validate() error {
	if s.PostedDate.IsZero() {
		return fmt.Errorf("posted date cannot be zero")
	}
	return nil
}

func (s *StatementLine) String() string {
	return fmt.Sprintf("StatementLine{ID: %s, Amount: %s, PostedDate: %s, Description: %q}",
		s.ID, s.Amount.StringFixed(2), s.PostedDate.Format(DateLayout), s.Description)
}

// AccountingTransaction is a transaction pulled from the accounting platform
// for the matching period
type AccountingTransaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// NewAccountingTransaction creates a new accounting transaction
func NewAccountingTransaction(id string, amount decimal.Decimal, date time.Time, description string) *AccountingTransaction {
	return &AccountingTransaction{
		ID:          id,
		Date:        date,
		Amount:      amount,
		Description: description,
	}
}

// Validate checks that the transaction can be referenced by a match
func (t *AccountingTransaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}
	return nil
}

func (t *AccountingTransaction) String() string {
	return fmt.Sprintf("AccountingTransaction{ID: %s, Amount: %s, Date: %s, Description: %q}",
		t.ID, t.Amount.StringFixed(2), t.Date.Format(DateLayout), t.Description)
}

// MatchStatus is the terminal state of a statement line after one matching pass
type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusAmbiguous MatchStatus = "ambiguous"
	MatchStatusUnmatched MatchStatus = "unmatched"
)

func (s MatchStatus) String() string {
	return string(s)
}

// DateLayout is the canonical date rendering used in output and storage
const DateLayout = "2006-01-02"

// ParseTimeWithFormats attempts to parse time from string using multiple common formats
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		DateLayout,
		"01/02/2006 15:04:05",
		"01/02/2006",
		"1/2/2006",
		"2006/01/02",
		"02-Jan-2006",
		"Jan 2, 2006",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s' with any supported format", s)
}

// DateOnly truncates t to its calendar date in UTC, keeping the wall-clock
// date it was recorded with.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of whole calendar days between a and b
func DaysBetween(a, b time.Time) int {
	diff := DateOnly(a).Sub(DateOnly(b))
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}
