package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseTimeWithFormats(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2025-03-10", "2025-03-10", false},
		{"03/10/2025", "2025-03-10", false},
		{"3/9/2025", "2025-03-09", false},
		{"2025-03-10T08:30:00Z", "2025-03-10", false},
		{"10-Mar-2025", "2025-03-10", false},
		{"", "", true},
		{"yesterday", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeWithFormats(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeWithFormats(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.Format(DateLayout) != tt.want {
				t.Errorf("ParseTimeWithFormats(%q) = %s, want %s", tt.input, got.Format(DateLayout), tt.want)
			}
		})
	}
}

func TestDaysBetween(t *testing.T) {
	base := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		other time.Time
		want  int
	}{
		{"same day different hour", time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC), 0},
		{"three days later", time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC), 3},
		{"five days earlier", time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(base, tt.other); got != tt.want {
				t.Errorf("DaysBetween() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"valid", Rule{ID: "uncategorized_expenses", Severity: SeverityHigh}, false},
		{"empty severity allowed", Rule{ID: "r1"}, false},
		{"missing id", Rule{Name: "x"}, true},
		{"bad severity", Rule{ID: "r1", Severity: "critical"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRuleHasOwner(t *testing.T) {
	if (&Rule{ID: "a"}).HasOwner() {
		t.Error("rule without owner fields should not have an owner")
	}
	if !(&Rule{ID: "a", OwnerEmail: "cfo@example.com"}).HasOwner() {
		t.Error("rule with an owner email should have an owner")
	}
	if (&Rule{ID: "a", OwnerName: "   "}).HasOwner() {
		t.Error("whitespace owner name should not count")
	}
}

func TestSeverityOrDefault(t *testing.T) {
	if got := Severity("").OrDefault(); got != SeverityMedium {
		t.Errorf("empty severity default = %s, want medium", got)
	}
	if got := SeverityHigh.OrDefault(); got != SeverityHigh {
		t.Errorf("high severity default = %s, want high", got)
	}
}

func TestAccountOwnerValidate(t *testing.T) {
	tests := []struct {
		name    string
		owner   AccountOwner
		wantErr bool
	}{
		{"by name", AccountOwner{AccountType: AccountTypePnL, AccountNameContains: "Income", OwnerEmail: "a@example.com"}, false},
		{"by number", AccountOwner{AccountType: AccountTypeTrialBalance, AccountNumber: "4000", OwnerName: "Ann"}, false},
		{"bad type", AccountOwner{AccountType: "gl", AccountNumber: "4000", OwnerName: "Ann"}, true},
		{"no selector", AccountOwner{AccountType: AccountTypeBalanceSheet, OwnerName: "Ann"}, true},
		{"no owner", AccountOwner{AccountType: AccountTypePnL, AccountNumber: "4000"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.owner.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFindingApplyOwner(t *testing.T) {
	var f Finding
	f.ApplyOwner(OwnerAssignment{})
	if f.OwnerSource != OwnerSourceNone {
		t.Errorf("empty assignment should map to none, got %s", f.OwnerSource)
	}

	f.ApplyOwner(OwnerAssignment{OwnerName: "Ann", OwnerEmail: "ann@example.com", Source: OwnerSourceAccount})
	if f.OwnerName != "Ann" || f.OwnerSource != OwnerSourceAccount {
		t.Errorf("unexpected owner fields: %+v", f)
	}
}

func TestStatementAndTransactionValidate(t *testing.T) {
	line := NewStatementLine("", decimal.RequireFromString("-45.00"), time.Time{}, "ACH")
	if err := line.Validate(); err == nil {
		t.Error("expected error for zero posted date")
	}

	txn := NewAccountingTransaction("", decimal.RequireFromString("45"), time.Now(), "Acme")
	if err := txn.Validate(); err == nil {
		t.Error("expected error for empty transaction id")
	}
	txn.ID = "T1"
	if err := txn.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
