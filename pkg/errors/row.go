package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RowContext locates a problem inside a delimited input file
type RowContext struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   string `json:"column"`
	Value    string `json:"value"`
	Expected string `json:"expected,omitempty"`
}

// RowError is a recoverable per-row parse failure. Loaders collect these and
// skip the row instead of aborting the whole file.
type RowError struct {
	*AppError
	Row         *RowContext `json:"row"`
	Recoverable bool        `json:"recoverable"`
	Examples    []string    `json:"examples,omitempty"`
}

func (e *RowError) Error() string {
	msg := e.AppError.Error()
	if e.Row == nil {
		return msg
	}
	location := fmt.Sprintf("at %s", filepath.Base(e.Row.File))
	if e.Row.Line > 0 {
		location += fmt.Sprintf(":%d", e.Row.Line)
	}
	if e.Row.Column != "" {
		location += fmt.Sprintf(" column '%s'", e.Row.Column)
	}
	return msg + " " + location
}

// Unwrap exposes the embedded AppError so AsAppError finds row errors
func (e *RowError) Unwrap() error {
	return e.AppError
}

// Detailed renders a multi-line description for console output
func (e *RowError) Detailed() string {
	lines := []string{fmt.Sprintf("ERROR: %s", e.Message)}
	if e.Row != nil {
		lines = append(lines, fmt.Sprintf("  File: %s", e.Row.File))
		if e.Row.Line > 0 {
			lines = append(lines, fmt.Sprintf("  Line: %d", e.Row.Line))
		}
		if e.Row.Column != "" {
			lines = append(lines, fmt.Sprintf("  Column: %s", e.Row.Column))
		}
		if e.Row.Value != "" {
			lines = append(lines, fmt.Sprintf("  Value: '%s'", e.Row.Value))
		}
		if e.Row.Expected != "" {
			lines = append(lines, fmt.Sprintf("  Expected: %s", e.Row.Expected))
		}
	}
	if e.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  Suggestion: %s", e.Suggestion))
	}
	if len(e.Examples) > 0 {
		lines = append(lines, "  Examples: "+strings.Join(e.Examples, ", "))
	}
	return strings.Join(lines, "\n")
}

func newRowError(code ErrorCode, row *RowContext, message string) *RowError {
	base := New(CategoryParse, code, message).
		WithContext("file", row.File).
		WithContext("line", row.Line).
		WithContext("column", row.Column).
		WithContext("value", row.Value)
	return &RowError{AppError: base, Row: row, Recoverable: true}
}

// InvalidAmountError reports a cell that does not parse to a number
func InvalidAmountError(file string, line int, column, value string) *RowError {
	err := newRowError(CodeInvalidAmount, &RowContext{
		File: file, Line: line, Column: column, Value: value, Expected: "number",
	}, "invalid amount format")
	err.Suggestion = "use a plain or accounting-formatted number"
	err.Examples = []string{"12.34", "$1,250.50", "(500.00)"}
	return err
}

// InvalidDateError reports a cell that does not parse to a date
func InvalidDateError(file string, line int, column, value string) *RowError {
	err := newRowError(CodeInvalidDate, &RowContext{
		File: file, Line: line, Column: column, Value: value, Expected: "date",
	}, "invalid date format")
	err.Suggestion = "use YYYY-MM-DD or MM/DD/YYYY"
	err.Examples = []string{"2025-03-10", "03/10/2025"}
	return err
}

// EmptyValueError reports a required cell that is blank
func EmptyValueError(file string, line int, column string) *RowError {
	err := newRowError(CodeMissingField, &RowContext{
		File: file, Line: line, Column: column, Expected: "non-empty value",
	}, "required field is empty")
	err.Suggestion = "provide a value for this required field"
	return err
}

// MissingColumnError reports header columns that could not be resolved.
// It is not recoverable: no row of the file can be read.
func MissingColumnError(file string, missing []string) *RowError {
	err := newRowError(CodeMissingColumn, &RowContext{
		File: file, Line: 1, Expected: "columns: " + strings.Join(missing, ", "),
	}, fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	err.Suggestion = "add the missing columns to the CSV header"
	err.Recoverable = false
	return err
}
