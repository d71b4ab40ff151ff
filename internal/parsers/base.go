// Package parsers loads the engine's inputs from files: statement and
// transaction CSV exports, report JSON snapshots and rule set documents.
//
// CSV loading tolerates real-world exports. Header names are matched
// case-insensitively against a list of aliases, amounts may carry currency
// symbols, thousands separators or accounting parentheses, and dates may use
// any of the common layouts. A row that fails to parse is recorded in
// ParseStats and skipped; only unreadable files or missing columns abort.
//
// Example usage:
//
//	parser := parsers.NewStatementParser(nil)
//	lines, stats, err := parser.ParseFile(ctx, "statement.csv")
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

// ParseConfig holds configuration for CSV parsing
type ParseConfig struct {
	Delimiter        rune `json:"delimiter" mapstructure:"delimiter"`
	Comment          rune `json:"comment" mapstructure:"comment"`
	TrimLeadingSpace bool `json:"trim_leading_space" mapstructure:"trim_leading_space"`
	SkipEmptyRows    bool `json:"skip_empty_rows" mapstructure:"skip_empty_rows"`
	ValidateEncoding bool `json:"validate_encoding" mapstructure:"validate_encoding"`
	// MaxErrors aborts the file once this many rows failed; zero means no limit.
	MaxErrors int `json:"max_errors" mapstructure:"max_errors"`
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}
}

// Validate checks the configuration
func (c *ParseConfig) Validate() error {
	if c.Delimiter == 0 || c.Delimiter == '\n' || c.Delimiter == '\r' || c.Delimiter == '"' {
		return fmt.Errorf("invalid delimiter %q", c.Delimiter)
	}
	if c.Comment == c.Delimiter {
		return fmt.Errorf("comment character cannot equal the delimiter")
	}
	if c.MaxErrors < 0 {
		return fmt.Errorf("max errors cannot be negative: %d", c.MaxErrors)
	}
	return nil
}

// Clone returns a copy of the configuration
func (c *ParseConfig) Clone() *ParseConfig {
	clone := *c
	return &clone
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	File        string                `json:"file"`
	TotalRows   int                   `json:"total_rows"`
	ParsedRows  int                   `json:"parsed_rows"`
	SkippedRows int                   `json:"skipped_rows"`
	Errors      []*apperrors.RowError `json:"errors,omitempty"`
	Duration    time.Duration         `json:"duration"`
}

// HasErrors returns true if any row failed to parse
func (ps *ParseStats) HasErrors() bool {
	return len(ps.Errors) > 0
}

// SampleErrors returns up to max error messages for logging
func (ps *ParseStats) SampleErrors(max int) []string {
	n := len(ps.Errors)
	if max > 0 && max < n {
		n = max
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = ps.Errors[i].Error()
	}
	return out
}

func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d of %d rows, %d skipped, %d errors",
		ps.ParsedRows, ps.TotalRows, ps.SkippedRows, len(ps.Errors))
}

// column describes one logical field and the header names accepted for it
type column struct {
	name     string
	aliases  []string
	required bool
}

// row is one data record with its resolved column positions
type row struct {
	file    string
	line    int
	index   int
	record  []string
	columns map[string]int
}

// get returns the trimmed value of a logical column, or "" when absent
func (r *row) get(name string) string {
	i, ok := r.columns[name]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

// csvParser is the shared read loop behind the statement and transaction parsers
type csvParser struct {
	config  *ParseConfig
	columns []column
	logger  logger.Logger
}

func newCSVParser(config *ParseConfig, columns []column, component string) *csvParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	return &csvParser{
		config:  config,
		columns: columns,
		logger:  logger.GetGlobalLogger().WithComponent(component),
	}
}

// parseFile opens path and feeds each data row to fn
func (p *csvParser) parseFile(ctx context.Context, path string, fn func(*row) *apperrors.RowError) (*ParseStats, error) {
	file, err := openInput(path)
	if err != nil {
		p.logger.WithError(err).WithField("file_path", path).Error("Failed to open CSV file")
		return nil, err
	}
	defer file.Close()

	return p.parse(ctx, file, path, fn)
}

// parse reads CSV from r. name identifies the source in errors.
func (p *csvParser) parse(ctx context.Context, r io.Reader, name string, fn func(*row) *apperrors.RowError) (*ParseStats, error) {
	if err := p.config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "parser", p.config, err)
	}

	start := time.Now()
	stats := &ParseStats{File: name}

	if p.config.ValidateEncoding {
		buffered := bufio.NewReader(r)
		r = &utf8Checker{r: buffered}
	}

	reader := csv.NewReader(r)
	reader.Comma = p.config.Delimiter
	reader.Comment = p.config.Comment
	reader.TrimLeadingSpace = p.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.ValidationError(apperrors.CodeMissingField, "file_content", "empty", nil).
				WithSuggestion("Ensure the file contains a header row and data rows")
		}
		return nil, p.readError(name, 1, err)
	}

	columns, rowErr := p.resolveColumns(name, header)
	if rowErr != nil {
		p.logger.WithFields(logger.Fields{"file": name, "headers": header}).Error("Required columns are missing")
		return nil, rowErr
	}

	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryParse, apperrors.CodeProcessingError,
				fmt.Sprintf("parsing %s interrupted", name))
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, p.readError(name, line, err)
		}
		line, _ = reader.FieldPos(0)
		if p.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}

		stats.TotalRows++
		if rowErr := fn(&row{file: name, line: line, index: stats.TotalRows, record: record, columns: columns}); rowErr != nil {
			stats.SkippedRows++
			stats.Errors = append(stats.Errors, rowErr)
			p.logger.WithFields(logger.Fields{"file": name, "line": line}).Debug(rowErr.Error())

			if p.config.MaxErrors > 0 && len(stats.Errors) >= p.config.MaxErrors {
				summary := apperrors.NewErrorSummary(toAppErrors(stats.Errors))
				return nil, apperrors.New(apperrors.CategoryParse, apperrors.CodeInvalidData,
					fmt.Sprintf("too many invalid rows in %s: %s", name, summary.Error())).
					WithContext("file", name).
					WithContext("error_count", summary.Total).
					WithSuggestion(tooManyErrorsSuggestion(summary, p.config.MaxErrors))
			}
			continue
		}
		stats.ParsedRows++
	}

	stats.Duration = time.Since(start)
	p.logger.WithFields(logger.Fields{
		"file":    name,
		"parsed":  stats.ParsedRows,
		"skipped": stats.SkippedRows,
	}).Debug("CSV file parsed")
	return stats, nil
}

func tooManyErrorsSuggestion(summary *apperrors.ErrorSummary, limit int) string {
	parts := []string{fmt.Sprintf("fix the input; parsing stops after %d bad rows", limit)}
	if summary.HasCode(apperrors.CodeInvalidDate) {
		parts = append(parts, "dates must be YYYY-MM-DD or MM/DD/YYYY")
	}
	if summary.HasCode(apperrors.CodeInvalidAmount) {
		parts = append(parts, "amounts must be plain or accounting-formatted numbers")
	}
	return strings.Join(parts, "; ")
}

// resolveColumns maps logical columns to header positions via their aliases
func (p *csvParser) resolveColumns(name string, header []string) (map[string]int, *apperrors.RowError) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	resolved := make(map[string]int, len(p.columns))
	var missing []string
	for _, c := range p.columns {
		found := false
		for _, alias := range append([]string{c.name}, c.aliases...) {
			if i, ok := positions[normalizeHeader(alias)]; ok {
				resolved[c.name] = i
				found = true
				break
			}
		}
		if !found && c.required {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.MissingColumnError(name, missing)
	}
	return resolved, nil
}

func (p *csvParser) readError(name string, line int, err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		line = perr.Line
	}
	if errors.Is(err, errInvalidUTF8) {
		return apperrors.ParseError(apperrors.CodeInvalidFormat, name, line, "encoding", "", err).
			WithSuggestion("Save the file in UTF-8 encoding and try again")
	}
	return apperrors.ParseError(apperrors.CodeInvalidFormat, name, line, "", "", err).
		WithSuggestion("Check the file format and ensure it's a valid CSV")
}

// normalizeHeader lowercases and folds separators so "Posted Date",
// "posted_date" and "POSTED-DATE" compare equal
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
	return strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(h)
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func toAppErrors(rowErrs []*apperrors.RowError) []*apperrors.AppError {
	out := make([]*apperrors.AppError, len(rowErrs))
	for i, e := range rowErrs {
		out[i] = e.AppError
	}
	return out
}

var errInvalidUTF8 = errors.New("invalid UTF-8 encoding detected")

// utf8Checker rejects input that is not valid UTF-8. Reads are split on
// line boundaries so a multi-byte rune is never cut in half.
type utf8Checker struct {
	r       *bufio.Reader
	pending []byte
}

func (u *utf8Checker) Read(p []byte) (int, error) {
	if len(u.pending) == 0 {
		line, err := u.r.ReadBytes('\n')
		if len(line) > 0 && !utf8.Valid(line) {
			return 0, errInvalidUTF8
		}
		if len(line) == 0 {
			return 0, err
		}
		u.pending = line
	}
	n := copy(p, u.pending)
	u.pending = u.pending[n:]
	return n, nil
}
