// Package reporter renders month-end run results for people and programs.
//
// Supported output formats:
//   - Console: Human-readable sections for terminal display
//   - JSON: Structured data for programmatic consumption
//   - CSV: One record per finding, statement line or report row
//
// Three result kinds can be rendered: rule evaluation findings, statement
// matching results and report row diagnostics.
//
// Example usage:
//
//	generator, err := reporter.NewGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	err = generator.WriteFindings(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/matcher"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/monthend"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/parsers"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/report"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	// Detail level options
	IncludeEvidence   bool `json:"include_evidence" mapstructure:"include_evidence"`
	IncludeCandidates bool `json:"include_candidates" mapstructure:"include_candidates"`
	IncludeMatched    bool `json:"include_matched" mapstructure:"include_matched"`

	// MaxItems caps each console list; 0 means no cap
	MaxItems int `json:"max_items" mapstructure:"max_items"`

	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers" mapstructure:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:            FormatConsole,
		IncludeEvidence:   false,
		IncludeCandidates: true,
		IncludeMatched:    true,
		MaxItems:          50,
		CSVDelimiter:      ',',
		CSVHeaders:        true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("max items cannot be negative, got %d", c.MaxItems)
	}
	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}
	return nil
}

// Clone returns a copy of the report configuration
func (c *ReportConfig) Clone() *ReportConfig {
	clone := *c
	return &clone
}

// Generator renders run results in the configured format
type Generator struct {
	config *ReportConfig
}

// NewGenerator creates a new generator with the specified configuration
func NewGenerator(config *ReportConfig) (*Generator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &Generator{config: config}, nil
}

// Config returns the generator configuration
func (g *Generator) Config() *ReportConfig {
	return g.config
}

// WriteFindings renders an evaluation result
func (g *Generator) WriteFindings(result *monthend.EvaluateResult, w io.Writer) error {
	if result == nil {
		return fmt.Errorf("evaluation result cannot be nil")
	}
	switch g.config.Format {
	case FormatJSON:
		return g.writeJSON(g.findingsOutput(result), w)
	case FormatCSV:
		return g.writeFindingsCSV(result, w)
	default:
		return g.writeFindingsConsole(result, w)
	}
}

// WriteMatches renders a matching result
func (g *Generator) WriteMatches(result *monthend.MatchResult, w io.Writer) error {
	if result == nil || result.Batch == nil {
		return fmt.Errorf("match result cannot be nil")
	}
	switch g.config.Format {
	case FormatJSON:
		return g.writeJSON(g.matchesOutput(result), w)
	case FormatCSV:
		return g.writeMatchesCSV(result, w)
	default:
		return g.writeMatchesConsole(result, w)
	}
}

// WriteDiagnostics renders the row diagnostics of an inspected report
func (g *Generator) WriteDiagnostics(result *monthend.InspectResult, w io.Writer) error {
	if result == nil {
		return fmt.Errorf("inspect result cannot be nil")
	}
	switch g.config.Format {
	case FormatJSON:
		return g.writeJSON(result, w)
	case FormatCSV:
		return g.writeDiagnosticsCSV(result, w)
	default:
		return g.writeDiagnosticsConsole(result, w)
	}
}

func (g *Generator) writeJSON(v any, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (g *Generator) findingsOutput(result *monthend.EvaluateResult) map[string]any {
	findings := result.Findings
	if !g.config.IncludeEvidence {
		findings = make([]models.Finding, len(result.Findings))
		for i, f := range result.Findings {
			f.Evidence = nil
			findings[i] = f
		}
	}
	if findings == nil {
		findings = []models.Finding{}
	}

	output := map[string]any{
		"period":          result.Period,
		"rules_total":     result.RulesTotal,
		"rules_enabled":   result.RulesEnabled,
		"has_prior":       result.HasPrior,
		"summary":         result.Summary,
		"findings":        findings,
		"processing_time": result.ProcessingTime.String(),
	}
	if result.RunID != "" {
		output["run_id"] = result.RunID
	}
	if result.OrgID != "" {
		output["org_id"] = result.OrgID
	}
	return output
}

func (g *Generator) matchesOutput(result *monthend.MatchResult) map[string]any {
	lines := make([]matcher.LineResult, 0, len(result.Batch.Results))
	for _, r := range result.Batch.Results {
		if !g.config.IncludeMatched && r.Status == models.MatchStatusMatched {
			continue
		}
		if !g.config.IncludeCandidates {
			r.Candidates = nil
		}
		lines = append(lines, r)
	}

	output := map[string]any{
		"period":          result.Period,
		"summary":         result.Batch.Summary,
		"results":         lines,
		"out_of_range":    result.OutOfRange,
		"processing_time": result.ProcessingTime.String(),
	}
	if result.RunID != "" {
		output["run_id"] = result.RunID
	}
	if result.StatementStats != nil {
		output["statement_stats"] = result.StatementStats
	}
	if result.TransactionStats != nil {
		output["transaction_stats"] = result.TransactionStats
	}
	return output
}

func (g *Generator) newCSVWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	if g.config.CSVDelimiter != 0 {
		cw.Comma = g.config.CSVDelimiter
	}
	return cw
}

func (g *Generator) writeCSV(w io.Writer, headers []string, records [][]string) error {
	cw := g.newCSVWriter(w)
	if g.config.CSVHeaders {
		if err := cw.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	for _, record := range records {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (g *Generator) writeFindingsCSV(result *monthend.EvaluateResult, w io.Writer) error {
	headers := []string{
		"ID", "Rule_ID", "Rule_Name", "Severity", "Title", "Summary",
		"Owner_Name", "Owner_Email", "Owner_Source",
		"Current_Value", "Prior_Value", "Delta", "Pct_Delta",
	}
	records := make([][]string, 0, len(result.Findings))
	for _, f := range result.Findings {
		records = append(records, []string{
			f.ID, f.RuleID, f.RuleName, string(f.Severity), f.Title, f.Summary,
			f.OwnerName, f.OwnerEmail, string(f.OwnerSource),
			decimalString(f.CurrentValue), decimalString(f.PriorValue),
			decimalString(f.Delta), decimalString(f.PctDelta),
		})
	}
	return g.writeCSV(w, headers, records)
}

func (g *Generator) writeMatchesCSV(result *monthend.MatchResult, w io.Writer) error {
	headers := []string{
		"Line_Index", "Line_ID", "Posted_Date", "Amount", "Description",
		"Status", "Transaction_ID", "Score", "Candidates", "Reasons",
	}
	records := make([][]string, 0, len(result.Batch.Results))
	for _, r := range result.Batch.Results {
		if !g.config.IncludeMatched && r.Status == models.MatchStatusMatched {
			continue
		}
		ids := make([]string, len(r.Candidates))
		for i, c := range r.Candidates {
			ids[i] = c.TransactionID
		}
		var reasons string
		if len(r.Candidates) > 0 {
			reasons = strings.Join(r.Candidates[0].Reasons, "; ")
		}
		records = append(records, []string{
			strconv.Itoa(r.LineIndex),
			r.Line.ID,
			r.Line.PostedDate.Format(models.DateLayout),
			r.Line.Amount.StringFixed(2),
			r.Line.Description,
			string(r.Status),
			r.TransactionID,
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			strings.Join(ids, " "),
			reasons,
		})
	}
	return g.writeCSV(w, headers, records)
}

func (g *Generator) writeDiagnosticsCSV(result *monthend.InspectResult, w io.Writer) error {
	headers := []string{"Index", "Depth", "Path", "Label", "Type", "Group", "Account_ID", "Amount", "Has_Children"}
	records := make([][]string, 0, len(result.Diagnostics))
	for _, d := range result.Diagnostics {
		records = append(records, []string{
			strconv.Itoa(d.Index),
			strconv.Itoa(d.Depth),
			d.Path,
			d.Label,
			d.Type,
			d.Group,
			d.AccountID,
			decimalString(d.Amount),
			strconv.FormatBool(d.HasChildren),
		})
	}
	return g.writeCSV(w, headers, records)
}

func (g *Generator) writeFindingsConsole(result *monthend.EvaluateResult, w io.Writer) error {
	bw := &consoleWriter{w: w}

	bw.printf("MONTH-END RULE EVALUATION\n")
	if result.Period != "" {
		bw.printf("Period: %s\n", result.Period)
	}
	if result.RunID != "" {
		bw.printf("Run: %s\n", result.RunID)
	}
	bw.printf("Processing Duration: %v\n\n", result.ProcessingTime)

	bw.printf("=== SUMMARY ===\n")
	bw.printf("Rules:    %d enabled of %d\n", result.RulesEnabled, result.RulesTotal)
	bw.printf("Prior:    %s\n", yesNo(result.HasPrior))
	bw.printf("Findings: %d\n", result.Summary.Total)
	for _, sc := range result.Summary.SeverityCounts() {
		bw.printf("  %-8s %d\n", strings.ToUpper(string(sc.Severity)), sc.Count)
	}
	bw.printf("Owned:    %d (%.1f%%)\n\n", result.Summary.Owned, percentage(result.Summary.Owned, result.Summary.Total))

	if len(result.Findings) == 0 {
		bw.printf("No findings.\n")
		return bw.err
	}

	bw.printf("=== FINDINGS ===\n")
	for i, f := range result.Findings {
		if g.truncated(bw, i, len(result.Findings)) {
			break
		}
		bw.printf("%d. [%s] %s\n", i+1, strings.ToUpper(string(f.Severity)), f.Title)
		bw.printf("   Rule:    %s (%s)\n", f.RuleName, f.RuleID)
		bw.printf("   Summary: %s\n", f.Summary)
		if f.OwnerSource != models.OwnerSourceNone && f.OwnerName != "" {
			bw.printf("   Owner:   %s (%s)\n", ownerLabel(f), f.OwnerSource)
		}
		if f.HasVariance() {
			bw.printf("   Current: %s  Prior: %s  Delta: %s",
				report.FormatAccounting(*f.CurrentValue),
				report.FormatAccounting(*f.PriorValue),
				report.FormatAccounting(*f.Delta))
			if f.PctDelta != nil {
				bw.printf(" (%s%%)", f.PctDelta.Mul(decimal.NewFromInt(100)).StringFixed(1))
			}
			bw.printf("\n")
		}
		if g.config.IncludeEvidence && f.Evidence != nil {
			evidence, err := json.Marshal(f.Evidence)
			if err == nil {
				bw.printf("   Evidence: %s\n", evidence)
			}
		}
		bw.printf("   ID:      %s\n", f.ID)
	}
	return bw.err
}

func (g *Generator) writeMatchesConsole(result *monthend.MatchResult, w io.Writer) error {
	bw := &consoleWriter{w: w}
	summary := result.Batch.Summary

	bw.printf("STATEMENT MATCHING REPORT\n")
	if result.Period != "" {
		bw.printf("Period: %s\n", result.Period)
	}
	if result.RunID != "" {
		bw.printf("Run: %s\n", result.RunID)
	}
	bw.printf("Processing Duration: %v\n\n", result.ProcessingTime)

	bw.printf("=== SUMMARY ===\n")
	bw.printf("Statement Lines:  %d\n", summary.TotalLines)
	bw.printf("Transactions:     %d\n", summary.TotalTransactions)
	bw.printf("  Matched:        %d (%.1f%%)\n", summary.Matched, percentage(summary.Matched, summary.TotalLines))
	bw.printf("  Ambiguous:      %d (%.1f%%)\n", summary.Ambiguous, percentage(summary.Ambiguous, summary.TotalLines))
	bw.printf("  Unmatched:      %d (%.1f%%)\n", summary.Unmatched, percentage(summary.Unmatched, summary.TotalLines))
	if summary.SharedBindings > 0 {
		bw.printf("Shared Bindings:  %d\n", summary.SharedBindings)
	}
	if result.OutOfRange > 0 {
		bw.printf("Out of Range:     %d\n", result.OutOfRange)
	}
	bw.printf("\n")

	bw.printf("=== AMOUNTS ===\n")
	bw.printf("Matched Amount:   %s\n", summary.MatchedAmount.StringFixed(2))
	bw.printf("Unmatched Amount: %s\n\n", summary.UnmatchedAmount.StringFixed(2))

	sections := []struct {
		title  string
		status models.MatchStatus
		show   bool
	}{
		{"AMBIGUOUS LINES", models.MatchStatusAmbiguous, true},
		{"UNMATCHED LINES", models.MatchStatusUnmatched, true},
		{"MATCHED LINES", models.MatchStatusMatched, g.config.IncludeMatched},
	}
	for _, section := range sections {
		if !section.show {
			continue
		}
		lines := filterStatus(result.Batch.Results, section.status)
		if len(lines) == 0 {
			continue
		}
		bw.printf("=== %s ===\n", section.title)
		for i, r := range lines {
			if g.truncated(bw, i, len(lines)) {
				break
			}
			g.printLineResult(bw, i, r)
		}
		bw.printf("\n")
	}

	printParseStats(bw, "Statements", result.StatementStats)
	printParseStats(bw, "Transactions", result.TransactionStats)
	return bw.err
}

func (g *Generator) printLineResult(bw *consoleWriter, i int, r matcher.LineResult) {
	bw.printf("  %d. %s  %s  %s  %q",
		i+1, r.Line.ID, r.Line.PostedDate.Format(models.DateLayout), r.Line.Amount.StringFixed(2), r.Line.Description)
	if r.TransactionID != "" {
		bw.printf(" -> %s (%.2f)", r.TransactionID, r.Score)
	}
	bw.printf("\n")
	if !g.config.IncludeCandidates {
		return
	}
	for _, c := range r.Candidates {
		bw.printf("     - %s %.2f: %s\n", c.TransactionID, c.Score, strings.Join(c.Reasons, "; "))
	}
}

func (g *Generator) writeDiagnosticsConsole(result *monthend.InspectResult, w io.Writer) error {
	bw := &consoleWriter{w: w}

	bw.printf("REPORT DIAGNOSTICS\n")
	bw.printf("File: %s\n", result.File)
	if result.ReportName != "" {
		bw.printf("Report: %s\n", result.ReportName)
	}
	if result.Period != "" {
		bw.printf("Period: %s\n", result.Period)
	}
	bw.printf("\n")

	s := result.Summary
	bw.printf("=== SUMMARY ===\n")
	bw.printf("Rows:           %d\n", s.TotalRows)
	bw.printf("Sections:       %d\n", s.Sections)
	bw.printf("Leaves:         %d\n", s.Leaves)
	bw.printf("With Amount:    %d\n", s.WithAmount)
	bw.printf("Without Amount: %d\n", s.WithoutAmount)
	bw.printf("Max Depth:      %d\n\n", s.MaxDepth)

	bw.printf("=== ROWS ===\n")
	for i, d := range result.Diagnostics {
		if g.truncated(bw, i, len(result.Diagnostics)) {
			break
		}
		amount := "-"
		if d.Amount != nil {
			amount = report.FormatAccounting(*d.Amount)
		}
		bw.printf("%s%s  %s\n", strings.Repeat("  ", d.Depth), d.Label, amount)
	}
	return bw.err
}

// truncated prints the overflow notice once the console cap is reached
func (g *Generator) truncated(bw *consoleWriter, i, total int) bool {
	if g.config.MaxItems <= 0 || i < g.config.MaxItems {
		return false
	}
	bw.printf("  ... and %d more\n", total-i)
	return true
}

// consoleWriter keeps the first write error so callers can check once
type consoleWriter struct {
	w   io.Writer
	err error
}

func (cw *consoleWriter) printf(format string, args ...any) {
	if cw.err != nil {
		return
	}
	_, cw.err = fmt.Fprintf(cw.w, format, args...)
}

func printParseStats(bw *consoleWriter, title string, stats *parsers.ParseStats) {
	if stats == nil || !stats.HasErrors() {
		return
	}
	bw.printf("=== %s PARSE ERRORS ===\n", strings.ToUpper(title))
	for _, msg := range stats.SampleErrors(5) {
		bw.printf("  - %s\n", msg)
	}
	bw.printf("\n")
}

func filterStatus(results []matcher.LineResult, status models.MatchStatus) []matcher.LineResult {
	var out []matcher.LineResult
	for _, r := range results {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

func ownerLabel(f models.Finding) string {
	if f.OwnerEmail != "" {
		return fmt.Sprintf("%s <%s>", f.OwnerName, f.OwnerEmail)
	}
	return f.OwnerName
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
