package parsers

import (
	"context"
	"fmt"
	"io"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
)

var statementColumns = []column{
	{name: "posted_date", aliases: []string{"date", "posting_date", "transaction_date", "post_date"}, required: true},
	{name: "amount", aliases: []string{"amt", "value"}, required: true},
	{name: "description", aliases: []string{"memo", "payee", "details", "narrative"}},
	{name: "id", aliases: []string{"line_id", "reference", "ref"}},
}

// StatementParser reads bank and credit-card statement exports
type StatementParser struct {
	csv *csvParser
}

// NewStatementParser creates a statement parser. A nil config uses DefaultParseConfig.
func NewStatementParser(config *ParseConfig) *StatementParser {
	return &StatementParser{csv: newCSVParser(config, statementColumns, "statement_parser")}
}

// ParseFile parses the statement at path
func (p *StatementParser) ParseFile(ctx context.Context, path string) ([]*models.StatementLine, *ParseStats, error) {
	var lines []*models.StatementLine
	stats, err := p.csv.parseFile(ctx, path, func(r *row) *apperrors.RowError {
		line, rowErr := statementLine(r)
		if rowErr == nil {
			lines = append(lines, line)
		}
		return rowErr
	})
	if err != nil {
		return nil, nil, err
	}
	return lines, stats, nil
}

// ParseReader parses a statement from r. name labels the source in errors.
func (p *StatementParser) ParseReader(ctx context.Context, r io.Reader, name string) ([]*models.StatementLine, *ParseStats, error) {
	var lines []*models.StatementLine
	stats, err := p.csv.parse(ctx, r, name, func(r *row) *apperrors.RowError {
		line, rowErr := statementLine(r)
		if rowErr == nil {
			lines = append(lines, line)
		}
		return rowErr
	})
	if err != nil {
		return nil, nil, err
	}
	return lines, stats, nil
}

// statementLine converts one row. Lines without an id are numbered by
// their position among the data rows.
func statementLine(r *row) (*models.StatementLine, *apperrors.RowError) {
	posted, rowErr := dateField(r, "posted_date")
	if rowErr != nil {
		return nil, rowErr
	}
	amount, rowErr := amountField(r, "amount")
	if rowErr != nil {
		return nil, rowErr
	}

	id := r.get("id")
	if id == "" {
		id = fmt.Sprintf("L%d", r.index)
	}
	return models.NewStatementLine(id, amount, posted, r.get("description")), nil
}
