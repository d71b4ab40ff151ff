package parsers

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/report"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
)

var transactionColumns = []column{
	{name: "id", aliases: []string{"transaction_id", "txn_id", "reference"}, required: true},
	{name: "date", aliases: []string{"transaction_date", "txn_date", "posted_date"}, required: true},
	{name: "amount", aliases: []string{"amt", "total", "value"}, required: true},
	{name: "description", aliases: []string{"memo", "payee", "details", "name"}},
}

// TransactionParser reads accounting transaction exports
type TransactionParser struct {
	csv *csvParser
}

// NewTransactionParser creates a transaction parser. A nil config uses DefaultParseConfig.
func NewTransactionParser(config *ParseConfig) *TransactionParser {
	return &TransactionParser{csv: newCSVParser(config, transactionColumns, "transaction_parser")}
}

// ParseFile parses the transactions at path
func (p *TransactionParser) ParseFile(ctx context.Context, path string) ([]*models.AccountingTransaction, *ParseStats, error) {
	var txns []*models.AccountingTransaction
	stats, err := p.csv.parseFile(ctx, path, collectTransactions(&txns))
	if err != nil {
		return nil, nil, err
	}
	return txns, stats, nil
}

// ParseReader parses transactions from r. name labels the source in errors.
func (p *TransactionParser) ParseReader(ctx context.Context, r io.Reader, name string) ([]*models.AccountingTransaction, *ParseStats, error) {
	var txns []*models.AccountingTransaction
	stats, err := p.csv.parse(ctx, r, name, collectTransactions(&txns))
	if err != nil {
		return nil, nil, err
	}
	return txns, stats, nil
}

func collectTransactions(dst *[]*models.AccountingTransaction) func(*row) *apperrors.RowError {
	return func(r *row) *apperrors.RowError {
		id := r.get("id")
		if id == "" {
			return apperrors.EmptyValueError(r.file, r.line, "id")
		}
		date, rowErr := dateField(r, "date")
		if rowErr != nil {
			return rowErr
		}
		amount, rowErr := amountField(r, "amount")
		if rowErr != nil {
			return rowErr
		}
		*dst = append(*dst, models.NewAccountingTransaction(id, amount, date, r.get("description")))
		return nil
	}
}

func dateField(r *row, name string) (time.Time, *apperrors.RowError) {
	raw := r.get(name)
	if raw == "" {
		return time.Time{}, apperrors.EmptyValueError(r.file, r.line, name)
	}
	t, err := models.ParseTimeWithFormats(raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidDateError(r.file, r.line, name, raw)
	}
	return t, nil
}

func amountField(r *row, name string) (decimal.Decimal, *apperrors.RowError) {
	raw := r.get(name)
	if raw == "" {
		return decimal.Zero, apperrors.EmptyValueError(r.file, r.line, name)
	}
	d, ok := report.ParseNumber(raw)
	if !ok {
		return decimal.Zero, apperrors.InvalidAmountError(r.file, r.line, name, raw)
	}
	return d, nil
}
