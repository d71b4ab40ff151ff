package matcher

import (
	"sort"
	"time"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
)

// TransactionIndex buckets transactions by calendar date so a line only
// scores transactions that can pass the date gate.
type TransactionIndex struct {
	// DateIndex maps date strings (YYYY-MM-DD) to positions in All
	DateIndex map[string][]int

	// All holds the indexed transactions in input order
	All []*models.AccountingTransaction
}

// IndexStats describes an index
type IndexStats struct {
	TotalItems  int `json:"total_items"`
	UniqueDates int `json:"unique_dates"`
	LargestDay  int `json:"largest_day"`
}

// NewTransactionIndex creates a new index. Nil transactions are skipped.
func NewTransactionIndex(transactions []*models.AccountingTransaction) *TransactionIndex {
	index := &TransactionIndex{
		DateIndex: make(map[string][]int),
		All:       transactions,
	}
	for i, txn := range transactions {
		if txn == nil {
			continue
		}
		key := dateKey(txn.Date)
		index.DateIndex[key] = append(index.DateIndex[key], i)
	}
	return index
}

// GetCandidates returns transactions dated within nearDays of the line, in
// input order.
func (ti *TransactionIndex) GetCandidates(line *models.StatementLine, nearDays int) []*models.AccountingTransaction {
	if line == nil {
		return nil
	}
	day := models.DateOnly(line.PostedDate)

	var positions []int
	for offset := -nearDays; offset <= nearDays; offset++ {
		positions = append(positions, ti.DateIndex[dateKey(day.AddDate(0, 0, offset))]...)
	}
	sort.Ints(positions)

	out := make([]*models.AccountingTransaction, len(positions))
	for i, p := range positions {
		out[i] = ti.All[p]
	}
	return out
}

// GetIndexStats returns statistics about the index
func (ti *TransactionIndex) GetIndexStats() IndexStats {
	stats := IndexStats{UniqueDates: len(ti.DateIndex)}
	for _, positions := range ti.DateIndex {
		stats.TotalItems += len(positions)
		if len(positions) > stats.LargestDay {
			stats.LargestDay = len(positions)
		}
	}
	return stats
}

func dateKey(t time.Time) string {
	return models.DateOnly(t).Format(models.DateLayout)
}
