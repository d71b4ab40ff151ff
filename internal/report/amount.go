package report

import "github.com/shopspring/decimal"

// singleColumnIndex is the value cell of a one-column report (label, amount)
const singleColumnIndex = 1

// RowAmount selects the row's representative amount: the rightmost cell that
// parses, since multi-column reports place the total last. Falls back to the
// single-column value cell.
func RowAmount(row *Row) (decimal.Decimal, bool) {
	cells := row.ResolvedCells()
	for i := len(cells) - 1; i >= 0; i-- {
		if d, ok := ParseNumber(cells[i].Value); ok {
			return d, true
		}
	}
	if len(cells) > singleColumnIndex {
		return ParseNumber(cells[singleColumnIndex].Value)
	}
	return decimal.Zero, false
}
