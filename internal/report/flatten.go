package report

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PathSeparator joins path segments for display and grouping
const PathSeparator = " > "

// FlatRow is one visited node with the labels of its ancestors. Path always
// ends with the node's own label.
type FlatRow struct {
	Path []string
	Row  *Row
}

// Label returns the node's own resolved label
func (f FlatRow) Label() string {
	if len(f.Path) == 0 {
		return ""
	}
	return f.Path[len(f.Path)-1]
}

// JoinedPath renders the path with PathSeparator
func (f FlatRow) JoinedPath() string {
	return strings.Join(f.Path, PathSeparator)
}

// Depth is the node's depth, zero for root rows
func (f FlatRow) Depth() int {
	return len(f.Path) - 1
}

// Contains reports whether the lowercase keyword occurs in the path or label,
// case-insensitively. keyword must already be lowercased.
func (f FlatRow) Contains(keyword string) bool {
	if keyword == "" {
		return false
	}
	if strings.Contains(strings.ToLower(f.Label()), keyword) {
		return true
	}
	return strings.Contains(strings.ToLower(f.JoinedPath()), keyword)
}

// Amount returns the row's representative amount
func (f FlatRow) Amount() (decimal.Decimal, bool) {
	return RowAmount(f.Row)
}

// Flatten walks rows depth-first, pre-order, emitting every node exactly once.
// Nil entries are not nodes and are ignored.
func Flatten(rows []*Row) []FlatRow {
	var out []FlatRow
	var walk func(rows []*Row, parent []string)
	walk = func(rows []*Row, parent []string) {
		for _, row := range rows {
			if row == nil {
				continue
			}
			path := make([]string, len(parent)+1)
			copy(path, parent)
			path[len(parent)] = row.label()

			out = append(out, FlatRow{Path: path, Row: row})
			walk(row.Children(), path)
		}
	}
	walk(rows, nil)
	return out
}
