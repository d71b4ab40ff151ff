// Package report models the nested report rows exported by the accounting
// platform and provides the read-side helpers the rule engine is built on:
// number parsing, tree flattening and representative-amount extraction.
//
// The external shape (Header/ColData/Summary/Rows) is loosely typed and may
// drift upstream. Everything outside this package works with Row through its
// accessor methods rather than the raw JSON fields.
package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Cell is one column value of a row. Value is usually a string but numbers
// are tolerated.
type Cell struct {
	Value any    `json:"value"`
	ID    string `json:"id,omitempty"`
}

// Text returns the cell value rendered as a trimmed string
func (c Cell) Text() string {
	switch v := c.Value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// CellSet wraps the ColData list used by the Header and Summary variants
type CellSet struct {
	ColData []Cell `json:"ColData,omitempty"`
}

// RowSet wraps a list of child rows
type RowSet struct {
	Row []*Row `json:"Row,omitempty"`
}

// Row is a node in the report tree: an account line, a section or an aggregate
type Row struct {
	Type    string   `json:"type,omitempty"`
	Group   string   `json:"group,omitempty"`
	Header  *CellSet `json:"Header,omitempty"`
	ColData []Cell   `json:"ColData,omitempty"`
	Summary *CellSet `json:"Summary,omitempty"`
	Rows    *RowSet  `json:"Rows,omitempty"`
}

// Children returns the row's child rows, or nil
func (r *Row) Children() []*Row {
	if r == nil || r.Rows == nil {
		return nil
	}
	return r.Rows.Row
}

// HasChildren reports whether the row has at least one child
func (r *Row) HasChildren() bool {
	return len(r.Children()) > 0
}

// ResolvedCells returns the row's own value cells, or its Summary cells when
// the row has none of its own.
func (r *Row) ResolvedCells() []Cell {
	if r == nil {
		return nil
	}
	if len(r.ColData) > 0 {
		return r.ColData
	}
	if r.Summary != nil {
		return r.Summary.ColData
	}
	return nil
}

// AccountID returns the platform id carried on the row's first cell
func (r *Row) AccountID() string {
	if r == nil {
		return ""
	}
	if len(r.ColData) > 0 && r.ColData[0].ID != "" {
		return r.ColData[0].ID
	}
	if r.Header != nil && len(r.Header.ColData) > 0 {
		return r.Header.ColData[0].ID
	}
	return ""
}

// IsSectionType reports whether the row's type tag marks it as a section or
// summary rather than an account line
func (r *Row) IsSectionType() bool {
	switch strings.ToLower(strings.TrimSpace(r.Type)) {
	case "section", "summary":
		return true
	}
	return false
}

// label resolves the display label: Header first cell, own first cell, then
// the group and type tags, then the literal "row".
func (r *Row) label() string {
	if r.Header != nil && len(r.Header.ColData) > 0 {
		if s := r.Header.ColData[0].Text(); s != "" {
			return s
		}
	}
	if len(r.ColData) > 0 {
		if s := r.ColData[0].Text(); s != "" {
			return s
		}
	}
	if s := strings.TrimSpace(r.Group); s != "" {
		return s
	}
	if s := strings.TrimSpace(r.Type); s != "" {
		return s
	}
	return "row"
}

// Header describes the report as a whole
type Header struct {
	ReportName  string `json:"ReportName,omitempty"`
	StartPeriod string `json:"StartPeriod,omitempty"`
	EndPeriod   string `json:"EndPeriod,omitempty"`
	Currency    string `json:"Currency,omitempty"`
	Time        string `json:"Time,omitempty"`
}

// Column describes one report column
type Column struct {
	ColTitle string `json:"ColTitle"`
	ColType  string `json:"ColType,omitempty"`
}

// Columns wraps the column list
type Columns struct {
	Column []Column `json:"Column,omitempty"`
}

// Report is one report snapshot for a period
type Report struct {
	Header  Header  `json:"Header"`
	Columns Columns `json:"Columns"`
	Rows    RowSet  `json:"Rows"`
}

// TopRows returns the report's root rows
func (r *Report) TopRows() []*Row {
	if r == nil {
		return nil
	}
	return r.Rows.Row
}

// Flatten flattens the whole report
func (r *Report) Flatten() []FlatRow {
	return Flatten(r.TopRows())
}

// Period renders the report's period for logs and output
func (r *Report) Period() string {
	if r == nil {
		return ""
	}
	if r.Header.StartPeriod == "" && r.Header.EndPeriod == "" {
		return ""
	}
	return r.Header.StartPeriod + ".." + r.Header.EndPeriod
}
