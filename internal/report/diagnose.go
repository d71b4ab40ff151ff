package report

import "github.com/shopspring/decimal"

// Diagnostic describes how the engine sees one report row
type Diagnostic struct {
	Index       int              `json:"index"`
	Depth       int              `json:"depth"`
	Path        string           `json:"path"`
	Label       string           `json:"label"`
	Type        string           `json:"type,omitempty"`
	Group       string           `json:"group,omitempty"`
	AccountID   string           `json:"account_id,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Cells       int              `json:"cells"`
	HasChildren bool             `json:"has_children"`
}

// DiagnosticSummary aggregates a Diagnose run
type DiagnosticSummary struct {
	TotalRows     int `json:"total_rows"`
	Sections      int `json:"sections"`
	Leaves        int `json:"leaves"`
	WithAmount    int `json:"with_amount"`
	WithoutAmount int `json:"without_amount"`
	MaxDepth      int `json:"max_depth"`
}

// Diagnose flattens rows and reports the label, path and amount resolved for
// each node, in traversal order.
func Diagnose(rows []*Row) ([]Diagnostic, DiagnosticSummary) {
	flat := Flatten(rows)
	out := make([]Diagnostic, 0, len(flat))
	var summary DiagnosticSummary

	for i, fr := range flat {
		d := Diagnostic{
			Index:       i,
			Depth:       fr.Depth(),
			Path:        fr.JoinedPath(),
			Label:       fr.Label(),
			Type:        fr.Row.Type,
			Group:       fr.Row.Group,
			AccountID:   fr.Row.AccountID(),
			Cells:       len(fr.Row.ResolvedCells()),
			HasChildren: fr.Row.HasChildren(),
		}
		if amount, ok := RowAmount(fr.Row); ok {
			d.Amount = &amount
			summary.WithAmount++
		} else {
			summary.WithoutAmount++
		}
		if d.HasChildren || fr.Row.IsSectionType() {
			summary.Sections++
		} else {
			summary.Leaves++
		}
		if d.Depth > summary.MaxDepth {
			summary.MaxDepth = d.Depth
		}
		out = append(out, d)
	}

	summary.TotalRows = len(out)
	return out, summary
}
