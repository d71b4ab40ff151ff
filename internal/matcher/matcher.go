package matcher

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
)

// Candidate is one transaction that passed both the amount and date gates
type Candidate struct {
	TransactionID         string          `json:"transaction_id"`
	Score                 float64         `json:"score"`
	AmountDifference      decimal.Decimal `json:"amount_difference"`
	DaysDifference        int             `json:"days_difference"`
	DescriptionSimilarity float64         `json:"description_similarity"`
	Reasons               []string        `json:"reasons"`

	points int
}

// LineResult is the classification of one statement line
type LineResult struct {
	LineIndex     int                   `json:"line_index"`
	Line          *models.StatementLine `json:"line"`
	Status        models.MatchStatus    `json:"status"`
	TransactionID string                `json:"transaction_id,omitempty"`
	Score         float64               `json:"score"`
	Candidates    []Candidate           `json:"candidates"`
}

// Matcher scores statement lines against transactions
type Matcher struct {
	Config *MatchingConfig
}

// NewMatcher creates a matcher. A nil config uses DefaultMatchingConfig.
func NewMatcher(config *MatchingConfig) *Matcher {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &Matcher{Config: config}
}

// Score returns the pair's score in [0, 1], or false when the pair is not a
// candidate.
func (m *Matcher) Score(line *models.StatementLine, txn *models.AccountingTransaction) (float64, bool) {
	c, ok := m.evaluate(line, txn, NormalizeDescription(line.Description))
	if !ok {
		return 0, false
	}
	return c.Score, true
}

// Classify scores line against every transaction and classifies the result.
// Exactly one candidate at or above the matched threshold binds; two or more
// candidates with a top score at or above the ambiguous threshold are
// ambiguous; anything else is unmatched.
func (m *Matcher) Classify(line *models.StatementLine, txns []*models.AccountingTransaction) LineResult {
	result := LineResult{Line: line, Status: models.MatchStatusUnmatched}
	if line == nil {
		return result
	}

	normalized := NormalizeDescription(line.Description)
	for _, txn := range txns {
		if txn == nil {
			continue
		}
		if c, ok := m.evaluate(line, txn, normalized); ok {
			result.Candidates = append(result.Candidates, c)
		}
	}
	if len(result.Candidates) == 0 {
		return result
	}

	sortCandidates(result.Candidates)
	top := result.Candidates[0]
	result.Score = top.Score

	matchedPoints := toPoints(m.Config.MatchedThreshold)
	strong := 0
	for _, c := range result.Candidates {
		if c.points >= matchedPoints {
			strong++
		}
	}

	switch {
	case strong == 1:
		result.Status = models.MatchStatusMatched
		result.TransactionID = top.TransactionID
	case len(result.Candidates) >= 2 && top.points >= toPoints(m.Config.AmbiguousThreshold):
		result.Status = models.MatchStatusAmbiguous
	}
	return result
}

// sortCandidates orders by score, then description edit similarity, then
// transaction id, so input order never decides the winner.
func sortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].points != cs[j].points {
			return cs[i].points > cs[j].points
		}
		if cs[i].DescriptionSimilarity != cs[j].DescriptionSimilarity {
			return cs[i].DescriptionSimilarity > cs[j].DescriptionSimilarity
		}
		return cs[i].TransactionID < cs[j].TransactionID
	})
}

func (m *Matcher) evaluate(line *models.StatementLine, txn *models.AccountingTransaction, normalizedLine string) (Candidate, bool) {
	w := m.Config.Weights
	var reasons []string

	amountPoints, diff, ok := m.amountPoints(line.Amount, txn.Amount)
	if !ok {
		return Candidate{}, false
	}
	if amountPoints == w.ExactAmount {
		reasons = append(reasons, "Exact amount match")
	} else {
		reasons = append(reasons, fmt.Sprintf("Amount within tolerance (diff: %s)", diff.StringFixed(2)))
	}

	days := models.DaysBetween(line.PostedDate, txn.Date)
	var datePoints int
	switch {
	case days == 0:
		datePoints = w.SameDay
		reasons = append(reasons, "Same day")
	case days <= m.Config.NearDateDays:
		datePoints = w.NearDate
		reasons = append(reasons, fmt.Sprintf("Date within %d day(s)", days))
	default:
		return Candidate{}, false
	}

	normalizedTxn := NormalizeDescription(txn.Description)
	descPoints := 0
	if descriptionsSimilar(normalizedLine, normalizedTxn, m.Config.MinDescriptionWord) {
		descPoints = w.Description
		reasons = append(reasons, "Description similar")
	}

	points := amountPoints + datePoints + descPoints
	return Candidate{
		TransactionID:         txn.ID,
		Score:                 fromPoints(points),
		AmountDifference:      diff,
		DaysDifference:        days,
		DescriptionSimilarity: editSimilarity(normalizedLine, normalizedTxn),
		Reasons:               reasons,
		points:                points,
	}, true
}

// amountPoints compares absolute amounts. Statement and ledger signs differ by
// convention, so only magnitudes matter.
func (m *Matcher) amountPoints(a, b decimal.Decimal) (int, decimal.Decimal, bool) {
	absA, absB := a.Abs(), b.Abs()
	diff := absA.Sub(absB).Abs()

	if diff.LessThan(m.Config.ExactAmountTolerance) {
		return m.Config.Weights.ExactAmount, diff, true
	}

	larger := decimal.Max(absA, absB)
	if larger.IsPositive() && diff.Div(larger).LessThan(m.Config.RelativeAmountTolerance) {
		return m.Config.Weights.NearAmount, diff, true
	}
	return 0, diff, false
}
