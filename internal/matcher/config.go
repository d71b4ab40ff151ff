// Package matcher reconciles statement lines against accounting transactions.
//
// A pair becomes a candidate only when both gates pass:
//   - amount: absolute amounts equal within a cent, or within 1% of the larger
//   - date: posted within a few calendar days of the transaction date
//
// Candidates are scored on amount, date and description similarity and each
// line is classified independently as matched, ambiguous or unmatched.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	engine := matcher.NewEngine(config, log)
//	batch, err := engine.MatchAll(ctx, lines, transactions)
package matcher

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MatchingWeights are score contributions in points, where 100 points is a
// score of 1.0. Integer points keep threshold comparisons exact.
type MatchingWeights struct {
	ExactAmount int `json:"exact_amount" mapstructure:"exact_amount"`
	NearAmount  int `json:"near_amount" mapstructure:"near_amount"`
	SameDay     int `json:"same_day" mapstructure:"same_day"`
	NearDate    int `json:"near_date" mapstructure:"near_date"`
	Description int `json:"description" mapstructure:"description"`
}

// MatchingConfig holds the matching gates and classification thresholds
type MatchingConfig struct {
	// ExactAmountTolerance is the absolute difference treated as equal
	ExactAmountTolerance decimal.Decimal `json:"exact_amount_tolerance" mapstructure:"exact_amount_tolerance"`

	// RelativeAmountTolerance is the fraction of the larger amount accepted as a near match
	RelativeAmountTolerance decimal.Decimal `json:"relative_amount_tolerance" mapstructure:"relative_amount_tolerance"`

	// NearDateDays is the largest day gap that still forms a candidate
	NearDateDays int `json:"near_date_days" mapstructure:"near_date_days"`

	// MatchedThreshold is the score a sole strong candidate needs to bind
	MatchedThreshold float64 `json:"matched_threshold" mapstructure:"matched_threshold"`

	// AmbiguousThreshold is the top score at which several candidates are ambiguous
	AmbiguousThreshold float64 `json:"ambiguous_threshold" mapstructure:"ambiguous_threshold"`

	// MinDescriptionWord is the shortest shared word counted as similar
	MinDescriptionWord int `json:"min_description_word" mapstructure:"min_description_word"`

	// Workers > 1 classifies lines concurrently in MatchAll
	Workers int `json:"workers" mapstructure:"workers"`

	Weights MatchingWeights `json:"weights" mapstructure:"weights"`
}

// DefaultMatchingConfig returns the standard reconciliation policy
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		ExactAmountTolerance:    decimal.NewFromFloat(0.01),
		RelativeAmountTolerance: decimal.NewFromFloat(0.01),
		NearDateDays:            3,
		MatchedThreshold:        0.8,
		AmbiguousThreshold:      0.7,
		MinDescriptionWord:      4,
		Workers:                 1,
		Weights: MatchingWeights{
			ExactAmount: 50,
			NearAmount:  40,
			SameDay:     40,
			NearDate:    30,
			Description: 10,
		},
	}
}

// StrictMatchingConfig only accepts exact amounts posted within a day
func StrictMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.RelativeAmountTolerance = decimal.Zero
	config.NearDateDays = 1
	return config
}

// RelaxedMatchingConfig widens the amount and date gates for noisy feeds
func RelaxedMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.RelativeAmountTolerance = decimal.NewFromFloat(0.02)
	config.NearDateDays = 5
	return config
}

// Validate checks that the configuration is internally consistent
func (mc *MatchingConfig) Validate() error {
	if mc.ExactAmountTolerance.IsNegative() {
		return fmt.Errorf("exact amount tolerance cannot be negative: %s", mc.ExactAmountTolerance)
	}
	if mc.RelativeAmountTolerance.IsNegative() || mc.RelativeAmountTolerance.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("relative amount tolerance must be in [0, 1): %s", mc.RelativeAmountTolerance)
	}
	if mc.NearDateDays < 0 {
		return fmt.Errorf("near date days cannot be negative: %d", mc.NearDateDays)
	}
	if mc.MatchedThreshold <= 0 || mc.MatchedThreshold > 1 {
		return fmt.Errorf("matched threshold must be in (0, 1]: %f", mc.MatchedThreshold)
	}
	if mc.AmbiguousThreshold <= 0 || mc.AmbiguousThreshold > mc.MatchedThreshold {
		return fmt.Errorf("ambiguous threshold must be in (0, matched threshold]: %f", mc.AmbiguousThreshold)
	}
	if mc.MinDescriptionWord < 1 {
		return fmt.Errorf("min description word must be positive: %d", mc.MinDescriptionWord)
	}
	if mc.Workers < 1 {
		return fmt.Errorf("workers must be at least 1: %d", mc.Workers)
	}
	return mc.Weights.Validate()
}

// Validate checks that the weights can reach a full score of 100 points
func (mw *MatchingWeights) Validate() error {
	for name, w := range map[string]int{
		"exact_amount": mw.ExactAmount, "near_amount": mw.NearAmount,
		"same_day": mw.SameDay, "near_date": mw.NearDate, "description": mw.Description,
	} {
		if w < 0 {
			return fmt.Errorf("%s weight cannot be negative: %d", name, w)
		}
	}
	if mw.NearAmount > mw.ExactAmount || mw.NearDate > mw.SameDay {
		return fmt.Errorf("near weights cannot exceed exact weights")
	}
	if total := mw.ExactAmount + mw.SameDay + mw.Description; total != maxPoints {
		return fmt.Errorf("best-case weights must sum to %d points, got %d", maxPoints, total)
	}
	return nil
}

// Clone creates a deep copy of the configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	clone := *mc
	return &clone
}

func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{ExactAmountTolerance: %s, RelativeAmountTolerance: %s, NearDateDays: %d, MatchedThreshold: %.2f, AmbiguousThreshold: %.2f, Workers: %d}",
		mc.ExactAmountTolerance, mc.RelativeAmountTolerance, mc.NearDateDays, mc.MatchedThreshold, mc.AmbiguousThreshold, mc.Workers)
}

const maxPoints = 100

func toPoints(score float64) int {
	return int(math.Round(score * maxPoints))
}

func fromPoints(points int) float64 {
	return float64(points) / maxPoints
}
