package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/monthend"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
)

// Flags for the match command
var (
	statementsFile   string
	transactionsFile string
	startDate        string
	endDate          string
	matchOrgID       string
	matchPeriod      string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Reconcile statement lines against accounting transactions",
	Long: `Match classifies every statement line as matched, ambiguous or unmatched
against the accounting platform's transactions for the period. A pair is a
candidate only when the amounts agree within a cent or 1% and the dates are
within a few days; candidates are scored on amount, date and description.

Examples:
  # Basic matching
  monthend match --statements statement.csv --transactions transactions.csv

  # Only classify lines posted in March, with a stricter policy
  monthend match -s statement.csv -t transactions.csv \
    --start-date 2025-03-01 --end-date 2025-03-31 --profile strict

  # CSV output for a spreadsheet
  monthend match -s statement.csv -t transactions.csv -f csv -o matches.csv`,
	PreRunE: validateMatchFlags,
	RunE:    runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringVarP(&statementsFile, "statements", "s", "", "statement lines CSV (required)")
	matchCmd.Flags().StringVarP(&transactionsFile, "transactions", "t", "", "accounting transactions CSV (required)")
	matchCmd.Flags().StringVar(&startDate, "start-date", "", "only classify lines posted on or after this date (YYYY-MM-DD)")
	matchCmd.Flags().StringVar(&endDate, "end-date", "", "only classify lines posted on or before this date (YYYY-MM-DD)")
	matchCmd.Flags().StringVar(&matchOrgID, "org", "", "organization id the run belongs to")
	matchCmd.Flags().StringVar(&matchPeriod, "period", "", "period label recorded with the run")
	matchCmd.Flags().String("profile", "default", "matching policy: default, strict, relaxed")
	matchCmd.Flags().Int("near-date-days", 0, "largest day gap that still forms a candidate")
	matchCmd.Flags().Int("workers", 0, "lines classified concurrently")

	matchCmd.MarkFlagRequired("statements")
	matchCmd.MarkFlagRequired("transactions")

	bindFlag(matchCmd, "match.profile", "profile")
	bindFlag(matchCmd, "match.near_date_days", "near-date-days")
	bindFlag(matchCmd, "match.workers", "workers")
}

func validateMatchFlags(cmd *cobra.Command, args []string) error {
	if err := validateFileExists(statementsFile, "statements file"); err != nil {
		return err
	}
	if err := validateFileExists(transactionsFile, "transactions file"); err != nil {
		return err
	}
	_, err := parseDateRange(startDate, endDate)
	return err
}

// parseDateRange parses the optional --start-date/--end-date pair
func parseDateRange(start, end string) (monthend.DateRange, error) {
	var r monthend.DateRange
	for _, f := range []struct {
		name  string
		value string
		dst   **time.Time
	}{
		{"start-date", start, &r.Start},
		{"end-date", end, &r.End},
	} {
		if f.value == "" {
			continue
		}
		t, err := models.ParseTimeWithFormats(f.value)
		if err != nil {
			return r, apperrors.ValidationError(apperrors.CodeInvalidDate, f.name, f.value, err).
				WithSuggestion("Use YYYY-MM-DD")
		}
		*f.dst = &t
	}
	if r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		return r, apperrors.ValidationError(apperrors.CodeInvalidInput, "date_range", start+".."+end, nil).
			WithSuggestion("The start date cannot be after the end date")
	}
	return r, nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	dateRange, err := parseDateRange(startDate, endDate)
	if err != nil {
		return err
	}

	if env.config.Verbose {
		fmt.Fprintf(os.Stderr, "Matching %s against %s\n", statementsFile, transactionsFile)
	}

	result, err := env.service.Match(cmd.Context(), &monthend.MatchRequest{
		OrgID:            matchOrgID,
		Period:           matchPeriod,
		StatementsFile:   statementsFile,
		TransactionsFile: transactionsFile,
		Range:            dateRange,
	})
	if err != nil {
		return err
	}

	if err := env.writeResult(result); err != nil {
		return err
	}

	if env.config.Verbose {
		s := result.Batch.Summary
		fmt.Fprintf(os.Stderr, "\nMatching completed: %d lines, %d matched, %d ambiguous, %d unmatched.\n",
			s.TotalLines, s.Matched, s.Ambiguous, s.Unmatched)
		if result.Persisted {
			fmt.Fprintf(os.Stderr, "Recorded as run %s in %s\n", result.RunID, env.config.Store.Path)
		}
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", result.ProcessingTime)
	}
	return nil
}
