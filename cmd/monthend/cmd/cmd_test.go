package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

func testdata(name string) string {
	return filepath.Join("..", "..", "..", "testdata", name)
}

// resetFlags restores every flag to its default so runs do not leak into
// each other through the package-level command tree
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() {
		resetFlags(rootCmd)
		logger.SetGlobalLogger(logger.Nop())
	})
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	return rootCmd.Execute()
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func TestEvaluateCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "findings.json")
	err := run(t, "evaluate",
		"--rules", testdata("rules.yaml"),
		"--current", testdata("pnl_current.json"),
		"--prior", testdata("pnl_prior.json"),
		"--org", "org-1",
		"-f", "json", "-o", out)
	require.NoError(t, err)

	result := readJSON(t, out)
	require.Equal(t, "org-1", result["org_id"])
	require.Equal(t, true, result["has_prior"])

	findings, ok := result["findings"].([]any)
	require.True(t, ok)
	require.Len(t, findings, 4)
	require.Equal(t, "uncategorized_expenses", findings[0].(map[string]any)["rule_id"])
}

func TestEvaluateCommandWithStore(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "monthend.db")
	out := filepath.Join(dir, "findings.json")

	for i := 0; i < 2; i++ {
		err := run(t, "evaluate",
			"--rules", testdata("rules.yaml"),
			"--current", testdata("pnl_current.json"),
			"--org", "org-1",
			"--store", db,
			"-f", "json", "-o", out)
		require.NoError(t, err)
	}

	result := readJSON(t, out)
	require.NotEmpty(t, result["run_id"])
	_, err := os.Stat(db)
	require.NoError(t, err)
}

func TestMatchCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "matches.json")
	err := run(t, "match",
		"--statements", testdata("statements.csv"),
		"--transactions", testdata("transactions.csv"),
		"-f", "json", "-o", out)
	require.NoError(t, err)

	result := readJSON(t, out)
	summary := result["summary"].(map[string]any)
	require.EqualValues(t, 4, summary["total_lines"])
	require.EqualValues(t, 2, summary["matched"])

	// matched lines are left out of JSON output
	require.Len(t, result["results"], 2)
}

func TestMatchCommandCSV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "matches.csv")
	err := run(t, "match",
		"-s", testdata("statements.csv"),
		"-t", testdata("transactions.csv"),
		"--profile", "strict",
		"-f", "csv", "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	require.True(t, strings.HasPrefix(lines[0], "Line_Index,Line_ID"))
}

func TestMatchCommandRejectsBadDates(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
	}{
		{"unparseable", "March 1st", ""},
		{"reversed", "2025-03-31", "2025-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []string{"match",
				"-s", testdata("statements.csv"),
				"-t", testdata("transactions.csv"),
				"--start-date", tt.start}
			if tt.end != "" {
				args = append(args, "--end-date", tt.end)
			}
			err := run(t, args...)
			require.Error(t, err)

			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok)
			require.Equal(t, apperrors.CategoryValidation, appErr.Category)
		})
	}
}

func TestInspectCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "rows.csv")
	err := run(t, "inspect", "--report", testdata("pnl_current.json"), "-f", "csv", "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(data), "Expenses > Travel")
}

func TestMissingInputFile(t *testing.T) {
	err := run(t, "evaluate",
		"--rules", testdata("missing.yaml"),
		"--current", testdata("pnl_current.json"))
	require.Error(t, err)

	var buf bytes.Buffer
	h := &CLIErrorHandler{logger: logger.Nop(), out: &buf}
	require.Equal(t, 2, h.HandleError(err))
	require.Contains(t, buf.String(), "File error help")
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		exitCode int
		contains string
	}{
		{"nil", nil, 0, ""},
		{"configuration", apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "output.format", "xml", nil), 4, "Configuration error help"},
		{"storage", apperrors.StorageError(apperrors.CodeStoreUnavailable, "open", nil), 6, "Storage error help"},
		{"not exist", os.ErrNotExist, 2, "file path is correct"},
		{"unknown flag", &unknownFlagError{}, 1, "monthend --help"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &CLIErrorHandler{logger: logger.Nop(), out: &buf}
			if code := h.HandleError(tt.err); code != tt.exitCode {
				t.Errorf("expected exit code %d, got %d", tt.exitCode, code)
			}
			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("expected output to contain %q, got %q", tt.contains, buf.String())
			}
		})
	}
}

func TestHandleRowError(t *testing.T) {
	err := fmt.Errorf("load statements: %w", apperrors.MissingColumnError("statement.csv", []string{"posted_date", "amount"}))

	var buf bytes.Buffer
	h := &CLIErrorHandler{logger: logger.Nop(), out: &buf}
	if code := h.HandleError(err); code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
	out := buf.String()
	for _, want := range []string{
		"ERROR: missing required columns: posted_date, amount",
		"File: statement.csv",
		"Expected: columns: posted_date, amount",
		"Parse error help",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

type unknownFlagError struct{}

func (unknownFlagError) Error() string { return "unknown flag: --colour" }

func TestParseDateRange(t *testing.T) {
	r, err := parseDateRange("2025-03-01", "")
	require.NoError(t, err)
	require.NotNil(t, r.Start)
	require.Nil(t, r.End)
	require.Equal(t, 3, int(r.Start.Month()))

	r, err = parseDateRange("", "")
	require.NoError(t, err)
	require.Nil(t, r.Start)
	require.Nil(t, r.End)
}

func TestCommandHelp(t *testing.T) {
	for _, c := range []*cobra.Command{evaluateCmd, matchCmd, inspectCmd} {
		require.Contains(t, c.Long, "monthend "+c.Name(), c.Name())
		require.NotEmpty(t, c.Short)
	}
}
