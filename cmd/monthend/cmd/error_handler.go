package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

// CLIErrorHandler turns command errors into messages and exit codes
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: v.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints err and returns the exit code for it
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	var rowErr *apperrors.RowError
	if errors.As(err, &rowErr) {
		return h.handleRowError(rowErr)
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return h.handleAppError(appErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleAppError(err *apperrors.AppError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleRowError prints the file position of a CSV error
func (h *CLIErrorHandler) handleRowError(err *apperrors.RowError) int {
	fmt.Fprintf(h.out, "%s\n", err.Detailed())
	fmt.Fprintf(h.out, "\n%s\n", categoryHelp(err.Category))
	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case isNotExist(err):
		fmt.Fprintf(h.out, "Error: %v\n", err)
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case isPermission(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	case isDiskFull(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	// cobra reports unknown flags and missing required flags as plain errors
	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Run 'monthend --help' for usage.\n")
	return 1
}

func categoryHelp(category apperrors.ErrorCategory) string {
	switch category {
	case apperrors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case apperrors.CategoryParse:
		return `Parse error help:
• Reports must be JSON with Header, Columns and Rows
• Rule sets may be YAML or JSON with a top-level "rules" list
• Statement and transaction CSVs need a header row
• Use 'monthend inspect --report <file>' to see how a report is read`

	case apperrors.CategoryValidation:
		return `Validation error help:
• Check that all required fields have values
• Verify date formats use YYYY-MM-DD
• Ensure amounts are decimal numbers without currency symbols`

	case apperrors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• MONTHEND_* environment variables override the config file`

	case apperrors.CategoryEvaluation:
		return `Evaluation error help:
• Check that the current report is present and non-empty
• Variance rules need --prior to produce findings`

	case apperrors.CategoryMatching:
		return `Matching error help:
• Check data quality in the statement and transaction files
• Try a different policy with --profile strict or --profile relaxed`

	case apperrors.CategoryStorage:
		return `Storage error help:
• Check that the --store path is writable
• Remove --store to run without recording results`

	default:
		return `For more help:
• Use 'monthend --help' for general help
• Use 'monthend <command> --help' for command-specific help`
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermission(err error) bool {
	return errors.Is(err, os.ErrPermission) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFull(err error) bool {
	if errors.Is(err, syscall.ENOSPC) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "device full")
}

// validateFileExists checks that path names a readable regular file
func validateFileExists(path, description string) error {
	if path == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, description, nil, nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.FileError(apperrors.CodeFileNotFound, path, err).
				WithContext("input", description)
		}
		return apperrors.FileError(apperrors.CodeFilePermission, path, err).
			WithContext("input", description)
	}
	if info.IsDir() {
		return apperrors.ValidationError(apperrors.CodeInvalidInput, description, path,
			fmt.Errorf("%s is a directory, expected a file", path))
	}

	file, err := os.Open(path)
	if err != nil {
		return apperrors.FileError(apperrors.CodeFilePermission, path, err).
			WithContext("input", description)
	}
	return file.Close()
}
