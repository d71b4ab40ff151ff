package reporter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/monthend"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

// SafeGenerator wraps Generator with input validation, logging and fallbacks
type SafeGenerator struct {
	*Generator
	logger logger.Logger
}

// NewSafeGenerator creates a new safe generator with error handling
func NewSafeGenerator(config *ReportConfig, log logger.Logger) (*SafeGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewGenerator(config)
	if err != nil {
		return nil, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Use --output-format console, json or csv")
	}

	return &SafeGenerator{
		Generator: generator,
		logger:    log.WithComponent("reporter"),
	}, nil
}

// Write renders any supported result: *monthend.EvaluateResult,
// *monthend.MatchResult or *monthend.InspectResult
func (sg *SafeGenerator) Write(result any, writer io.Writer) error {
	sg.logger.WithFields(logger.Fields{
		"format": sg.config.Format,
		"output": getWriterDescription(writer),
		"result": fmt.Sprintf("%T", result),
	}).Debug("Starting report generation")

	if err := sg.validateInputs(result, writer); err != nil {
		sg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	if err := sg.generateWithFallback(result, writer); err != nil {
		sg.logger.WithError(err).Error("Report generation failed")
		return err
	}

	sg.logger.Debug("Report generation completed")
	return nil
}

func (sg *SafeGenerator) validateInputs(result any, writer io.Writer) error {
	if writer == nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "writer", nil, nil).
			WithSuggestion("Provide a valid output writer")
	}

	switch r := result.(type) {
	case *monthend.EvaluateResult:
		if r != nil {
			return nil
		}
	case *monthend.MatchResult:
		if r != nil && r.Batch != nil {
			return nil
		}
	case *monthend.InspectResult:
		if r != nil {
			return nil
		}
	default:
		if result != nil {
			return apperrors.ValidationError(
				apperrors.CodeInvalidData,
				"result_type",
				fmt.Sprintf("%T", result),
				nil,
			).WithSuggestion("Provide an evaluation, match or inspect result")
		}
	}
	return apperrors.ValidationError(apperrors.CodeMissingField, "result", nil, nil).
		WithSuggestion("Provide a non-empty run result")
}

func (sg *SafeGenerator) render(g *Generator, result any, writer io.Writer) error {
	switch r := result.(type) {
	case *monthend.EvaluateResult:
		return g.WriteFindings(r, writer)
	case *monthend.MatchResult:
		return g.WriteMatches(r, writer)
	case *monthend.InspectResult:
		return g.WriteDiagnostics(r, writer)
	}
	return fmt.Errorf("unsupported result type %T", result)
}

// generateWithFallback retries in console format, or into a backup file
// next to the original when the output file cannot be written
func (sg *SafeGenerator) generateWithFallback(result any, writer io.Writer) error {
	err := sg.render(sg.Generator, result, writer)
	if err == nil {
		return nil
	}

	sg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")

	if sg.shouldAttemptOutputFallback(err, writer) {
		return sg.generateWithOutputFallback(result, writer, err)
	}
	if sg.config.Format != FormatConsole {
		return sg.generateWithFormatFallback(result, writer, err)
	}
	return sg.wrapGenerationError(err)
}

func (sg *SafeGenerator) generateWithFormatFallback(result any, writer io.Writer, originalErr error) error {
	fallbackConfig := sg.config.Clone()
	fallbackConfig.Format = FormatConsole

	sg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallback, err := NewGenerator(fallbackConfig)
	if err != nil {
		return sg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := sg.render(fallback, result, writer); err != nil {
		return apperrors.InternalError(
			apperrors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}
	return nil
}

func (sg *SafeGenerator) shouldAttemptOutputFallback(err error, writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok || file.Name() == "" || file == os.Stdout || file == os.Stderr {
		return false
	}
	return isFileError(err)
}

func (sg *SafeGenerator) generateWithOutputFallback(result any, writer io.Writer, originalErr error) error {
	originalPath := writer.(*os.File).Name()
	backupPath := generateBackupPath(originalPath)

	sg.logger.WithFields(logger.Fields{
		"original_file": originalPath,
		"backup_file":   backupPath,
	}).Info("Attempting output fallback")

	backup, err := os.Create(backupPath)
	if err != nil {
		return sg.wrapGenerationError(originalErr)
	}
	defer backup.Close()

	if err := sg.render(sg.Generator, result, backup); err != nil {
		return apperrors.InternalError(
			apperrors.CodeUnexpectedError,
			"report_output_fallback",
			fmt.Errorf("both primary and backup output failed: primary=%v, backup=%v", originalErr, err),
		)
	}

	fmt.Fprintf(os.Stderr, "Warning: Could not write to %s, report saved to %s\n", originalPath, backupPath)
	return nil
}

func (sg *SafeGenerator) wrapGenerationError(err error) error {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	return apperrors.InternalError(
		apperrors.CodeProcessingError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func isFileError(err error) bool {
	if errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrClosed) {
		return true
	}
	if errors.Is(err, syscall.ENOSPC) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no space left") || strings.Contains(msg, "disk full")
}

func generateBackupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}
