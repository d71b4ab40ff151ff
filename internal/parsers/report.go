package parsers

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/report"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
)

// LoadReport reads a report snapshot exported by the accounting platform
func LoadReport(path string) (*report.Report, error) {
	file, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return DecodeReport(file, path)
}

// DecodeReport decodes a report snapshot from r. Numbers are kept as
// json.Number so amounts never pass through float64.
func DecodeReport(r io.Reader, name string) (*report.Report, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var rep report.Report
	if err := decoder.Decode(&rep); err != nil {
		appErr := apperrors.ParseError(apperrors.CodeInvalidFormat, name, 0, "", "", err).
			WithSuggestion("Export the report as JSON with a Rows.Row list")
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			appErr.WithContext("offset", syntaxErr.Offset)
		}
		return nil, appErr
	}
	return &rep, nil
}

func openInput(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err == nil {
		return file, nil
	}
	switch {
	case os.IsNotExist(err):
		return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
	case os.IsPermission(err):
		return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
	default:
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err)
	}
}
