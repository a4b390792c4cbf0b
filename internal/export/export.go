// Package export writes daily usage to CSV or JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/j-veylop/token-monitor-tui/internal/logger"
	"github.com/j-veylop/token-monitor-tui/internal/models"
)

// ErrNoData is returned when there are no days to export.
var ErrNoData = errors.New("no data to export")

// Format is an export file format.
type Format int

// Formats.
const (
	FormatCSV Format = iota
	FormatJSON
)

// String returns the file extension of the format.
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "csv"
}

var csvHeader = []string{
	"date", "input_tokens", "output_tokens", "total_tokens",
	"cost_usd", "session_count", "message_count",
}

// record is one exported day.
type record struct {
	models.DailyActivity
	TotalTokens int64 `json:"total_tokens"`
}

func records(days []models.DailyActivity) []record {
	out := make([]record, len(days))
	for i, d := range days {
		out[i] = record{DailyActivity: d, TotalTokens: d.InputTokens + d.OutputTokens}
	}
	return out
}

// Write encodes days to w in the given format.
func Write(w io.Writer, f Format, days []models.DailyActivity) error {
	if len(days) == 0 {
		return ErrNoData
	}
	if f == FormatJSON {
		return writeJSON(w, days)
	}
	return writeCSV(w, days)
}

func writeJSON(w io.Writer, days []models.DailyActivity) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records(days))
}

func writeCSV(w io.Writer, days []models.DailyActivity) error {
	// UTF-8 BOM so spreadsheet apps detect the encoding.
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records(days) {
		row := []string{
			r.Date,
			strconv.FormatInt(r.InputTokens, 10),
			strconv.FormatInt(r.OutputTokens, 10),
			strconv.FormatInt(r.TotalTokens, 10),
			strconv.FormatFloat(r.CostUSD, 'f', -1, 64),
			strconv.FormatInt(r.SessionCount, 10),
			strconv.FormatInt(r.MessageCount, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName returns the file name used for days, named after their range.
func FileName(f Format, days []models.DailyActivity) string {
	if len(days) == 0 {
		return "usage." + f.String()
	}
	start := strings.ReplaceAll(days[0].Date, "-", "")
	end := strings.ReplaceAll(days[len(days)-1].Date, "-", "")
	return fmt.Sprintf("usage_%s_%s.%s", start, end, f)
}

// ToFile writes days into dir and returns the path of the new file. An
// existing export of the same range is replaced.
func ToFile(dir string, f Format, days []models.DailyActivity) (path string, err error) {
	if len(days) == 0 {
		return "", ErrNoData
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path = filepath.Join(dir, FileName(f, days))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := Write(file, f, days); err != nil {
		return "", fmt.Errorf("failed to write %s export: %w", f, err)
	}

	logger.Info("usage exported", "path", path, "days", len(days))
	return path, nil
}
