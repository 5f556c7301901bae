// Package export renders stored readings as CSV, XLSX or PDF documents.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/quentinrf/geiger-monitor/internal/domain"
)

// Format selects the export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported formats.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts "csv", "xlsx" or "pdf" in any case. Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

var header = []string{"timestamp", "counts_per_second", "counts_per_minute", "microsieverts_per_hour", "mode"}

// WriteCSV writes one header row and one row per reading.
func WriteCSV(w io.Writer, readings []*domain.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range readings {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatInt(r.CountsPerSecond, 10),
			strconv.FormatInt(r.CountsPerMinute, 10),
			strconv.FormatFloat(r.MicrosievertsPerHour, 'f', -1, 64),
			string(r.Mode),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// BuildXLSX renders a readings sheet and a summary sheet.
func BuildXLSX(readings []*domain.Reading) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	readingsSheet := "readings"
	summarySheet := "summary"
	if err := f.SetSheetName("Sheet1", readingsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(readingsSheet, cell, h)
	}
	for i, r := range readings {
		row := i + 2
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", row), r.Timestamp.UTC().Format(time.RFC3339Nano))
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", row), r.CountsPerSecond)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("C%d", row), r.CountsPerMinute)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("D%d", row), r.MicrosievertsPerHour)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("E%d", row), string(r.Mode))
	}

	s := Summarize(readings)
	_ = f.SetCellValue(summarySheet, "A1", "Geiger Readings")
	_ = f.SetCellValue(summarySheet, "A3", "Count")
	_ = f.SetCellValue(summarySheet, "B3", s.Count)
	if s.Count > 0 {
		_ = f.SetCellValue(summarySheet, "A4", "First")
		_ = f.SetCellValue(summarySheet, "B4", s.First.Format(time.RFC3339))
		_ = f.SetCellValue(summarySheet, "A5", "Last")
		_ = f.SetCellValue(summarySheet, "B5", s.Last.Format(time.RFC3339))
		_ = f.SetCellValue(summarySheet, "A6", "Average CPS")
		_ = f.SetCellValue(summarySheet, "B6", s.AverageCPS)
		_ = f.SetCellValue(summarySheet, "A7", "Min CPS")
		_ = f.SetCellValue(summarySheet, "B7", s.MinCPS)
		_ = f.SetCellValue(summarySheet, "A8", "Max CPS")
		_ = f.SetCellValue(summarySheet, "B8", s.MaxCPS)
		_ = f.SetCellValue(summarySheet, "A9", "Max uSv/h")
		_ = f.SetCellValue(summarySheet, "B9", s.MaxMicrosieverts)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders a one-page summary followed by a readings table.
func BuildPDF(readings []*domain.Reading) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Geiger Readings")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)

	s := Summarize(readings)
	pdf.Cell(0, 6, fmt.Sprintf("Count: %d", s.Count))
	pdf.Ln(5)
	if s.Count > 0 {
		pdf.Cell(0, 6, fmt.Sprintf("From: %s", s.First.Format(time.RFC3339)))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("To: %s", s.Last.Format(time.RFC3339)))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("CPS avg/min/max: %.2f / %d / %d", s.AverageCPS, s.MinCPS, s.MaxCPS))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Peak dose rate (uSv/h): %.3f", s.MaxMicrosieverts))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	// Readings table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Timestamp (UTC)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "CPS", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "CPM", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "uSv/h", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Mode", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, r := range readings {
		pdf.CellFormat(60, 6, r.Timestamp.UTC().Format("2006-01-02 15:04:05"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", r.CountsPerSecond), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", r.CountsPerMinute), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", r.MicrosievertsPerHour), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, string(r.Mode), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Summary aggregates a set of readings.
type Summary struct {
	Count            int
	First, Last      time.Time
	AverageCPS       float64
	MinCPS, MaxCPS   int64
	MaxMicrosieverts float64
}

// Summarize computes count and CPS statistics. Readings need not be sorted.
func Summarize(readings []*domain.Reading) Summary {
	s := Summary{Count: len(readings)}
	if len(readings) == 0 {
		return s
	}

	var sum int64
	for i, r := range readings {
		sum += r.CountsPerSecond
		if i == 0 || r.Timestamp.Before(s.First) {
			s.First = r.Timestamp
		}
		if i == 0 || r.Timestamp.After(s.Last) {
			s.Last = r.Timestamp
		}
		if i == 0 || r.CountsPerSecond < s.MinCPS {
			s.MinCPS = r.CountsPerSecond
		}
		if i == 0 || r.CountsPerSecond > s.MaxCPS {
			s.MaxCPS = r.CountsPerSecond
		}
		if r.MicrosievertsPerHour > s.MaxMicrosieverts {
			s.MaxMicrosieverts = r.MicrosievertsPerHour
		}
	}
	s.AverageCPS = float64(sum) / float64(len(readings))
	return s
}

// Write encodes readings in the given format.
func Write(w io.Writer, format Format, readings []*domain.Reading) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, readings)
	case FormatXLSX:
		b, err := BuildXLSX(readings)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case FormatPDF:
		b, err := BuildPDF(readings)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
