package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sdvlabs/campusbot/internal/models"
)

const sheetName = "Sheet1"

// Column order of the lead workbook.
var headers = []string{"nom", "prenom", "telephone", "email", "timestamp"}

// ExcelWriter appends completed leads to an .xlsx workbook, creating it
// with a header row on first use.
type ExcelWriter struct {
	path string
	mu   sync.Mutex
}

func NewExcelWriter(path string) *ExcelWriter {
	if !strings.HasSuffix(path, ".xlsx") {
		path += ".xlsx"
	}
	return &ExcelWriter{path: path}
}

func (w *ExcelWriter) Path() string {
	return w.path
}

// Append writes one lead as a new row.
func (w *ExcelWriter) Append(lead models.Lead) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f, created, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if created {
		header := make([]interface{}, len(headers))
		for i, h := range headers {
			header[i] = h
		}
		if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("failed to read workbook: %w", err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return fmt.Errorf("failed to locate next row: %w", err)
	}

	row := []interface{}{
		lead.LastName,
		lead.FirstName,
		lead.Phone,
		lead.Email,
		lead.Timestamp.Format(time.RFC3339),
	}
	if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("failed to write lead: %w", err)
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	return nil
}

// Stats counts the stored leads, and how many arrived today.
func (w *ExcelWriter) Stats() (models.LeadStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.LeadStats{}, nil
		}
		return models.LeadStats{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return models.LeadStats{}, fmt.Errorf("failed to read workbook: %w", err)
	}

	stats := models.LeadStats{}
	today := time.Now().Format("2006-01-02")

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		stats.Total++
		if len(row) >= 5 && strings.HasPrefix(row[4], today) {
			stats.Today++
		}
	}

	return stats, nil
}

func (w *ExcelWriter) open() (f *excelize.File, created bool, err error) {
	f, err = excelize.OpenFile(w.path)
	if err == nil {
		return f, false, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	return nil, false, fmt.Errorf("failed to open workbook: %w", err)
}
