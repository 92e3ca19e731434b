package export_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sdvlabs/campusbot/internal/models"
	"github.com/sdvlabs/campusbot/pkg/export"
)

func testLead(email string, ts time.Time) models.Lead {
	return models.Lead{
		ID:        "lead-" + email,
		LastName:  "Dupont",
		FirstName: "Marie",
		Phone:     "06.12.34.56.78",
		Email:     email,
		Timestamp: ts,
	}
}

func TestExcelWriterAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads", "students.xlsx")
	w := export.NewExcelWriter(path)

	now := time.Now()
	require.NoError(t, w.Append(testLead("marie@example.com", now)))
	require.NoError(t, w.Append(testLead("paul@example.com", now)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"nom", "prenom", "telephone", "email", "timestamp"}, rows[0])
	assert.Equal(t, "Dupont", rows[1][0])
	assert.Equal(t, "Marie", rows[1][1])
	assert.Equal(t, "06.12.34.56.78", rows[1][2])
	assert.Equal(t, "marie@example.com", rows[1][3])
	assert.Equal(t, "paul@example.com", rows[2][3])
}

func TestExcelWriterAddsSuffix(t *testing.T) {
	w := export.NewExcelWriter(filepath.Join(t.TempDir(), "students"))
	assert.Equal(t, ".xlsx", filepath.Ext(w.Path()))
}

func TestExcelWriterStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.xlsx")
	w := export.NewExcelWriter(path)

	// empty workbook, no file yet
	stats, err := w.Stats()
	require.NoError(t, err)
	assert.Equal(t, models.LeadStats{}, stats)

	now := time.Now()
	lastWeek := now.AddDate(0, 0, -7)

	require.NoError(t, w.Append(testLead("old@example.com", lastWeek)))
	require.NoError(t, w.Append(testLead("new1@example.com", now)))
	require.NoError(t, w.Append(testLead("new2@example.com", now)))

	stats, err = w.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Today)
}
