package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/glowcart/optimizer-cli/internal/model"
)

func readSheet(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, f.Sheets)

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows
}

func TestWriteRecords(t *testing.T) {
	applied := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	records := []model.OptimizationRecord{
		{
			ShopDomain:     "acme.myshopify.com",
			ProductID:      "123",
			Type:           model.TypeTitle,
			OriginalValue:  "Red Shoes",
			OptimizedValue: "Crimson Running Shoes for Daily Comfort",
			CreditsUsed:    1,
			AppliedAt:      applied,
		},
		{
			ShopDomain:     "acme.myshopify.com",
			ProductID:      "456",
			Type:           model.TypePricing,
			OriginalValue:  "19.00",
			OptimizedValue: "18.99",
			CreditsUsed:    1,
			AppliedAt:      applied.Add(time.Hour),
		},
	}

	path := filepath.Join(t.TempDir(), "records.xlsx")
	require.NoError(t, WriteRecords(path, records))

	rows := readSheet(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, recordColumns, rows[0])
	assert.Equal(t, []string{
		"acme.myshopify.com", "123", "title",
		"Red Shoes", "Crimson Running Shoes for Daily Comfort",
		"1", "2026-03-14T09:30:00Z",
	}, rows[1])
	assert.Equal(t, "456", rows[2][1])
	assert.Equal(t, "pricing", rows[2][2])
}

func TestWriteRecords_EmptyKeepsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteRecords(path, nil))

	rows := readSheet(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, recordColumns, rows[0])
}

func TestWriteRecords_BadPath(t *testing.T) {
	err := WriteRecords(filepath.Join(t.TempDir(), "missing", "records.xlsx"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report: save")
}
