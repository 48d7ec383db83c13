// Package report renders optimization records as XLSX workbooks so
// merchants can review applied changes outside the CLI.
package report

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/glowcart/optimizer-cli/internal/model"
)

// recordColumns is the column layout of the Records sheet.
var recordColumns = []string{
	"Shop Domain",
	"Product ID",
	"Type",
	"Original Value",
	"Optimized Value",
	"Credits Used",
	"Applied At",
}

// WriteRecords writes records to an XLSX workbook with a single Records
// sheet. The header row is present even when records is empty.
func WriteRecords(path string, records []model.OptimizationRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Records")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range recordColumns {
		header.AddCell().SetString(col)
	}

	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.ShopDomain)
		row.AddCell().SetString(rec.ProductID)
		row.AddCell().SetString(string(rec.Type))
		row.AddCell().SetString(rec.OriginalValue)
		row.AddCell().SetString(rec.OptimizedValue)
		row.AddCell().SetInt64(rec.CreditsUsed)
		row.AddCell().SetString(rec.AppliedAt.UTC().Format(time.RFC3339))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}
