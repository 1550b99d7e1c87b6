// Package export renders result records as a spreadsheet and downloaded
// artifacts as a zip archive.
package export

import (
	"fmt"
	"io"

	"github.com/use-agent/judfetch/models"
	"github.com/xuri/excelize/v2"
)

// XLSXName is the download name of the spreadsheet.
const XLSXName = "裁判書查詢結果.xlsx"

// SheetName names the only worksheet.
const SheetName = "裁判書"

var header = []any{"序號", "裁判字號", "裁判日期", "裁判案由", "網址"}

var columnWidths = map[string]float64{"A": 8, "B": 48, "C": 22, "D": 24, "E": 80}

// WriteXLSX writes one header row and one row per record, in order.
func WriteXLSX(w io.Writer, records []models.ResultRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	for col, width := range columnWidths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{i + 1, rec.CaseNumber, rec.CaseDate, rec.CaseCategory, rec.URL}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
