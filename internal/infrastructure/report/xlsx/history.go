package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

const sheetName = "History"

var headers = []string{"Evaluation ID", "Company", "Grade", "Decision", "Created At"}

// WriteHistory writes past assessments as a single-sheet workbook.
func WriteHistory(w io.Writer, items []domain.EvaluationSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	for i, title := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return fmt.Errorf("write header %s: %w", cell, err)
		}
	}
	if err := f.SetRowStyle(sheetName, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for r, item := range items {
		created := ""
		if !item.CreatedAt.IsZero() {
			created = item.CreatedAt.UTC().Format("2006-01-02 15:04")
		}
		row := []any{item.ID, item.CompanyName, item.Grade, item.Decision, created}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}
	if err := f.SetColWidth(sheetName, "B", "B", 32); err != nil {
		return fmt.Errorf("size company column: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
