package report

import (
	"fmt"
	"strings"
	"time"

	"NarrativeScout/backend/go/internal/analysis"
	"NarrativeScout/backend/go/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	signalsSheet = "Signals"
	groupsSheet  = "Groups"
)

// WriteSignalsWorkbook saves signals and their category groups to an .xlsx file
// with one sheet each.
func WriteSignalsWorkbook(path string, signals []models.Signal, groups []analysis.SignalGroup) error {
	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes "Signals".
	if err := f.SetSheetName(f.GetSheetName(0), signalsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(groupsSheet); err != nil {
		return err
	}

	rows := [][]interface{}{{"Index", "Source", "Category", "Title", "Description", "Metrics", "URL", "Timestamp"}}
	for i, s := range signals {
		rows = append(rows, []interface{}{
			i, s.Source.String(), s.Category, s.Title, s.Description,
			strings.Join(metricStrings(s.Metrics), "; "), s.URLOrEmpty(), s.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	if err := writeRows(f, signalsSheet, rows); err != nil {
		return err
	}

	rows = [][]interface{}{{"Category", "Signals", "Source diversity", "Key metrics", "Unit conflicts"}}
	for _, g := range groups {
		rows = append(rows, []interface{}{
			g.Category, g.TotalSignals, g.SourceDiversity,
			strings.Join(metricStrings(g.KeyMetrics), "; "), strings.Join(g.UnitConflicts, ", "),
		})
	}
	if err := writeRows(f, groupsSheet, rows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
