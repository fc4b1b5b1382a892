// Package sheet reads and writes inventory spreadsheets.
package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"bloodbank/m/domain"
)

const SheetName = "Inventory"

// Header is the column layout used for both import and export.
var Header = []string{"Blood Type", "Donation Date", "Units"}

// WriteInventory writes batches as an xlsx workbook, one row per batch.
func WriteInventory(w io.Writer, batches []domain.InventoryBatch) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range Header {
		if err := setCell(f, col+1, 1, title); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", "C1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "C", 16); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	for i, b := range batches {
		row := i + 2
		if err := setCell(f, 1, row, string(b.BloodType)); err != nil {
			return err
		}
		if err := setCell(f, 2, row, b.DonationDate); err != nil {
			return err
		}
		if err := setCell(f, 3, row, b.Units); err != nil {
			return err
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}

// ReadInventory parses the first sheet of an xlsx workbook. Columns are
// located by header name; blank lines are skipped. The first invalid row
// aborts the read with a *domain.ValidationError naming the line.
func ReadInventory(r io.Reader) ([]domain.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.NewValidationError("file", "not a readable xlsx workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.NewValidationError("file", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return parseRecords(rows)
}

// ReadInventoryCSV parses the same layout from comma separated text.
func ReadInventoryCSV(r io.Reader) ([]domain.ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, domain.NewValidationError("file", "not a readable csv file: "+err.Error())
	}
	return parseRecords(rows)
}

func parseRecords(rows [][]string) ([]domain.ImportRow, error) {
	if len(rows) == 0 {
		return nil, domain.NewValidationError("file", "missing header row")
	}

	cols, err := locateColumns(rows[0])
	if err != nil {
		return nil, err
	}

	var out []domain.ImportRow
	for i, record := range rows[1:] {
		line := i + 2
		if blank(record) {
			continue
		}
		row, err := parseRow(line, cellAt(record, cols[0]), cellAt(record, cols[1]), cellAt(record, cols[2]))
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func locateColumns(header []string) ([3]int, error) {
	cols := [3]int{-1, -1, -1}
	for i, title := range header {
		for j, want := range Header {
			if strings.EqualFold(strings.TrimSpace(title), want) {
				cols[j] = i
			}
		}
	}
	for j, c := range cols {
		if c < 0 {
			return cols, domain.NewValidationError("header", fmt.Sprintf("missing column %q", Header[j]))
		}
	}
	return cols, nil
}

func parseRow(line int, rawType, rawDate, rawUnits string) (domain.ImportRow, error) {
	field := "row " + strconv.Itoa(line)
	bt, err := domain.ParseBloodType(rawType)
	if err != nil {
		return domain.ImportRow{}, domain.NewValidationError(field, fmt.Sprintf("unknown blood type %q", rawType))
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return domain.ImportRow{}, domain.NewValidationError(field, fmt.Sprintf("invalid donation date %q", rawDate))
	}
	units, err := strconv.ParseInt(strings.TrimSpace(rawUnits), 10, 64)
	if err != nil {
		// Numeric cells may come back as "5.0"
		f, ferr := strconv.ParseFloat(strings.TrimSpace(rawUnits), 64)
		if ferr != nil || f != float64(int64(f)) {
			return domain.ImportRow{}, domain.NewValidationError(field, fmt.Sprintf("units %q is not an integer", rawUnits))
		}
		units = int64(f)
	}
	if units <= 0 {
		return domain.ImportRow{}, domain.NewValidationError(field, "units must be positive")
	}
	return domain.ImportRow{Line: line, BloodType: bt, DonationDate: date, Units: units}, nil
}

// parseDate accepts YYYY-MM-DD text, a timestamp whose first ten characters
// are a date, or an Excel serial date.
func parseDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > len(domain.DateLayout) && (raw[10] == ' ' || raw[10] == 'T') {
		raw = raw[:len(domain.DateLayout)]
	}
	if date, err := domain.ParseDate("donation_date", raw); err == nil {
		return date, nil
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", err
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", err
	}
	return domain.FormatDate(t), nil
}

func cellAt(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
