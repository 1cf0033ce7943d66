// Package export writes register data out as a spreadsheet report.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/vbonduro/cashreg/internal/domain"
)

// sheet is one worksheet and the query that fills it.
type sheet struct {
	name  string
	query string
}

var sheets = []sheet{
	{"Transactions", `SELECT * FROM transactions ORDER BY id`},
	{"Inventory", `SELECT * FROM inventory ORDER BY id`},
	// ID image paths stay out of the report.
	{"Customers", `
		SELECT id, first_name, last_name, email, phone, address, city, state, zip_code, dob, date_added
		FROM customers ORDER BY id
	`},
}

// ToExcel writes every register table to an .xlsx workbook at path, one
// sheet per table with the column names as a header row. Nothing is written
// to path unless every sheet was read.
func ToExcel(ctx context.Context, db *sql.DB, path string) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("failed to close workbook", "error", err)
		}
	}()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", s.name, err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", s.name, err)
		}
		if err := writeSheet(ctx, db, f, s); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func writeSheet(ctx context.Context, db *sql.DB, f *excelize.File, s sheet) error {
	rows, err := db.QueryContext(ctx, s.query)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w: %v", s.name, domain.ErrStorage, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read %s columns: %w: %v", s.name, domain.ErrStorage, err)
	}
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(s.name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", s.name, err)
	}

	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	row := 2
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan %s row: %w: %v", s.name, domain.ErrStorage, err)
		}
		cells := make([]any, len(values))
		for i, v := range values {
			cells[i] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &cells); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", s.name, row, err)
		}
		row++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate %s: %w: %v", s.name, domain.ErrStorage, err)
	}
	return nil
}

func cellValue(v any) any {
	switch v := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	default:
		return v
	}
}
