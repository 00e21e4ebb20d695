// Package xlsx reads analysis records from an Excel workbook with one sheet
// per record kind.
package xlsx

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okian/flightrisk/internal/adapters/source"
	"github.com/okian/flightrisk/internal/domain/model"
)

// Sheet names and their column order. The first row of every sheet is a
// header and is skipped.
const (
	SheetPeople      = "People"
	SheetEvaluations = "Evaluations"
	SheetAttendance  = "Attendance"
)

var headers = map[string][]any{
	SheetPeople:      {"id", "name", "hire_date", "organization_unit"},
	SheetEvaluations: {"id", "person_id", "evaluated_at", "overall_score"},
	SheetAttendance:  {"id", "employee_id", "date", "status"},
}

// Workbook loads records from the workbook at a fixed path. The file is
// reopened on every Load so edits are picked up by the next run.
type Workbook struct {
	path string
}

// New creates a workbook source for path.
func New(path string) *Workbook {
	return &Workbook{path: path}
}

// Load reads the People, Evaluations and Attendance sheets.
func (w *Workbook) Load(ctx context.Context) (model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %w", source.ErrLoad, err)
	}

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("%w: open workbook: %w", source.ErrLoad, err)
	}
	defer f.Close()

	var data model.Dataset
	if data.People, err = readSheet(f, SheetPeople, parsePerson); err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %w", source.ErrLoad, err)
	}
	if data.Evaluations, err = readSheet(f, SheetEvaluations, parseEvaluation); err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %w", source.ErrLoad, err)
	}
	if data.Attendance, err = readSheet(f, SheetAttendance, parseAttendance); err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %w", source.ErrLoad, err)
	}
	return data, nil
}

func readSheet[T any](f *excelize.File, sheet string, parse func(row []string) (T, error)) ([]T, error) {
	// Raw values keep date cells as serials instead of locale formatted text.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet, err)
	}

	var out []T
	for i, row := range rows {
		if i == 0 || blank(row) {
			continue
		}
		v, err := parse(pad(row, len(headers[sheet])))
		if err != nil {
			return nil, fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parsePerson(row []string) (model.Person, error) {
	p := model.Person{
		ID:               row[0],
		Name:             row[1],
		OrganizationUnit: row[3],
	}
	if p.ID == "" {
		return p, fmt.Errorf("%w: missing id", source.ErrBadRecord)
	}
	if row[2] != "" {
		t, err := cellTime(row[2])
		if err != nil {
			return p, err
		}
		p.HireDate = &t
	}
	return p, nil
}

func parseEvaluation(row []string) (model.EvaluationRecord, error) {
	r := model.EvaluationRecord{ID: row[0], PersonID: row[1]}
	if r.PersonID == "" {
		return r, fmt.Errorf("%w: missing person_id", source.ErrBadRecord)
	}
	at, err := cellTime(row[2])
	if err != nil {
		return r, err
	}
	r.EvaluatedAt = at
	if r.OverallScore, err = strconv.ParseFloat(row[3], 64); err != nil {
		return r, fmt.Errorf("%w: overall_score %q", source.ErrBadRecord, row[3])
	}
	return r, nil
}

func parseAttendance(row []string) (model.AttendanceRecord, error) {
	r := model.AttendanceRecord{ID: row[0], EmployeeID: row[1], Status: model.AttendanceStatus(row[3])}
	if r.EmployeeID == "" {
		return r, fmt.Errorf("%w: missing employee_id", source.ErrBadRecord)
	}
	d, err := cellTime(row[2])
	if err != nil {
		return r, err
	}
	r.Date = d
	return r, nil
}

// cellTime accepts text timestamps and Excel serial dates, which is how
// date formatted cells read back.
func cellTime(s string) (time.Time, error) {
	if t, err := source.ParseTime(s); err == nil {
		return t, nil
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", source.ErrBadTimestamp, s)
	}
	return excelize.ExcelDateToTime(serial, false)
}

func pad(row []string, n int) []string {
	out := make([]string, n)
	for i := range min(len(row), n) {
		out[i] = strings.TrimSpace(row[i])
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Write saves data as a workbook in the layout Load reads. Dates are
// written as text.
func Write(path string, data model.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	for _, sheet := range []string{SheetPeople, SheetEvaluations, SheetAttendance} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("xlsx: new sheet %s: %w", sheet, err)
		}
		h := headers[sheet]
		if err := f.SetSheetRow(sheet, "A1", &h); err != nil {
			return fmt.Errorf("xlsx: header %s: %w", sheet, err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("xlsx: drop default sheet: %w", err)
	}

	for i, p := range data.People {
		hire := ""
		if p.HireDate != nil {
			hire = p.HireDate.UTC().Format(time.DateOnly)
		}
		if err := setRow(f, SheetPeople, i, []any{p.ID, p.Name, hire, p.OrganizationUnit}); err != nil {
			return err
		}
	}
	for i, r := range data.Evaluations {
		if err := setRow(f, SheetEvaluations, i, []any{r.ID, r.PersonID, r.EvaluatedAt.UTC().Format(time.RFC3339), r.OverallScore}); err != nil {
			return err
		}
	}
	for i, r := range data.Attendance {
		if err := setRow(f, SheetAttendance, i, []any{r.ID, r.EmployeeID, r.Date.UTC().Format(time.DateOnly), string(r.Status)}); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx: save %s: %w", path, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, i int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, i+2)
	if err != nil {
		return fmt.Errorf("xlsx: %s row %d: %w", sheet, i+2, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("xlsx: %s row %d: %w", sheet, i+2, err)
	}
	return nil
}
