// Package export renders requisitions and the inventory as CSV or XLSX spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"alforge/apperr"
	"alforge/models"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

const (
	Requisitions = "requisitions"
	Equipment    = "equipment"
)

// ParseName splits "requisitions.xlsx" into its dataset and format.
func ParseName(name string) (dataset string, f Format, err error) {
	base, ext, ok := strings.Cut(strings.ToLower(strings.TrimSpace(name)), ".")
	if !ok {
		return "", "", apperr.InvalidArgument("export name needs an extension, e.g. requisitions.csv")
	}
	switch base {
	case Requisitions, Equipment:
	default:
		return "", "", apperr.InvalidArgument("unknown export %q", base)
	}
	switch Format(ext) {
	case CSV, XLSX:
		return base, Format(ext), nil
	}
	return "", "", apperr.InvalidArgument("unknown export format %q", ext)
}

type Column[T any] struct {
	Label string
	Value func(T) string
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

var RequisitionColumns = []Column[models.Requisition]{
	{"id", func(r models.Requisition) string { return r.ID }},
	{"state", func(r models.Requisition) string { return string(r.State) }},
	{"startDate", func(r models.Requisition) string { return day(r.StartDate) }},
	{"endDate", func(r models.Requisition) string { return day(r.EndDate) }},
	{"requesterId", func(r models.Requisition) string { return r.RequesterID }},
	{"requesterName", func(r models.Requisition) string { return r.RequesterName }},
	{"notes", func(r models.Requisition) string { return r.Notes }},
	{"createdAt", func(r models.Requisition) string { return stamp(&r.CreatedAt) }},
}

var EquipmentColumns = []Column[models.Equipment]{
	{"code", func(e models.Equipment) string { return e.Code }},
	{"usageCode", func(e models.Equipment) string { return e.UsageCode }},
	{"typeCode", func(e models.Equipment) string { return e.TypeCode }},
	{"name", func(e models.Equipment) string { return e.Name }},
	{"status", func(e models.Equipment) string { return string(e.Status) }},
	{"operational", func(e models.Equipment) string { return string(e.Operational) }},
	{"condition", func(e models.Equipment) string { return string(e.Condition) }},
	{"lastRequisitionedAt", func(e models.Equipment) string { return stamp(e.LastRequisitionedAt) }},
	{"notes", func(e models.Equipment) string { return e.Notes }},
}

// WriteCSV writes a UTF-8 BOM first so spreadsheet apps pick the right encoding.
func WriteCSV[T any](w io.Writer, cols []Column[T], rows []T) error {
	if _, err := io.WriteString(w, "\uFEFF"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	rec := make([]string, len(cols))
	for i, c := range cols {
		rec[i] = c.Label
	}
	if err := cw.Write(rec); err != nil {
		return err
	}
	for _, row := range rows {
		for i, c := range cols {
			rec[i] = c.Value(row)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteXLSX[T any](w io.Writer, sheet string, cols []Column[T], rows []T) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c.Label
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}

	for r, row := range rows {
		vals := make([]interface{}, len(cols))
		for i, c := range cols {
			vals[i] = c.Value(row)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return fmt.Errorf("row %d: %w", r+1, err)
		}
	}
	_, err = f.WriteTo(w)
	return err
}

// Write renders one dataset in the requested format.
func Write(w io.Writer, f Format, reqs []models.Requisition, items []models.Equipment, dataset string) error {
	switch {
	case dataset == Requisitions && f == CSV:
		return WriteCSV(w, RequisitionColumns, reqs)
	case dataset == Requisitions && f == XLSX:
		return WriteXLSX(w, Requisitions, RequisitionColumns, reqs)
	case dataset == Equipment && f == CSV:
		return WriteCSV(w, EquipmentColumns, items)
	case dataset == Equipment && f == XLSX:
		return WriteXLSX(w, Equipment, EquipmentColumns, items)
	}
	return apperr.InvalidArgument("unknown export %s.%s", dataset, f)
}
