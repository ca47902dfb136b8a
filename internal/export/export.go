// Package export выгружает сетку смен в XLSX, а при сбое - в CSV с BOM.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"shift-planner/pkg/calendar"
)

const sheetName = "排班"

// Format - результат выгрузки: расширение и MIME-тип
type Format struct {
	Ext         string
	ContentType string
}

var (
	XLSX = Format{Ext: "xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}
	CSV  = Format{Ext: "csv", ContentType: "text/csv; charset=utf-8"}
)

// Table - шапка и строки выгрузки
type Table struct {
	Header []string
	Rows   [][]string
}

// BuildTable: шапка 日期, 星期, сотрудники; по строке на каждый день периода
func BuildTable(employees []string, span calendar.Span, data map[string]map[string]string) Table {
	header := append([]string{"日期", "星期"}, employees...)
	rows := make([][]string, 0, span.Days())
	for d := range span.Dates() {
		key := d.String()
		row := make([]string, 0, len(header))
		row = append(row, key, d.WeekdayLabel())
		for _, e := range employees {
			row = append(row, data[key][e])
		}
		rows = append(rows, row)
	}
	return Table{Header: header, Rows: rows}
}

// Filename - имя файла без расширения
func Filename(span calendar.Span) string {
	return fmt.Sprintf("排班_%s_%s", span.Start, span.End)
}

// WriteXLSX пишет таблицу в книгу с одним листом
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return err
	}
	all := append([][]string{t.Header}, t.Rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		XSplit:      2,
		YSplit:      1,
		TopLeftCell: "C2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

// WriteCSV пишет UTF-8 CSV с BOM, чтобы Excel правильно открыл иероглифы
func WriteCSV(w io.Writer, t Table) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// Write пробует XLSX и откатывается на CSV
func Write(w io.Writer, t Table, logger logrus.FieldLogger) (Format, error) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, t); err != nil {
		logger.WithError(err).Warn("XLSX export failed, falling back to CSV")
		return CSV, WriteCSV(w, t)
	}
	_, err := buf.WriteTo(w)
	return XLSX, err
}
