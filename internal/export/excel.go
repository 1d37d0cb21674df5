// Package export renders attendance history as a downloadable spreadsheet.
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"dormtrack/internal/model"
)

const sheetName = "Attendance"

var headers = []string{"Date", "Dormitory", "Room", "Status"}

// StudentWorkbook builds an .xlsx workbook with one row per attendance
// record: date, dormitory and room from the record's snapshot (falling back
// to the student's current values), and a presence label.
func StudentWorkbook(student *model.Student, records []model.AttendanceRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}

	for i, rec := range records {
		status := "Absent"
		if rec.IsPresent {
			status = "Present"
		}
		row := []any{
			rec.Date.Format("2006-01-02"),
			fallback(rec.DormitoryName, student.DormitoryName),
			fallback(rec.RoomNumber, student.RoomNumber),
			status,
		}
		for col, val := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return nil, err
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 15)
	_ = f.SetColWidth(sheetName, "B", "B", 20)
	_ = f.SetColWidth(sheetName, "C", "D", 10)

	return f, nil
}

// Filename builds the download name for a student's attendance export.
func Filename(student *model.Student) string {
	return fmt.Sprintf("Attendance_%s.xlsx", strings.Join(strings.Fields(student.FullName), "_"))
}

func fallback(snapshot, current *string) string {
	if snapshot != nil && *snapshot != "" {
		return *snapshot
	}
	if current != nil && *current != "" {
		return *current
	}
	return "-"
}
