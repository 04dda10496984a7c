// Package report renders a learner session as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-scorm/internal/coursedata"
	"github.com/p-n-ai/pai-scorm/internal/scorm"
)

// Sheet names.
const (
	SheetProgress     = "Progress"
	SheetCourseData   = "Course data"
	SheetInteractions = "Interactions"
)

// Input is everything a report shows.
type Input struct {
	SessionID   string
	CourseID    string
	CourseTitle string
	Session     scorm.Snapshot
	Data        map[string]coursedata.Value
	Record      coursedata.Record
	GeneratedAt time.Time
}

// Write renders in as an XLSX workbook to w.
func Write(w io.Writer, in Input) error {
	f, err := Build(in)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// Build creates the workbook. The caller closes it.
func Build(in Input) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetProgress); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming progress sheet: %w", err)
	}
	for _, name := range []string{SheetCourseData, SheetInteractions} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("creating sheet %q: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	steps := []func(*excelize.File, Input, int) error{
		writeProgress,
		writeCourseData,
		writeInteractions,
	}
	for _, step := range steps {
		if err := step(f, in, header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeProgress(f *excelize.File, in Input, header int) error {
	generated := in.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	rows := [][]any{
		{"Field", "Value"},
		{"Session", in.SessionID},
		{"Course", in.CourseID},
		{"Title", in.CourseTitle},
		{"State", in.Session.State},
		{"SCORM version", string(in.Session.Version)},
		{"Connect attempts", in.Session.Attempts},
		{"Location", in.Session.Location},
		{"Suspend data length", len([]rune(in.Session.SuspendData))},
		{"Last persist target", string(in.Record.Target)},
		{"Last persist reason", string(in.Record.Reason)},
		{"Last persist at", formatTime(in.Record.At)},
		{"Persist pending", in.Record.Pending},
		{"Payload checksum", in.Record.Checksum},
		{"Generated at", formatTime(generated)},
	}
	return writeRows(f, SheetProgress, rows, header)
}

func writeCourseData(f *excelize.File, in Input, header int) error {
	keys := make([]string, 0, len(in.Data))
	for k := range in.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := [][]any{{"Key", "Value"}}
	for _, k := range keys {
		v := in.Data[k]
		if v == nil {
			v = ""
		}
		rows = append(rows, []any{k, v})
	}
	return writeRows(f, SheetCourseData, rows, header)
}

func writeInteractions(f *excelize.File, in Input, header int) error {
	rows := [][]any{{"Index", "Question", "Type", "Text", "Response", "Correct answer", "Result", "Objective"}}
	for _, it := range in.Session.Interactions {
		rows = append(rows, []any{
			it.ID,
			it.QuestionRef,
			it.QuestionType,
			it.QuestionText,
			it.LearnerResponse,
			it.CorrectAnswer,
			it.WasCorrect.String(),
			it.ObjectiveID,
		})
	}
	return writeRows(f, SheetInteractions, rows, header)
}

func writeRows(f *excelize.File, sheet string, rows [][]any, header int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
