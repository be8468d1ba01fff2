package export

import (
	"fmt"
	"io"

	"evaluation-service/internal/domain"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Results"

var header = []interface{}{
	"Submitted At", "Full Name", "National ID", "Job Title", "Company", "Company PIN",
	"Attempt", "Score", "Passed", "Correct", "Questions", "Time Used (s)", "Timed Out",
}

// WriteResults renders one row per result record of quiz into an XLSX workbook.
func WriteResults(w io.Writer, quiz domain.Quiz, results []domain.ResultRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &[]interface{}{quiz.Title}); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A2", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, 1, 2, bold); err != nil {
		return err
	}

	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.SubmittedAt.UTC().Format("2006-01-02 15:04:05"),
			r.Respondent.FullName,
			r.Respondent.NationalID,
			r.Respondent.JobTitle,
			r.Respondent.CompanyName,
			r.CompanyPIN,
			r.AttemptNumber,
			r.Score,
			yesNo(r.Passed),
			r.CorrectCount,
			r.QuestionCount,
			r.TimeUsedSeconds,
			yesNo(r.Forced),
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(sheetName, "A", "E", 22); err != nil {
		return err
	}
	return f.Write(w)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
