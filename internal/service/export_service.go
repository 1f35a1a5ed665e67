package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/xuri/excelize/v2"
)

const resultsSheet = "Results"

// ResultSource supplies an exam definition and its submissions.
type ResultSource interface {
	ExamForExport(ctx context.Context, examKey string) (*grading.Exam, error)
	AllSubmissions(ctx context.Context, examKey string) ([]model.Submission, error)
}

// ExportService renders exam results as spreadsheets.
type ExportService struct {
	source ResultSource
	log    zerolog.Logger
}

// NewExportService creates a new ExportService.
func NewExportService(source ResultSource, log zerolog.Logger) *ExportService {
	return &ExportService{
		source: source,
		log:    log.With().Str("component", "export_service").Logger(),
	}
}

// Results builds an .xlsx workbook with one row per submission and one
// column per problem, followed by the total.
func (s *ExportService) Results(ctx context.Context, examKey string) ([]byte, error) {
	exam, err := s.source.ExamForExport(ctx, examKey)
	if err != nil {
		return nil, err
	}
	subs, err := s.source.AllSubmissions(ctx, examKey)
	if err != nil {
		return nil, err
	}

	buf, err := buildResultsWorkbook(exam, subs)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("exam_id", examKey).Int("rows", len(subs)).Msg("Results exported")
	return buf, nil
}

func buildResultsWorkbook(exam *grading.Exam, subs []model.Submission) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	problems := exam.Problems()
	header := make([]any, 0, len(problems)+4)
	header = append(header, "User ID", "Username", "Submitted At")
	for _, p := range problems {
		header = append(header, fmt.Sprintf("Q%s (%g)", p.ID, p.Max()))
	}
	header = append(header, fmt.Sprintf("Total (%g)", grading.Round2(exam.MaxTotal())))

	if err := f.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(resultsSheet, "A1", last, bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, sub := range subs {
		row := make([]any, 0, len(header))
		row = append(row, sub.UserID, sub.Username, sub.SubmittedAt.Format("2006-01-02 15:04:05"))
		for _, p := range problems {
			row = append(row, sub.Report.Score(p.ID))
		}
		row = append(row, sub.Report.Total)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(resultsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
