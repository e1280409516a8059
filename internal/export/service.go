// Package export renders a user's saved analyses as a spreadsheet.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/lumo-backend/internal/analyses"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
	"github.com/joseph-ayodele/lumo-backend/internal/llm"
	"github.com/joseph-ayodele/lumo-backend/internal/utils"
)

const sheet = "Analyses"

// Lister returns a user's analyses newest first. repository.AnalysisRepository satisfies it.
type Lister interface {
	ListByUser(ctx context.Context, userID string) ([]*entity.Analysis, error)
}

// Service is a tiny façade over the analyses repository that produces XLSX bytes.
type Service struct {
	repo   Lister
	logger *slog.Logger
}

func NewService(repo Lister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportAnalysesXLSX returns a workbook with one row per marker of every analysis created in [from, to).
// Nil bounds are open.
func (s *Service) ExportAnalysesXLSX(ctx context.Context, userID string, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Analysis Date",
		"Title",
		"Test Date",
		"Marker",
		"Value",
		"Unit",
		"Reference Range",
		"Status",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	row, exported := 2, 0
	for _, a := range rows {
		if from != nil && a.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && !a.CreatedAt.Before(*to) {
			continue
		}
		exported++

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		title := analyses.Title(a)
		parsed := s.decode(a)

		markers := parsed.TestResults
		if len(markers) == 0 {
			write(1, a.CreatedAt.UTC().Format("2006-01-02"))
			write(2, title)
			if parsed.PatientInfo.TestDate != nil {
				write(3, *parsed.PatientInfo.TestDate)
			}
			row++
			continue
		}
		for _, m := range markers {
			write(1, a.CreatedAt.UTC().Format("2006-01-02"))
			write(2, title)
			write(3, utils.StrOrEmpty(parsed.PatientInfo.TestDate))
			write(4, utils.Truncate(m.Marker, 120))
			write(5, utils.StrOrEmpty(m.Value))
			write(6, utils.StrOrEmpty(m.Unit))
			write(7, utils.StrOrEmpty(m.ReferenceRange))
			write(8, string(m.Status))
			row++
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 14) // date
	_ = f.SetColWidth(sheet, "B", "B", 32) // title
	_ = f.SetColWidth(sheet, "C", "C", 14)
	_ = f.SetColWidth(sheet, "D", "D", 28) // marker
	_ = f.SetColWidth(sheet, "E", "F", 12)
	_ = f.SetColWidth(sheet, "G", "G", 20)
	_ = f.SetColWidth(sheet, "H", "H", 10)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"user_id", userID,
		"analyses", exported,
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// decode reads parsed_data leniently; unreadable payloads export as a bare row.
func (s *Service) decode(a *entity.Analysis) llm.ExtractionResult {
	out := llm.EmptyExtraction()
	norm, _, err := llm.NormalizeExtractionJSON(a.ParsedData, s.logger)
	if err != nil {
		s.logger.Warn("export.parsed_data.unreadable", "analysis_id", a.ID, "error", err)
		return out
	}
	if err := json.Unmarshal(norm, &out); err != nil {
		s.logger.Warn("export.parsed_data.unreadable", "analysis_id", a.ID, "error", err)
		return llm.EmptyExtraction()
	}
	return out
}
