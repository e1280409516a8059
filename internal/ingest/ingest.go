// Package ingest imports lab reports from the local filesystem into saved analyses.
package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/analyses"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
	processor "github.com/joseph-ayodele/lumo-backend/internal/pipeline"
)

// Analyzer runs OCR and the model over one document.
type Analyzer interface {
	Analyze(ctx context.Context, r io.Reader, filename, contentType string) (processor.Output, error)
}

// Saver persists an analysis for a user. *analyses.Service satisfies it.
type Saver interface {
	Create(ctx context.Context, userID string, req analyses.CreateRequest) (*analyses.Record, error)
}

// FileResult is the per-file import outcome.
type FileResult struct {
	Path       string
	AnalysisID string
	Markers    int
	Err        string
}

// DirStats summarizes a directory import.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// Importer analyzes report files and saves each result as an analysis.
type Importer struct {
	analyzer Analyzer
	saver    Saver
	logger   *slog.Logger
}

func NewImporter(analyzer Analyzer, saver Saver, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{analyzer: analyzer, saver: saver, logger: logger}
}

// ImportPath analyzes a single file and stores the result under userID.
// The file name without its extension becomes the analysis title.
func (im *Importer) ImportPath(ctx context.Context, userID, path string) (FileResult, error) {
	res := FileResult{Path: path}
	start := time.Now()

	name := filepath.Base(path)
	contentType, ok := constants.CanonicalContentType("", name)
	if !ok {
		return res, common.InvalidInputErrorf("unsupported file %s: allowed types: %s", name, constants.AllowedContentTypeList())
	}
	f, err := os.Open(path)
	if err != nil {
		return res, common.WrapError(err, "open file")
	}
	defer f.Close()

	out, err := im.analyzer.Analyze(ctx, f, name, contentType)
	if err != nil {
		im.logger.Error("ingest.analyze.failed", "path", path, "error", err)
		return res, err
	}
	parsed, err := json.Marshal(out.ParsedData)
	if err != nil {
		return res, common.WrapError(err, "encode parsed data")
	}
	title := strings.TrimSuffix(name, filepath.Ext(name))
	rec, err := im.saver.Create(ctx, userID, analyses.CreateRequest{
		ParsedData: parsed,
		Analysis:   &out.Analysis,
		Title:      &title,
	})
	if err != nil {
		im.logger.Error("ingest.save.failed", "path", path, "error", err)
		return res, err
	}

	res.AnalysisID = rec.ID.String()
	res.Markers = len(out.ParsedData.TestResults)
	im.logger.Info("ingest.file.ok",
		"path", path,
		"analysis_id", res.AnalysisID,
		"markers", res.Markers,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Allowed reports whether path has an extension accepted for analysis.
func Allowed(path string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
