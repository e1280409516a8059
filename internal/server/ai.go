package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
)

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "AI Analysis"})
}

// analyze accepts a multipart "file" and returns the extraction and analysis.
func (h *handler) analyze(w http.ResponseWriter, r *http.Request) {
	userID := common.UserIDFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxAnalysisUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid file upload", "details": err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	defer file.Close()

	contentType, ok := constants.CanonicalContentType(header.Header.Get("Content-Type"), header.Filename)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid file type. Allowed types: " + constants.AllowedContentTypeList(),
		})
		return
	}

	// The pipeline keeps running if the client disconnects.
	ctx, cancel := common.Detach(r.Context(), h.AnalyzeTimeout)
	defer cancel()

	start := time.Now()
	out, err := h.Analyzer.Analyze(ctx, file, header.Filename, contentType)
	if err != nil {
		h.logger.Error("http.analyze.failed",
			"req_id", common.RequestIDFromContext(r.Context()),
			"user_id", userID,
			"filename", header.Filename,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to analyze blood test",
			"details": common.PublicMessage(err),
		})
		return
	}
	h.logger.Info("http.analyze.ok",
		"req_id", common.RequestIDFromContext(r.Context()),
		"user_id", userID,
		"markers", len(out.ParsedData.TestResults),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, out)
}
