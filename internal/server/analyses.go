package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/lumo-backend/internal/analyses"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *handler) listAnalyses(w http.ResponseWriter, r *http.Request) {
	items, err := h.Analyses.List(r.Context(), common.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "analyses.list", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) createAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analyses.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid data", "details": common.PublicMessage(err)})
		return
	}
	rec, err := h.Analyses.Create(r.Context(), common.UserIDFromContext(r.Context()), req)
	if err != nil {
		if errors.Is(err, common.ErrInvalidInput) || errors.Is(err, common.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid data", "details": common.PublicMessage(err)})
			return
		}
		h.fail(w, r, "analyses.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) getAnalysis(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Analyses.Get(r.Context(), common.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "analyses.get", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) deleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := h.Analyses.Delete(r.Context(), common.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "analyses.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	res, err := h.Analyses.DeleteAccount(r.Context(), common.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "analyses.delete_account", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// exportAnalyses streams an XLSX of the caller's analyses, optionally bounded by from_date/to_date.
func (h *handler) exportAnalyses(w http.ResponseWriter, r *http.Request) {
	userID := common.UserIDFromContext(r.Context())
	q := r.URL.Query()
	from, to, err := utils.DateWindow(q.Get("from_date"), q.Get("to_date"), h.Now())
	if err != nil {
		writeError(w, common.InvalidInputError(err.Error()))
		return
	}
	xlsx, err := h.Exporter.ExportAnalysesXLSX(r.Context(), userID, from, to)
	if err != nil {
		h.fail(w, r, "analyses.export", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="lumo-analyses.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}

// fail logs and renders a non-chat error.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logFailure(r, op, err)
	writeError(w, err)
}

func (h *handler) logFailure(r *http.Request, op string, err error) {
	status := common.HTTPStatus(err)
	attrs := []any{
		"req_id", common.RequestIDFromContext(r.Context()),
		"user_id", common.UserIDFromContext(r.Context()),
		"status", status,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("http."+op+".failed", attrs...)
		return
	}
	h.logger.Warn("http."+op+".failed", attrs...)
}
