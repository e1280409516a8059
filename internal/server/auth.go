package server

import "net/http"

func (h *handler) googleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RedirectURL string `json:"redirect_url"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	url, err := h.OAuth.AuthorizeURL(req.RedirectURL)
	if err != nil {
		h.fail(w, r, "auth.google", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *handler) googleCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CallbackURL string `json:"callback_url"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.OAuth.Callback(req.CallbackURL)
	if err != nil {
		h.fail(w, r, "auth.google_callback", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
