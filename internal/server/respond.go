package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/joseph-ayodele/lumo-backend/internal/common"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error": msg} with the status its chain maps to.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, common.HTTPStatus(err), map[string]string{"error": common.PublicMessage(err)})
}

// writeChatError renders the chat envelope {"success": false, "error": msg}.
func writeChatError(w http.ResponseWriter, err error) {
	writeJSON(w, common.HTTPStatus(err), map[string]any{"success": false, "error": common.PublicMessage(err)})
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return common.InvalidInputError("Request body too large")
		}
		return common.InvalidInputErrorf("Invalid request body: %v", err)
	}
	return nil
}
