package llm

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/lumo-backend/constants"
)

// lenientString coerces a decoded JSON scalar into a string. A json.Number keeps
// its source text. Blank strings and "null" count as absent, and ok is false for
// absent values.
func lenientString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return "", false
		}
		return s, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// lenientStatus maps anything the model wrote for status onto a known value.
func lenientStatus(v any) constants.MarkerStatus {
	s, ok := lenientString(v)
	if !ok {
		return constants.MarkerUnknown
	}
	return constants.ParseMarkerStatus(s)
}

// nullable returns s as a JSON value, nil when absent.
func nullable(v any) any {
	if s, ok := lenientString(v); ok {
		return s
	}
	return nil
}
