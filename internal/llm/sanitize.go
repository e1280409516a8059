package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
)

var (
	patientFields = []string{"name", "age", "sex", "test_date"}
	markerFields  = []string{"value", "unit", "reference_range"}
)

// NormalizeExtractionJSON
// - Repairs trailing commas before } and ]
// - Keeps numbers as written (13.50 stays "13.50")
// - Renames known synonyms (results -> test_results, patient -> patient_info)
// - Coerces numeric values to strings and blank strings to null
// - Normalizes status to normal|high|low|unknown
// - Removes unknown keys and records without a marker name
//
// The returned notes name what was changed or dropped.
func NormalizeExtractionJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := decodeLenient(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("normalize: decode: %w", err)
	}

	notes := make([]string, 0, 4)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			notes = append(notes, from+"->"+to)
		}
	}
	renamed("patient", "patient_info")
	renamed("results", "test_results")
	renamed("markers", "test_results")

	patient := map[string]any{}
	if p, ok := m["patient_info"].(map[string]any); ok {
		for _, k := range patientFields {
			patient[k] = nullable(p[k])
		}
	} else {
		for _, k := range patientFields {
			patient[k] = nil
		}
	}

	results := make([]any, 0)
	items, _ := m["test_results"].([]any)
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			notes = append(notes, "test_results["+strconv.Itoa(i)+"](type)")
			continue
		}
		name, ok := lenientString(rec["marker"])
		if !ok {
			name, ok = lenientString(rec["name"])
		}
		if !ok {
			notes = append(notes, "test_results["+strconv.Itoa(i)+"](no marker)")
			continue
		}
		out := map[string]any{"marker": name, "status": string(lenientStatus(rec["status"]))}
		for _, k := range markerFields {
			out[k] = nullable(rec[k])
		}
		results = append(results, out)
	}

	b, err := json.Marshal(map[string]any{
		"patient_info": patient,
		"test_results": results,
	})
	if err != nil {
		return nil, notes, fmt.Errorf("normalize: encode: %w", err)
	}
	if len(notes) > 0 {
		logger.Warn("llm.parse.normalize", "notes", notes)
	}
	return b, notes, nil
}

// decodeLenient decodes one JSON value after dropping trailing commas, keeping
// numbers as json.Number.
func decodeLenient(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(StripTrailingCommas(raw)))
	dec.UseNumber()
	return dec.Decode(v)
}

// StripTrailingCommas removes commas that directly precede a closing } or ],
// ignoring whitespace between them. Commas inside strings are left alone.
func StripTrailingCommas(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	inString, escaped := false, false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(raw) && (raw[j] == ' ' || raw[j] == '\t' || raw[j] == '\n' || raw[j] == '\r') {
				j++
			}
			if j < len(raw) && (raw[j] == '}' || raw[j] == ']') {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}
