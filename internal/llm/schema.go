package llm

// ExtractionJSONSchema returns a JSON-Schema (draft 2020-12 subset) for ExtractionResult
// as a generic map. We use it locally to check model output and saved payloads.
func ExtractionJSONSchema() map[string]any {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	return map[string]any{
		"type":     "object",
		"required": []string{"patient_info", "test_results"},
		"properties": map[string]any{
			"patient_info": map[string]any{
				"type": []string{"object", "null"},
				"properties": map[string]any{
					"name":      nullableString,
					"age":       nullableString,
					"sex":       nullableString,
					"test_date": nullableString,
				},
			},
			"test_results": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"marker"},
					"properties": map[string]any{
						"marker":          map[string]any{"type": "string", "minLength": 1},
						"value":           nullableString,
						"unit":            nullableString,
						"reference_range": nullableString,
						"status":          map[string]any{"enum": []any{"normal", "high", "low", "unknown", nil}},
					},
				},
			},
		},
	}
}

// AnalysisJSONSchema returns the schema for AnalysisResult.
func AnalysisJSONSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"sections"},
		"properties": map[string]any{
			"overview": map[string]any{"type": "string"},
			"sections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"category", "markers"},
					"properties": map[string]any{
						"category": map[string]any{"type": "string", "minLength": 1},
						"icon":     map[string]any{"type": "string"},
						"markers":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"summary":  map[string]any{"type": "string"},
						"details":  map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}
