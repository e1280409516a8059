package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	extractionSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return compileSchema("extraction.json", ExtractionJSONSchema())
	})
	analysisSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return compileSchema("analysis.json", AnalysisJSONSchema())
	})
)

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateAgainst(get func() (*jsonschema.Schema, error), data []byte) error {
	schema, err := get()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateExtraction checks data against the ExtractionResult schema.
func ValidateExtraction(data []byte) error {
	return validateAgainst(extractionSchema, data)
}

// ValidateAnalysis checks data against the AnalysisResult schema.
func ValidateAnalysis(data []byte) error {
	return validateAgainst(analysisSchema, data)
}
