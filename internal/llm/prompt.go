package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/ocr"
)

const (
	maxPromptLines = 50
	noneFound      = "(none found)"
)

// FormatDocument renders a normalized OCR document as the model input body.
// Sections always appear in the same order: tables, key-value pairs, text lines.
func FormatDocument(doc ocr.NormalizedDocument) string {
	var b strings.Builder

	b.WriteString("TABLES:\n")
	if len(doc.Tables) == 0 {
		b.WriteString(noneFound + "\n")
	}
	for i, table := range doc.Tables {
		fmt.Fprintf(&b, "Table %d:\n", i+1)
		for r, row := range table {
			fmt.Fprintf(&b, "Row %d: %s\n", r+1, strings.Join(row, " | "))
		}
	}

	b.WriteString("\nKEY-VALUE PAIRS:\n")
	if len(doc.KeyValues) == 0 {
		b.WriteString(noneFound + "\n")
	}
	for _, kv := range doc.KeyValues {
		fmt.Fprintf(&b, "'%s' → '%s'\n", kv.Key, kv.Value)
	}

	b.WriteString("\nTEXT LINES:\n")
	if len(doc.Lines) == 0 {
		b.WriteString(noneFound + "\n")
	}
	for i, line := range doc.Lines {
		if i == maxPromptLines {
			fmt.Fprintf(&b, "... and %d more lines\n", len(doc.Lines)-maxPromptLines)
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// BuildAnalysisInput wraps the formatted document with a short lead-in.
func BuildAnalysisInput(doc ocr.NormalizedDocument) string {
	return "Below is the raw OCR output of a blood test report.\n\n" + FormatDocument(doc)
}

// ExtractionInstructions is the fixed contract sent with every analysis call.
// The response must carry two fenced json blocks followed by narrative text.
func ExtractionInstructions() string {
	parts := []string{
		"You are an expert medical data analyst. You receive raw OCR output from a blood test report " +
			"(tables, key-value pairs and text lines) and must both extract the biomarkers and analyze them.",
		"",
		"Respond with exactly two fenced code blocks tagged json, in this order, followed by your narrative analysis.",
		"",
		"Block 1, the extracted data:",
		"```json",
		`{"patient_info": {"name": "string or null", "age": "string or null", "sex": "string or null", "test_date": "string or null"},`,
		` "test_results": [{"marker": "name", "value": "string", "unit": "string or null", "reference_range": "string or null", "status": "normal|high|low|unknown"}]}`,
		"```",
		"",
		"Extraction rules:",
		"- Include only true biomarkers. Never include administrative fields such as patient ids, accession numbers, physician names, addresses or dates.",
		"- Prefer table rows over key-value pairs when both describe the same marker. Use text lines only when nothing else has the value.",
		"- Determine status by comparing the value with the reference range: below is low, above is high, inside is normal. If there is no range or the value is not numeric use unknown.",
		"- Keep values and ranges as strings exactly as printed. Use null for anything missing.",
		"",
		"Block 2, the structured analysis:",
		"```json",
		`{"overview": "2-3 sentence summary", "sections": [{"category": "category name", "icon": "icon tag", "markers": ["marker names"], "summary": "one sentence", "details": "plain-language explanation"}]}`,
		"```",
		"",
		"Analysis rules:",
		"- Group markers by physiological system. Categories: " + strings.Join(constants.CategoryNames(), ", ") + ".",
		"- Icon tags: " + strings.Join(constants.IconTags(), ", ") + ".",
		"- Every marker from block 1 must appear in at least one section, using the exact same marker name.",
		"- Write for a non-medical reader. Explain what each marker measures and what the result may mean.",
		"",
		"After the two blocks, write a friendly narrative covering the overall picture, notable findings, " +
			"lifestyle suggestions and when to consult a doctor. Remind the reader this is not medical advice.",
	}
	return strings.Join(parts, "\n")
}
