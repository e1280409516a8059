package analyses

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
)

const defaultTitle = "Blood Test Analysis"

// parsedShape is the part of parsed_data the list view reads.
type parsedShape struct {
	PatientInfo *struct {
		TestDate *string `json:"test_date"`
	} `json:"patient_info"`
	TestResults []struct {
		Status string `json:"status"`
	} `json:"test_results"`
}

// Title returns the stored title, else one derived from the test date.
func Title(a *entity.Analysis) string {
	if a.Title != nil && strings.TrimSpace(*a.Title) != "" {
		return *a.Title
	}
	var p parsedShape
	if err := json.Unmarshal(a.ParsedData, &p); err == nil && p.PatientInfo != nil &&
		p.PatientInfo.TestDate != nil && *p.PatientInfo.TestDate != "" {
		return "Blood Test - " + *p.PatientInfo.TestDate
	}
	return defaultTitle
}

// Summarize counts markers and describes how many are out of range.
func Summarize(parsed json.RawMessage) (int, string) {
	var p parsedShape
	if err := json.Unmarshal(parsed, &p); err != nil {
		return 0, "Analysis complete"
	}
	abnormal := 0
	for _, r := range p.TestResults {
		if constants.MarkerStatus(r.Status).Abnormal() {
			abnormal++
		}
	}
	if abnormal == 0 {
		return len(p.TestResults), "All markers normal"
	}
	return len(p.TestResults), fmt.Sprintf("%d of %d markers abnormal", abnormal, len(p.TestResults))
}

// ToSummary builds the list item for an analysis.
func ToSummary(a *entity.Analysis) entity.AnalysisSummary {
	count, summary := Summarize(a.ParsedData)
	return entity.AnalysisSummary{
		ID:           a.ID,
		Title:        Title(a),
		MarkersCount: count,
		Summary:      summary,
		CreatedAt:    a.CreatedAt,
	}
}
