package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Analysis is a saved blood test analysis owned by one user.
type Analysis struct {
	ID         uuid.UUID       `json:"id"`
	UserID     string          `json:"user_id"`
	ParsedData json.RawMessage `json:"parsed_data"`
	Analysis   json.RawMessage `json:"analysis"`
	Title      *string         `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AnalysisSummary is the lighter list representation.
type AnalysisSummary struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	MarkersCount int       `json:"markers_count"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}
