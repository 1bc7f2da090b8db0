package entity

import (
	"time"

	"github.com/google/uuid"
)

type SkinAnalysis struct {
	Id              uuid.UUID
	UserId          uuid.UUID
	ImageUrl        string
	AnalysisResult  map[string]interface{}
	Diagnosis       string
	ConfidenceScore int
	Recommendations string
	CreatedAt       time.Time
}
