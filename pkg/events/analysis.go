package events

import (
	"time"

	"github.com/google/uuid"
)

const AnalysisSavedType = "ANALYSIS_SAVED"

// AnalysisSaved is raised once a skin analysis has been persisted.
type AnalysisSaved struct {
	AnalysisID uuid.UUID `json:"analysis_id"`
	UserID     uuid.UUID `json:"user_id"`
	Diagnosis  string    `json:"diagnosis"`
	Confidence int       `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

func (e AnalysisSaved) EventType() string {
	return AnalysisSavedType
}

func (e AnalysisSaved) Payload() map[string]interface{} {
	return map[string]interface{}{
		"analysis_id": e.AnalysisID.String(),
		"user_id":     e.UserID.String(),
		"diagnosis":   e.Diagnosis,
		"confidence":  e.Confidence,
		"created_at":  e.CreatedAt.Format(time.RFC3339),
	}
}

func (e AnalysisSaved) Timestamp() time.Time {
	return e.CreatedAt
}
