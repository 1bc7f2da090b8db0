package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SkinAnalysis is one persisted vision assessment. Rows are never updated.
type SkinAnalysis struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId          uuid.UUID      `gorm:"type:uuid;not null;index:idx_skin_analyses_user_created,priority:1"`
	ImageUrl        string         `gorm:"type:text;not null"`
	AnalysisResult  datatypes.JSON `gorm:"type:jsonb"`
	Diagnosis       string         `gorm:"type:text;not null"`
	ConfidenceScore int            `gorm:"type:int;not null;check:chk_skin_analyses_confidence,confidence_score BETWEEN 0 AND 100"`
	Recommendations string         `gorm:"type:text"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index:idx_skin_analyses_user_created,priority:2"`
}

func (SkinAnalysis) TableName() string {
	return "skin_analyses"
}
