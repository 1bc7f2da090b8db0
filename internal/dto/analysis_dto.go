package dto

import (
	"time"

	"github.com/google/uuid"
)

// AnalyzeSkinRequest is the vision endpoint body. UserId is informational;
// the caller identity comes from the token.
type AnalyzeSkinRequest struct {
	ImageUrl string `json:"imageUrl" validate:"required"`
	UserId   string `json:"userId"`
}

type AnalyzeSkinResponse struct {
	Analysis        string `json:"analysis"`
	Diagnosis       string `json:"diagnosis"`
	Confidence      int    `json:"confidence"`
	Recommendations string `json:"recommendations"`
}

type CreateAnalysisRequest struct {
	ImageUrl        string                 `json:"imageUrl" validate:"required"`
	AnalysisResult  map[string]interface{} `json:"analysisResult"`
	Diagnosis       string                 `json:"diagnosis" validate:"required"`
	Confidence      int                    `json:"confidence" validate:"min=0,max=100"`
	Recommendations string                 `json:"recommendations"`
}

type AnalysisResponse struct {
	Id              uuid.UUID              `json:"id"`
	UserId          uuid.UUID              `json:"userId"`
	ImageUrl        string                 `json:"imageUrl"`
	AnalysisResult  map[string]interface{} `json:"analysisResult,omitempty"`
	Diagnosis       string                 `json:"diagnosis"`
	Confidence      int                    `json:"confidence"`
	Recommendations string                 `json:"recommendations"`
	CreatedAt       time.Time              `json:"createdAt"`
}

type ListAnalysesRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}
