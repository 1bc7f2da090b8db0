package mapper

import (
	"encoding/json"

	"dermascan-be/internal/entity"
	"dermascan-be/internal/model"

	"gorm.io/datatypes"
)

type AnalysisMapper struct{}

func NewAnalysisMapper() *AnalysisMapper {
	return &AnalysisMapper{}
}

func (m *AnalysisMapper) ToEntity(a *model.SkinAnalysis) *entity.SkinAnalysis {
	if a == nil {
		return nil
	}

	var result map[string]interface{}
	if len(a.AnalysisResult) > 0 {
		// A non-object document is dropped rather than failing the read.
		_ = json.Unmarshal(a.AnalysisResult, &result)
	}

	return &entity.SkinAnalysis{
		Id:              a.Id,
		UserId:          a.UserId,
		ImageUrl:        a.ImageUrl,
		AnalysisResult:  result,
		Diagnosis:       a.Diagnosis,
		ConfidenceScore: a.ConfidenceScore,
		Recommendations: a.Recommendations,
		CreatedAt:       a.CreatedAt,
	}
}

func (m *AnalysisMapper) ToModel(a *entity.SkinAnalysis) (*model.SkinAnalysis, error) {
	if a == nil {
		return nil, nil
	}

	var result datatypes.JSON
	if a.AnalysisResult != nil {
		b, err := json.Marshal(a.AnalysisResult)
		if err != nil {
			return nil, err
		}
		result = datatypes.JSON(b)
	}

	return &model.SkinAnalysis{
		Id:              a.Id,
		UserId:          a.UserId,
		ImageUrl:        a.ImageUrl,
		AnalysisResult:  result,
		Diagnosis:       a.Diagnosis,
		ConfidenceScore: a.ConfidenceScore,
		Recommendations: a.Recommendations,
		CreatedAt:       a.CreatedAt,
	}, nil
}

func (m *AnalysisMapper) ToEntities(models []*model.SkinAnalysis) []*entity.SkinAnalysis {
	entities := make([]*entity.SkinAnalysis, len(models))
	for i, a := range models {
		entities[i] = m.ToEntity(a)
	}
	return entities
}
