package contract

import (
	"context"
	"errors"

	"dermascan-be/internal/entity"
	"dermascan-be/internal/repository/specification"
)

var (
	// ErrDuplicate is returned when a write collides with an existing row.
	ErrDuplicate = errors.New("record already exists")

	// ErrInvalidReference is returned when a write points at a missing parent row.
	ErrInvalidReference = errors.New("referenced record does not exist")
)

// SkinAnalysisRepository is write-once: there is no Update or Delete.
type SkinAnalysisRepository interface {
	Create(ctx context.Context, analysis *entity.SkinAnalysis) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SkinAnalysis, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SkinAnalysis, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
