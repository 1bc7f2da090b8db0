package unitofwork

import (
	"context"

	"dermascan-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SkinAnalysisRepository() contract.SkinAnalysisRepository
}
