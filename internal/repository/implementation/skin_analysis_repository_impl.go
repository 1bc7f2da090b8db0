package implementation

import (
	"context"
	"errors"
	"fmt"

	"dermascan-be/internal/entity"
	"dermascan-be/internal/mapper"
	"dermascan-be/internal/model"
	"dermascan-be/internal/repository/contract"
	"dermascan-be/internal/repository/specification"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type SkinAnalysisRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AnalysisMapper
}

func NewSkinAnalysisRepository(db *gorm.DB) contract.SkinAnalysisRepository {
	return &SkinAnalysisRepositoryImpl{
		db:     db,
		mapper: mapper.NewAnalysisMapper(),
	}
}

func (r *SkinAnalysisRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SkinAnalysisRepositoryImpl) Create(ctx context.Context, analysis *entity.SkinAnalysis) error {
	m, err := r.mapper.ToModel(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis result: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return classifyPgError(err)
	}
	*analysis = *r.mapper.ToEntity(m)
	return nil
}

func (r *SkinAnalysisRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SkinAnalysis, error) {
	var m model.SkinAnalysis
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SkinAnalysisRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SkinAnalysis, error) {
	var models []*model.SkinAnalysis
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *SkinAnalysisRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.SkinAnalysis{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// classifyPgError maps postgres constraint violations onto repository sentinels.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", contract.ErrDuplicate, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", contract.ErrInvalidReference, pgErr.ConstraintName)
	default:
		return err
	}
}
