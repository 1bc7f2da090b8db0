package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"dermascan-be/internal/constant"
	"dermascan-be/internal/dto"
	"dermascan-be/internal/entity"
	"dermascan-be/internal/pkg/logger"
	"dermascan-be/internal/pkg/serverutils"
	"dermascan-be/internal/repository/contract"
	"dermascan-be/internal/repository/specification"
	"dermascan-be/internal/repository/unitofwork"
	"dermascan-be/pkg/assessment"
	"dermascan-be/pkg/events"
	"dermascan-be/pkg/llm"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type IAnalysisService interface {
	Analyze(ctx context.Context, userId uuid.UUID, req *dto.AnalyzeSkinRequest) (*dto.AnalyzeSkinResponse, error)
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateAnalysisRequest) (*dto.AnalysisResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.AnalysisResponse, error)
	List(ctx context.Context, userId uuid.UUID, req *dto.ListAnalysesRequest) ([]*dto.AnalysisResponse, int64, error)
}

type analysisService struct {
	provider         llm.LLMProvider
	visionModel      string
	timeout          time.Duration
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	logger           logger.ILogger
}

// NewAnalysisService builds the vision + persistence service. An empty
// visionModel uses the provider's default model.
func NewAnalysisService(
	provider llm.LLMProvider,
	visionModel string,
	timeout time.Duration,
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	log logger.ILogger,
) IAnalysisService {
	return &analysisService{
		provider:         provider,
		visionModel:      visionModel,
		timeout:          timeout,
		uowFactory:       uowFactory,
		publisherService: publisherService,
		logger:           log,
	}
}

func (s *analysisService) Analyze(ctx context.Context, userId uuid.UUID, req *dto.AnalyzeSkinRequest) (*dto.AnalyzeSkinResponse, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	history := []llm.Message{
		{Role: llm.RoleSystem, Content: constant.AnalysisSystemPromptV1},
		{
			Role:    llm.RoleUser,
			Content: constant.AnalysisUserPromptV1,
			Images:  []llm.Image{{URL: req.ImageUrl}},
		},
	}

	var opts []llm.Option
	if s.visionModel != "" {
		opts = append(opts, llm.WithModel(s.visionModel))
	}

	start := time.Now()
	raw, err := s.provider.Chat(ctx, history, opts...)
	if err != nil {
		details := map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		}
		if status := llm.StatusCode(err); status != 0 {
			details["upstream_status"] = status
		}
		s.logger.Error("ANALYSIS", "Vision call failed", details)
		return nil, providerError("AI analysis", err)
	}

	result := assessment.Parse(raw)
	s.logger.Info("ANALYSIS", "Vision call completed", map[string]interface{}{
		"user_id":     userId.String(),
		"confidence":  result.Confidence,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &dto.AnalyzeSkinResponse{
		Analysis:        result.Raw,
		Diagnosis:       result.Summary,
		Confidence:      result.Confidence,
		Recommendations: result.Recommendations,
	}, nil
}

func (s *analysisService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateAnalysisRequest) (*dto.AnalysisResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	analysis := entity.SkinAnalysis{
		Id:              uuid.New(),
		UserId:          userId,
		ImageUrl:        req.ImageUrl,
		AnalysisResult:  req.AnalysisResult,
		Diagnosis:       req.Diagnosis,
		ConfidenceScore: assessment.Clamp(req.Confidence),
		Recommendations: req.Recommendations,
		CreatedAt:       time.Now().UTC(),
	}

	if err := uow.SkinAnalysisRepository().Create(ctx, &analysis); err != nil {
		switch {
		case errors.Is(err, contract.ErrDuplicate):
			return nil, serverutils.NewConflictError("Analysis already exists", err)
		case errors.Is(err, contract.ErrInvalidReference):
			return nil, serverutils.NewValidationError("Unknown user", err)
		}
		return nil, err
	}

	s.publishSaved(ctx, &analysis)

	return toAnalysisResponse(&analysis), nil
}

func (s *analysisService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.AnalysisResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	analysis, err := uow.SkinAnalysisRepository().FindOne(ctx, specification.OwnedAnalysis(id, userId)...)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, serverutils.NewNotFoundError("Analysis not found")
	}

	return toAnalysisResponse(analysis), nil
}

func (s *analysisService) List(ctx context.Context, userId uuid.UUID, req *dto.ListAnalysesRequest) ([]*dto.AnalysisResponse, int64, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.SkinAnalysisRepository()

	total, err := repo.Count(ctx, specification.ByUserID{UserID: userId})
	if err != nil {
		return nil, 0, err
	}

	analyses, err := repo.FindAll(ctx,
		specification.ByUserID{UserID: userId},
		specification.RecentFirst(),
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, 0, err
	}

	result := make([]*dto.AnalysisResponse, 0, len(analyses))
	for _, a := range analyses {
		result = append(result, toAnalysisResponse(a))
	}
	return result, total, nil
}

// publishSaved never fails the write; the row is already committed.
func (s *analysisService) publishSaved(ctx context.Context, analysis *entity.SkinAnalysis) {
	payload, err := json.Marshal(events.AnalysisSaved{
		AnalysisID: analysis.Id,
		UserID:     analysis.UserId,
		Diagnosis:  analysis.Diagnosis,
		Confidence: analysis.ConfidenceScore,
		CreatedAt:  analysis.CreatedAt,
	})
	if err != nil {
		s.logger.Error("ANALYSIS", "Failed to encode analysis event", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.logger.Warn("ANALYSIS", "Failed to publish analysis event", map[string]interface{}{
			"analysis_id": analysis.Id.String(),
			"error":       err.Error(),
		})
	}
}

func toAnalysisResponse(a *entity.SkinAnalysis) *dto.AnalysisResponse {
	return &dto.AnalysisResponse{
		Id:              a.Id,
		UserId:          a.UserId,
		ImageUrl:        a.ImageUrl,
		AnalysisResult:  a.AnalysisResult,
		Diagnosis:       a.Diagnosis,
		Confidence:      a.ConfidenceScore,
		Recommendations: a.Recommendations,
		CreatedAt:       a.CreatedAt,
	}
}
