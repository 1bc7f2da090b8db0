package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"dermascan-be/internal/constant"
	"dermascan-be/internal/dto"
	"dermascan-be/internal/entity"
	"dermascan-be/internal/pkg/logger"
	"dermascan-be/internal/pkg/serverutils"
	"dermascan-be/internal/repository/contract"
	"dermascan-be/internal/repository/specification"
	"dermascan-be/internal/repository/unitofwork"
	"dermascan-be/pkg/llm"

	"github.com/google/uuid"
)

const (
	chatLockPrefix     = "chat"
	noAnalysisLockPart = "none"
)

type IChatService interface {
	// Stream opens the assistant reply. The caller must Close the returned
	// stream; closing releases the conversation lock.
	Stream(ctx context.Context, userId uuid.UUID, req *dto.DermaChatRequest) (llm.Stream, error)
}

type chatService struct {
	provider      llm.LLMProvider
	locks         contract.ConversationLockRepository
	lockTTL       time.Duration
	historyWindow int
	uowFactory    unitofwork.RepositoryFactory
	logger        logger.ILogger
}

func NewChatService(
	provider llm.LLMProvider,
	locks contract.ConversationLockRepository,
	lockTTL time.Duration,
	historyWindow int,
	uowFactory unitofwork.RepositoryFactory,
	log logger.ILogger,
) IChatService {
	return &chatService{
		provider:      provider,
		locks:         locks,
		lockTTL:       lockTTL,
		historyWindow: historyWindow,
		uowFactory:    uowFactory,
		logger:        log,
	}
}

func (s *chatService) Stream(ctx context.Context, userId uuid.UUID, req *dto.DermaChatRequest) (llm.Stream, error) {
	analysisContext, err := s.resolveContext(ctx, userId, req)
	if err != nil {
		return nil, err
	}

	key := ConversationKey(userId, req.AnalysisId)
	token, acquired, err := s.locks.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		return nil, serverutils.NewInternalError("Failed to acquire conversation lock", err)
	}
	if !acquired {
		return nil, serverutils.NewConflictError("A reply is already being generated for this conversation", nil)
	}

	release := func() {
		// The request context may already be gone by the time the stream ends.
		if err := s.locks.Release(context.Background(), key, token); err != nil {
			s.logger.Warn("CHAT", "Failed to release conversation lock", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}

	history := s.buildHistory(analysisContext, req.Messages)
	stream, err := s.provider.ChatStream(ctx, history)
	if err != nil {
		release()
		details := map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		}
		if status := llm.StatusCode(err); status != 0 {
			details["upstream_status"] = status
		}
		s.logger.Error("CHAT", "Failed to open chat stream", details)
		return nil, providerError("AI chat", err)
	}

	s.logger.Info("CHAT", "Chat stream opened", map[string]interface{}{
		"user_id":     userId.String(),
		"turns":       len(history) - 1,
		"has_context": analysisContext != "",
	})

	return &lockedStream{Stream: stream, release: release}, nil
}

// resolveContext prefers the context sent by the client and falls back to the
// stored analysis named by AnalysisId.
func (s *chatService) resolveContext(ctx context.Context, userId uuid.UUID, req *dto.DermaChatRequest) (string, error) {
	if req.AnalysisContext != "" || req.AnalysisId == "" {
		return req.AnalysisContext, nil
	}

	id, err := uuid.Parse(req.AnalysisId)
	if err != nil {
		return "", serverutils.NewValidationError("Invalid analysisId", err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	analysis, err := uow.SkinAnalysisRepository().FindOne(ctx, specification.OwnedAnalysis(id, userId)...)
	if err != nil {
		return "", err
	}
	if analysis == nil {
		return "", serverutils.NewNotFoundError("Analysis not found")
	}
	return StoredAnalysisContext(analysis), nil
}

func (s *chatService) buildHistory(analysisContext string, messages []dto.ChatMessage) []llm.Message {
	if s.historyWindow > 0 && len(messages) > s.historyWindow {
		messages = messages[len(messages)-s.historyWindow:]
		// The window starts on a user turn.
		for len(messages) > 1 && messages[0].Role != llm.RoleUser {
			messages = messages[1:]
		}
	}

	history := make([]llm.Message, 0, len(messages)+1)
	history = append(history, llm.Message{
		Role:    llm.RoleSystem,
		Content: constant.BuildChatSystemPrompt(analysisContext),
	})
	for _, m := range messages {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

// ConversationKey scopes the chat lock to one user and one analysis.
func ConversationKey(userId uuid.UUID, analysisId string) string {
	if analysisId == "" {
		analysisId = noAnalysisLockPart
	}
	return strings.Join([]string{chatLockPrefix, userId.String(), analysisId}, ":")
}

// StoredAnalysisContext recovers the raw model text of a persisted analysis.
func StoredAnalysisContext(a *entity.SkinAnalysis) string {
	if raw, ok := a.AnalysisResult["analysis"].(string); ok && raw != "" {
		return raw
	}
	if a.Recommendations == "" || a.Recommendations == a.Diagnosis {
		return a.Diagnosis
	}
	return a.Diagnosis + "\n\n" + a.Recommendations
}

type lockedStream struct {
	llm.Stream
	release func()
	once    sync.Once
}

func (s *lockedStream) Close() error {
	err := s.Stream.Close()
	s.once.Do(s.release)
	return err
}
