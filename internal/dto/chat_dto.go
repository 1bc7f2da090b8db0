package dto

type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
}

// DermaChatRequest is the chat endpoint body. The system message is always
// built server side, so clients only send user and assistant turns.
type DermaChatRequest struct {
	Messages        []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	AnalysisContext string        `json:"analysisContext"`
	AnalysisId      string        `json:"analysisId" validate:"omitempty,uuid"`
}
