package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	// AnalysisSystemPromptV1 frames every vision call. The disclaimer wording is mandatory.
	AnalysisSystemPromptV1 = `You are an AI dermatology assistant. Analyze skin images and provide:
1. Preliminary diagnosis (with disclaimer that this is NOT medical advice)
2. Confidence level (0-100%)
3. Key observations
4. Recommendations for next steps
5. When to seek professional medical attention

IMPORTANT: Always emphasize that this is preliminary analysis and users should consult a licensed dermatologist for proper diagnosis.`

	AnalysisUserPromptV1 = "Please analyze this skin image and provide a preliminary assessment."

	ChatSystemPromptV1 = `You are a knowledgeable AI dermatology assistant. You help users understand their skin conditions, provide educational information, and guide them on when to seek professional medical care.

IMPORTANT GUIDELINES:
- Always emphasize that you provide educational information, NOT medical diagnosis
- Recommend consulting a licensed dermatologist for proper diagnosis and treatment
- Be empathetic and reassuring
- Provide clear, actionable advice
- Mention red flags that require immediate medical attention`

	// ChatContextHeader labels the analysis block appended to ChatSystemPromptV1.
	ChatContextHeader = "Current Analysis Context:"
)

// BuildChatSystemPrompt appends analysisContext verbatim when present.
func BuildChatSystemPrompt(analysisContext string) string {
	if analysisContext == "" {
		return ChatSystemPromptV1
	}
	return ChatSystemPromptV1 + "\n\n" + ChatContextHeader + "\n" + analysisContext
}
