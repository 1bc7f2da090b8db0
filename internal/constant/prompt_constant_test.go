package constant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildChatSystemPrompt(t *testing.T) {
	assert.Equal(t, ChatSystemPromptV1, BuildChatSystemPrompt(""))

	got := BuildChatSystemPrompt("Mild irritation\nMonitor for 3 days")
	assert.True(t, strings.HasPrefix(got, ChatSystemPromptV1))
	assert.True(t, strings.HasSuffix(got, "\n\nCurrent Analysis Context:\nMild irritation\nMonitor for 3 days"))
}
