package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAnalysisSaved_ImplementsEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	id, user := uuid.New(), uuid.New()

	var evt Event = AnalysisSaved{AnalysisID: id, UserID: user, Diagnosis: "Mild irritation", Confidence: 80, CreatedAt: at}

	assert.Equal(t, AnalysisSavedType, evt.EventType())
	assert.Equal(t, at, evt.Timestamp())
	assert.Equal(t, id.String(), evt.Payload()["analysis_id"])
	assert.Equal(t, user.String(), evt.Payload()["user_id"])
	assert.Equal(t, 80, evt.Payload()["confidence"])
}
