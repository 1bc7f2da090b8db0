package nats

import (
	"encoding/json"
	"testing"
	"time"

	"dermascan-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	evt := events.AnalysisSaved{AnalysisID: uuid.New(), UserID: uuid.New(), Diagnosis: "Dry skin", Confidence: 75, CreatedAt: at}

	body, err := Encode(evt)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, events.AnalysisSavedType, env.Type)
	assert.True(t, at.Equal(env.OccurredAt))
	assert.Equal(t, "Dry skin", env.Data["diagnosis"])
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "dermascan.ANALYSIS_SAVED", Subject(events.AnalysisSavedType))
}
