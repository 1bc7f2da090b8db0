// Package client talks to the DermaScan backend: it runs vision analyses,
// persists their results and streams chat replies.
package client

import (
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"dermascan-be/internal/pkg/logger"
	"dermascan-be/pkg/assessment"
	"dermascan-be/pkg/media"

	"github.com/google/uuid"
)

// Analysis is one completed assessment. ID is set once it has been handed to
// a SessionStore, even when the store failed.
type Analysis struct {
	ID              string
	RawText         string
	SummaryLine     string
	Confidence      int
	Recommendations string
	ImageURL        string
	CreatedAt       time.Time
	Persisted       bool
	Extra           map[string]any
}

// Clone returns a copy that shares no mutable state with a.
func (a Analysis) Clone() Analysis {
	a.Extra = maps.Clone(a.Extra)
	return a
}

// AnalysisClient runs the vision call and persists the outcome.
type AnalysisClient struct {
	baseURL    string
	resolver   ReferenceResolver
	store      SessionStore
	httpClient *http.Client
	logger     logger.ILogger
	now        func() time.Time
}

func NewAnalysisClient(baseURL string, resolver ReferenceResolver, store SessionStore, opts ...Option) *AnalysisClient {
	o := applyOptions(opts)
	return &AnalysisClient{
		baseURL:    baseURL,
		resolver:   resolver,
		store:      store,
		httpClient: o.httpClient,
		logger:     o.logger,
		now:        o.now,
	}
}

// AnalyzeAsset resolves asset to a reference, then analyzes and persists it.
func (c *AnalysisClient) AnalyzeAsset(ctx context.Context, user Credentials, asset media.ImageAsset) (*Analysis, error) {
	ref, err := c.resolver.Resolve(ctx, user.UserID, asset)
	if err != nil {
		return nil, err
	}
	return c.AnalyzeReference(ctx, user, ref)
}

// AnalyzeReference analyzes an image the model can already reach.
//
// When only persistence fails the analysis is still returned, with a local ID,
// Persisted false and a KindPersistence error.
func (c *AnalysisClient) AnalyzeReference(ctx context.Context, user Credentials, ref Reference) (*Analysis, error) {
	analysis, err := c.requestAnalysis(ctx, user, ref)
	if err != nil {
		return nil, err
	}

	saved, err := c.store.Save(ctx, user, *analysis)
	if err != nil {
		c.logger.Warn("CLIENT", "Analysis not persisted", map[string]interface{}{"error": err.Error()})
		analysis.ID = uuid.NewString()
		analysis.Persisted = false
		return analysis, asPersistenceError(err)
	}
	return &saved, nil
}

func (c *AnalysisClient) requestAnalysis(ctx context.Context, user Credentials, ref Reference) (*Analysis, error) {
	req, err := newJSONRequest(ctx, http.MethodPost, joinURL(c.baseURL, AnalyzePath), user, map[string]string{
		"imageUrl": ref.URL,
		"userId":   user.UserID,
	})
	if err != nil {
		return nil, &Error{Kind: KindModel, Message: "Failed to build request", Err: err}
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindModel, Message: "Vision service unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, message := readError(resp)
		c.logger.Warn("CLIENT", "Vision call rejected", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   body,
		})
		return nil, classifyAnalysis(resp.StatusCode, body, message)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindModel, Message: "Vision response interrupted", Err: err}
	}

	analysis, err := decodeAnalysis(raw)
	if err != nil {
		return nil, err
	}
	analysis.ImageURL = ref.Location
	analysis.CreatedAt = c.now()

	c.logger.Info("CLIENT", "Vision call completed", map[string]interface{}{
		"confidence":  analysis.Confidence,
		"duration_ms": c.now().Sub(start).Milliseconds(),
	})
	return analysis, nil
}

// decodeAnalysis reads {analysis, diagnosis, confidence, recommendations}.
// Only "analysis" is mandatory; the rest is derived from it when missing.
func decodeAnalysis(raw []byte) (*Analysis, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Kind: KindParse, Message: "Unexpected response from vision service", Body: string(raw), Err: err}
	}

	var text string
	rawText, ok := payload["analysis"]
	if !ok {
		return nil, &Error{Kind: KindParse, Message: "Vision response has no analysis", Body: string(raw)}
	}
	if err := json.Unmarshal(rawText, &text); err != nil {
		return nil, &Error{Kind: KindParse, Message: "Vision analysis is not text", Body: string(raw), Err: err}
	}

	a := &Analysis{
		RawText:         text,
		SummaryLine:     assessment.Summary(text),
		Confidence:      assessment.Confidence(text),
		Recommendations: text,
		Extra:           map[string]any{},
	}

	for key, value := range payload {
		switch key {
		case "analysis":
		case "diagnosis":
			var s string
			if json.Unmarshal(value, &s) == nil && strings.TrimSpace(s) != "" {
				a.SummaryLine = s
			}
		case "confidence":
			var n float64
			if json.Unmarshal(value, &n) == nil {
				a.Confidence = assessment.Clamp(int(n))
			}
		case "recommendations":
			var s string
			if json.Unmarshal(value, &s) == nil && s != "" {
				a.Recommendations = s
			}
		default:
			var v any
			if json.Unmarshal(value, &v) == nil {
				a.Extra[key] = v
			}
		}
	}

	return a, nil
}

func asPersistenceError(err error) *Error {
	if e, ok := err.(*Error); ok && e.Kind == KindPersistence {
		return e
	}
	return &Error{Kind: KindPersistence, Message: "Failed to save analysis", Err: err}
}
