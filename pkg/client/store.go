package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"dermascan-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ErrNotFound is wrapped by KindPersistence errors for unknown ids.
var ErrNotFound = errors.New("analysis not found")

// SessionStore persists analyses. Records are write-once.
type SessionStore interface {
	// Save returns a copy of a with ID, CreatedAt and Persisted filled in.
	Save(ctx context.Context, user Credentials, a Analysis) (Analysis, error)
	Get(ctx context.Context, user Credentials, id string) (Analysis, error)
}

// RemoteStore persists through the backend's analysis API.
type RemoteStore struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.ILogger
}

func NewRemoteStore(baseURL string, opts ...Option) *RemoteStore {
	o := applyOptions(opts)
	return &RemoteStore{baseURL: baseURL, httpClient: o.httpClient, logger: o.logger}
}

type saveAnalysisRequest struct {
	ImageUrl        string         `json:"imageUrl"`
	AnalysisResult  map[string]any `json:"analysisResult"`
	Diagnosis       string         `json:"diagnosis"`
	Confidence      int            `json:"confidence"`
	Recommendations string         `json:"recommendations"`
}

type analysisRecord struct {
	Id              string         `json:"id"`
	ImageUrl        string         `json:"imageUrl"`
	AnalysisResult  map[string]any `json:"analysisResult"`
	Diagnosis       string         `json:"diagnosis"`
	Confidence      int            `json:"confidence"`
	Recommendations string         `json:"recommendations"`
	CreatedAt       time.Time      `json:"createdAt"`
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (s *RemoteStore) Save(ctx context.Context, user Credentials, a Analysis) (Analysis, error) {
	result := map[string]any{
		"analysis":        a.RawText,
		"diagnosis":       a.SummaryLine,
		"confidence":      a.Confidence,
		"recommendations": a.Recommendations,
	}
	for k, v := range a.Extra {
		if _, taken := result[k]; !taken {
			result[k] = v
		}
	}

	req, err := newJSONRequest(ctx, http.MethodPost, joinURL(s.baseURL, AnalysesPath), user, saveAnalysisRequest{
		ImageUrl:        a.ImageURL,
		AnalysisResult:  result,
		Diagnosis:       a.SummaryLine,
		Confidence:      a.Confidence,
		Recommendations: a.Recommendations,
	})
	if err != nil {
		return Analysis{}, &Error{Kind: KindPersistence, Message: "Failed to build request", Err: err}
	}

	record, err := s.do(req)
	if err != nil {
		return Analysis{}, err
	}

	a.ID = record.Id
	a.CreatedAt = record.CreatedAt
	a.Persisted = true
	return a, nil
}

func (s *RemoteStore) Get(ctx context.Context, user Credentials, id string) (Analysis, error) {
	req, err := newJSONRequest(ctx, http.MethodGet, joinURL(s.baseURL, AnalysesPath+"/"+url.PathEscape(id)), user, nil)
	if err != nil {
		return Analysis{}, &Error{Kind: KindPersistence, Message: "Failed to build request", Err: err}
	}

	record, err := s.do(req)
	if err != nil {
		return Analysis{}, err
	}
	return fromRecord(record), nil
}

func (s *RemoteStore) do(req *http.Request) (analysisRecord, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return analysisRecord{}, &Error{Kind: KindPersistence, Message: "Analysis service unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, message := readError(resp)
		e := &Error{Kind: KindPersistence, Message: orDefault(message, "Failed to save analysis"), Status: resp.StatusCode, Body: body}
		if resp.StatusCode == http.StatusNotFound {
			e.Err = ErrNotFound
		}
		return analysisRecord{}, e
	}

	var env envelope[analysisRecord]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return analysisRecord{}, &Error{Kind: KindPersistence, Message: "Unexpected response from analysis service", Err: err}
	}
	if env.Data.Id == "" {
		return analysisRecord{}, &Error{Kind: KindPersistence, Message: "Analysis service assigned no id"}
	}
	return env.Data, nil
}

func fromRecord(r analysisRecord) Analysis {
	a := Analysis{
		ID:              r.Id,
		SummaryLine:     r.Diagnosis,
		Confidence:      r.Confidence,
		Recommendations: r.Recommendations,
		ImageURL:        r.ImageUrl,
		CreatedAt:       r.CreatedAt,
		Persisted:       true,
		Extra:           map[string]any{},
	}
	for k, v := range r.AnalysisResult {
		switch k {
		case "analysis":
			a.RawText, _ = v.(string)
		case "diagnosis", "confidence", "recommendations":
		default:
			a.Extra[k] = v
		}
	}
	return a
}

// MemoryStore keeps analyses in process, for offline use and tests.
type MemoryStore struct {
	cache *cache.Cache
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, 0),
		now:   time.Now,
	}
}

func memoryKey(owner, id string) string {
	return owner + "/" + id
}

func (s *MemoryStore) Save(_ context.Context, user Credentials, a Analysis) (Analysis, error) {
	a.ID = uuid.NewString()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	a.Persisted = true

	if err := s.cache.Add(memoryKey(user.UserID, a.ID), a.Clone(), cache.NoExpiration); err != nil {
		return Analysis{}, &Error{Kind: KindPersistence, Message: "Analysis already exists", Err: err}
	}
	return a, nil
}

func (s *MemoryStore) Get(_ context.Context, user Credentials, id string) (Analysis, error) {
	v, ok := s.cache.Get(memoryKey(user.UserID, id))
	if !ok {
		return Analysis{}, &Error{Kind: KindPersistence, Message: fmt.Sprintf("Analysis %s not found", id), Err: ErrNotFound}
	}
	return v.(Analysis).Clone(), nil
}
