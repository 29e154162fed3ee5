package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccp-p/ai-video-notes/internal/controller"
	"github.com/ccp-p/ai-video-notes/pkg/llm"
	"github.com/ccp-p/ai-video-notes/pkg/metrics"
	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/store"
	"github.com/ccp-p/ai-video-notes/pkg/worker"
)

type stubOrchestrator struct {
	submitErr error
	lastReq   models.GenerationRequest
	tasks     map[string]*models.Task
	notes     map[int64]*models.Note
}

func (s *stubOrchestrator) Submit(_ context.Context, req models.GenerationRequest) (*models.Task, error) {
	s.lastReq = req
	if s.submitErr != nil {
		if s.submitErr == worker.ErrPoolFull {
			return &models.Task{ID: "rejected", Status: models.TaskStatusFailed}, s.submitErr
		}
		return nil, s.submitErr
	}
	return &models.Task{ID: "task-1", Status: models.TaskStatusPending, StatusMessage: controller.MsgQueued}, nil
}

func (s *stubOrchestrator) Task(_ context.Context, id string) (*models.Task, error) {
	if t, ok := s.tasks[id]; ok {
		return t, nil
	}
	return nil, store.ErrNotFound
}

func (s *stubOrchestrator) Note(_ context.Context, id int64) (*models.Note, error) {
	if n, ok := s.notes[id]; ok {
		return n, nil
	}
	return nil, store.ErrNotFound
}

type stubExplainer struct {
	err error
}

func (s stubExplainer) Explain(_ context.Context, term, _, _, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return term + " 的详细解释", nil
}

type stubExporter struct{}

func (stubExporter) Render(_ context.Context, note *models.Note, _ string) (string, error) {
	return fmt.Sprintf("---\nsource: %s\n---\n", note.VideoURL), nil
}

type stubProviders struct{}

func (stubProviders) Stats() []llm.ProviderStats {
	return []llm.ProviderStats{{Key: llm.ProviderGemini, Default: true}}
}

func setupTestServer(t *testing.T, orch *stubOrchestrator, explainer Explainer, cfg models.ServerConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := NewAPI(orch, explainer, stubExporter{}, stubProviders{}, func() worker.Stats {
		return worker.Stats{Workers: 5}
	})
	return NewRouter(api, metrics.NewPipeline(), cfg)
}

func newOrchestrator() *stubOrchestrator {
	noteID := int64(11)
	return &stubOrchestrator{
		tasks: map[string]*models.Task{
			"done":    {ID: "done", Status: models.TaskStatusCompleted, StatusMessage: controller.MsgCompleted, ResultNoteID: &noteID},
			"running": {ID: "running", Status: models.TaskStatusProcessing, StatusMessage: controller.MsgGenerating},
		},
		notes: map[int64]*models.Note{
			11: {ID: 11, UserID: 7, VideoURL: "https://example.com/v.mp4", Content: `{"notes":[]}`},
		},
	}
}

func doRequest(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGenerateNote(t *testing.T) {
	orch := newOrchestrator()
	engine := setupTestServer(t, orch, stubExplainer{}, models.ServerConfig{})

	rec := doRequest(engine, http.MethodPost, "/api/notes/generate", `{"url":"https://example.com/v.mp4","userId":7,"mode":"pro"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "task-1", data["taskId"])
	assert.Equal(t, "PENDING", data["status"])

	assert.Equal(t, int64(7), orch.lastReq.UserID)
	assert.Equal(t, models.GenerationMode("pro"), orch.lastReq.Mode)
}

func TestGenerateNoteErrors(t *testing.T) {
	orch := newOrchestrator()
	engine := setupTestServer(t, orch, stubExplainer{}, models.ServerConfig{})

	rec := doRequest(engine, http.MethodPost, "/api/notes/generate", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	orch.submitErr = fmt.Errorf("%w: 视频链接不能为空", controller.ErrInvalidRequest)
	rec = doRequest(engine, http.MethodPost, "/api/notes/generate", `{"url":"","userId":7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	orch.submitErr = worker.ErrPoolFull
	rec = doRequest(engine, http.MethodPost, "/api/notes/generate", `{"url":"https://example.com/v.mp4","userId":7}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode(t, rec)["msg"], "rejected")
}

func TestGetTaskStatus(t *testing.T) {
	engine := setupTestServer(t, newOrchestrator(), stubExplainer{}, models.ServerConfig{})

	rec := doRequest(engine, http.MethodGet, "/api/tasks/done/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	task := data["task"].(map[string]interface{})
	assert.Equal(t, "COMPLETED", task["status"])
	note := data["note"].(map[string]interface{})
	assert.Equal(t, float64(7), note["user_id"])

	rec = doRequest(engine, http.MethodGet, "/api/tasks/running/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data = decode(t, rec)["data"].(map[string]interface{})
	assert.Nil(t, data["note"])

	rec = doRequest(engine, http.MethodGet, "/api/tasks/missing/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAndExportNote(t *testing.T) {
	engine := setupTestServer(t, newOrchestrator(), stubExplainer{}, models.ServerConfig{})

	rec := doRequest(engine, http.MethodGet, "/api/notes/11", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com/v.mp4", decode(t, rec)["data"].(map[string]interface{})["video_url"])

	rec = doRequest(engine, http.MethodGet, "/api/notes/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(engine, http.MethodGet, "/api/notes/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(engine, http.MethodPost, "/api/notes/export/11", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "source: https://example.com/v.mp4")

	rec = doRequest(engine, http.MethodPost, "/api/notes/export/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExplain(t *testing.T) {
	engine := setupTestServer(t, newOrchestrator(), stubExplainer{}, models.ServerConfig{})

	rec := doRequest(engine, http.MethodPost, "/api/ai/explain", `{"term":"RAG","shortExplanation":"检索增强生成"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "RAG 的详细解释", data["explanation"])

	rec = doRequest(engine, http.MethodPost, "/api/ai/explain", `{"term":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExplainErrors(t *testing.T) {
	unsupported := &models.UnsupportedProviderError{Key: llm.ProviderOpenAI, Operation: llm.OpGenerateText}
	engine := setupTestServer(t, newOrchestrator(), stubExplainer{err: fmt.Errorf("生成解释失败: %w", unsupported)}, models.ServerConfig{})

	rec := doRequest(engine, http.MethodPost, "/api/ai/explain", `{"term":"RAG","provider":"openai"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	engine = setupTestServer(t, newOrchestrator(), stubExplainer{err: fmt.Errorf("网络错误")}, models.ServerConfig{})
	rec = doRequest(engine, http.MethodPost, "/api/ai/explain", `{"term":"RAG"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProvidersHealthAndMetrics(t *testing.T) {
	engine := setupTestServer(t, newOrchestrator(), stubExplainer{}, models.ServerConfig{})

	rec := doRequest(engine, http.MethodGet, "/api/providers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"GEMINI"`)

	rec = doRequest(engine, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = doRequest(engine, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ai_video_notes_api_response_time_seconds")
}

func TestRateLimit(t *testing.T) {
	engine := setupTestServer(t, newOrchestrator(), stubExplainer{}, models.ServerConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 1})

	rec := doRequest(engine, http.MethodPost, "/api/ai/explain", `{"term":"RAG"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(engine, http.MethodPost, "/api/ai/explain", `{"term":"RAG"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// 未限流的接口不受影响
	rec = doRequest(engine, http.MethodGet, "/api/providers", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientLimiterDisabled(t *testing.T) {
	l := NewClientLimiter(0, 0)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("127.0.0.1"))
	}
}

func TestClientLimiterPrunesIdleClients(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	l := NewClientLimiter(1, 1)
	l.now = func() time.Time { return now }
	l.lastPrune = now

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.Equal(t, 2, l.Clients())

	// 10.0.0.2 保持活跃，10.0.0.1 空闲超时
	now = now.Add(limiterIdleTTL / 2)
	assert.True(t, l.Allow("10.0.0.2"))
	now = now.Add(limiterIdleTTL / 2)
	assert.True(t, l.Allow("10.0.0.3"))

	assert.Equal(t, 2, l.Clients())
	l.mu.Lock()
	_, idle := l.clients["10.0.0.1"]
	_, active := l.clients["10.0.0.2"]
	l.mu.Unlock()
	assert.False(t, idle)
	assert.True(t, active)
}
