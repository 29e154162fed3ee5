package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ccp-p/ai-video-notes/internal/controller"
	"github.com/ccp-p/ai-video-notes/pkg/llm"
	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/store"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
	"github.com/ccp-p/ai-video-notes/pkg/worker"
)

// Orchestrator 任务提交与查询
type Orchestrator interface {
	Submit(ctx context.Context, req models.GenerationRequest) (*models.Task, error)
	Task(ctx context.Context, id string) (*models.Task, error)
	Note(ctx context.Context, id int64) (*models.Note, error)
}

// Explainer 术语解释
type Explainer interface {
	Explain(ctx context.Context, term, shortExplanation, noteContext, providerKey string) (string, error)
}

// Exporter 笔记导出为Markdown
type Exporter interface {
	Render(ctx context.Context, note *models.Note, providerKey string) (string, error)
}

// ProviderStats 提供商统计
type ProviderStats interface {
	Stats() []llm.ProviderStats
}

// API 聚合所有处理函数依赖
type API struct {
	orchestrator Orchestrator
	explainer    Explainer
	exporter     Exporter
	providers    ProviderStats
	poolStats    func() worker.Stats
}

// NewAPI 创建API
func NewAPI(o Orchestrator, e Explainer, x Exporter, p ProviderStats, poolStats func() worker.Stats) *API {
	return &API{
		orchestrator: o,
		explainer:    e,
		exporter:     x,
		providers:    p,
		poolStats:    poolStats,
	}
}

// --- Helper Functions ---

// respondWithError 发送错误 JSON 响应
func respondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, BaseResponse{Code: code, Msg: message})
}

// respondWithData 发送成功响应
func respondWithData(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, BaseResponse{Code: 0, Data: data})
}

func parseNoteID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("noteId"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(c, http.StatusBadRequest, "无效的笔记ID")
		return 0, false
	}
	return id, true
}

// --- API Handlers ---

// handleGenerateNote 创建笔记生成任务，立即返回任务ID
func (a *API) handleGenerateNote(c *gin.Context) {
	var req GenerateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "无效的请求体: "+err.Error())
		return
	}

	task, err := a.orchestrator.Submit(c.Request.Context(), models.GenerationRequest{
		URL:      req.URL,
		UserID:   req.UserID,
		Mode:     models.GenerationMode(req.Mode),
		Provider: req.Provider,
	})
	switch {
	case errors.Is(err, controller.ErrInvalidRequest):
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, worker.ErrPoolFull), errors.Is(err, worker.ErrPoolClosed):
		msg := err.Error()
		if task != nil {
			msg += "，任务ID: " + task.ID
		}
		respondWithError(c, http.StatusServiceUnavailable, msg)
		return
	case err != nil:
		respondWithError(c, http.StatusInternalServerError, "创建任务失败: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, BaseResponse{
		Code: 0,
		Msg:  "笔记生成任务已创建",
		Data: TaskCreatedData{TaskID: task.ID, Status: string(task.Status)},
	})
}

// handleGetTaskStatus 查询任务状态，完成的任务附带笔记
func (a *API) handleGetTaskStatus(c *gin.Context) {
	taskID := strings.TrimSpace(c.Param("taskId"))
	if taskID == "" {
		respondWithError(c, http.StatusBadRequest, "缺少 taskId")
		return
	}

	task, err := a.orchestrator.Task(c.Request.Context(), taskID)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(c, http.StatusNotFound, "未找到指定的任务")
		return
	}
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	data := TaskStatusData{Task: task}
	if task.Status == models.TaskStatusCompleted && task.ResultNoteID != nil {
		note, err := a.orchestrator.Note(c.Request.Context(), *task.ResultNoteID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusInternalServerError, err.Error())
			return
		}
		data.Note = note
	}
	respondWithData(c, data)
}

// handleGetNote 查询笔记
func (a *API) handleGetNote(c *gin.Context) {
	id, ok := parseNoteID(c)
	if !ok {
		return
	}

	note, err := a.orchestrator.Note(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(c, http.StatusNotFound, "未找到指定的笔记")
		return
	}
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithData(c, note)
}

// handleExportNote 导出交互式Markdown
func (a *API) handleExportNote(c *gin.Context) {
	id, ok := parseNoteID(c)
	if !ok {
		return
	}

	note, err := a.orchestrator.Note(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(c, http.StatusNotFound, "未找到指定的笔记")
		return
	}
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	markdown, err := a.exporter.Render(c.Request.Context(), note, c.Query("provider"))
	if err != nil {
		utils.Error("导出笔记 %d 失败: %v", id, err)
		respondWithError(c, http.StatusInternalServerError, "导出笔记失败: "+err.Error())
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(markdown))
}

// handleExplain 获取术语的详细解释
func (a *API) handleExplain(c *gin.Context) {
	var req ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "无效的请求体: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Term) == "" {
		respondWithError(c, http.StatusBadRequest, "请求参数不完整: term 是必需的")
		return
	}

	answer, err := a.explainer.Explain(c.Request.Context(), req.Term, req.ShortExplanation, req.Context, req.Provider)
	if err != nil {
		var unsupported *models.UnsupportedProviderError
		if errors.As(err, &unsupported) {
			respondWithError(c, http.StatusBadRequest, "选择的模型不支持此操作: "+err.Error())
			return
		}
		utils.Error("术语 %s 解释失败: %v", req.Term, err)
		respondWithError(c, http.StatusInternalServerError, "AI解释服务出现内部错误: "+err.Error())
		return
	}
	respondWithData(c, ExplainData{Term: req.Term, Explanation: answer})
}

// handleProviders 列出提供商与调用统计
func (a *API) handleProviders(c *gin.Context) {
	respondWithData(c, a.providers.Stats())
}

// handleHealth 健康检查，附带线程池状态
func (a *API) handleHealth(c *gin.Context) {
	data := gin.H{"status": "ok"}
	if a.poolStats != nil {
		data["pool"] = a.poolStats()
	}
	respondWithData(c, data)
}
