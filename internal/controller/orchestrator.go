package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ccp-p/ai-video-notes/pkg/llm"
	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/store"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
	"github.com/ccp-p/ai-video-notes/pkg/worker"
)

// 任务状态信息
const (
	MsgQueued      = "Task has been queued for processing."
	MsgDownloading = "downloading video"
	MsgExtracting  = "extracting audio"
	MsgGenerating  = "generating notes"
	MsgSaving      = "saving notes"
	MsgCompleted   = "notes generated successfully"
)

// 处理阶段名称，用于耗时统计
const (
	StageDownload = "download"
	StageExtract  = "extract"
	StageGenerate = "generate"
	StageSave     = "save"
)

// ErrInvalidRequest 请求参数不合法
var ErrInvalidRequest = errors.New("请求参数不合法")

// ErrTaskExists 调用方指定的任务ID已被占用
var ErrTaskExists = fmt.Errorf("%w: 任务ID已存在", ErrInvalidRequest)

// MediaStage 下载视频与提取音频
type MediaStage interface {
	NewWorkspace(taskID string) (string, error)
	DownloadVideo(ctx context.Context, workspace, url string) (string, error)
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
	Cleanup(workspace string) error
}

// ProviderResolver 根据标识查找提供商
type ProviderResolver interface {
	Resolve(key string) (llm.Provider, error)
}

// Submitter 异步执行任务的线程池
type Submitter interface {
	Submit(job worker.Job) error
}

// Recorder 流程指标，可以为空
type Recorder interface {
	TaskFinished(status string)
	ObserveStage(stage string, d time.Duration)
	ProviderCall(provider, operation string, success bool)
}

// StatusListener 任务状态变化的回调
type StatusListener func(task models.Task)

// Deps 编排器依赖
type Deps struct {
	Tasks     store.TaskStore
	Notes     store.NoteStore
	Media     MediaStage
	Providers ProviderResolver
	Pool      Submitter
	Recorder  Recorder
	// GenerationTimeout 单次生成的超时时间，0 表示不限
	GenerationTimeout time.Duration
}

// TaskOrchestrator 驱动 视频→音频→笔记 的任务状态机
type TaskOrchestrator struct {
	deps      Deps
	listeners []StatusListener
	now       func() time.Time
	log       *logrus.Entry
}

// NewTaskOrchestrator 创建任务编排器
func NewTaskOrchestrator(deps Deps) *TaskOrchestrator {
	return &TaskOrchestrator{
		deps: deps,
		now:  time.Now,
		log:  utils.WithField("component", "orchestrator"),
	}
}

// AddListener 注册状态回调，需在提交任务前调用
func (o *TaskOrchestrator) AddListener(l StatusListener) {
	o.listeners = append(o.listeners, l)
}

// Validate 校验并规范化请求
func Validate(req *models.GenerationRequest) error {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return fmt.Errorf("%w: 视频链接不能为空", ErrInvalidRequest)
	}
	if req.UserID <= 0 {
		return fmt.Errorf("%w: 用户ID必须大于0", ErrInvalidRequest)
	}
	mode, ok := models.ParseGenerationMode(string(req.Mode))
	if !ok {
		return fmt.Errorf("%w: 不支持的生成模式 %s", ErrInvalidRequest, req.Mode)
	}
	req.Mode = mode
	return nil
}

// Submit 创建任务并提交到线程池，立即返回 PENDING 状态的任务
// 线程池拒绝时任务标记为 FAILED 并返回 worker.ErrPoolFull
// 指定的任务ID已存在时返回 ErrTaskExists，不覆盖原有记录
func (o *TaskOrchestrator) Submit(ctx context.Context, req models.GenerationRequest) (*models.Task, error) {
	if err := Validate(&req); err != nil {
		return nil, err
	}
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	} else {
		_, err := o.deps.Tasks.GetTask(ctx, req.TaskID)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: %s", ErrTaskExists, req.TaskID)
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("读取任务 %s 失败: %w", req.TaskID, err)
		}
	}

	now := o.now()
	task := &models.Task{
		ID:            req.TaskID,
		Status:        models.TaskStatusPending,
		StatusMessage: MsgQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := o.deps.Tasks.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("保存任务失败: %w", err)
	}
	o.notify(*task)

	o.log.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"url":      req.URL,
		"user_id":  req.UserID,
		"mode":     req.Mode,
		"provider": req.Provider,
	}).Info("任务已创建")

	if err := o.deps.Pool.Submit(func(ctx context.Context) {
		o.Run(ctx, req)
	}); err != nil {
		o.log.WithField("task_id", task.ID).Warnf("任务提交失败: %v", err)
		o.fail(ctx, task.ID, err)
		if failed, getErr := o.deps.Tasks.GetTask(ctx, task.ID); getErr == nil {
			task = failed
		}
		return task, err
	}

	return task, nil
}

// Run 同步执行整个流程，所有错误都转换为任务的 FAILED 状态
func (o *TaskOrchestrator) Run(ctx context.Context, req models.GenerationRequest) {
	log := o.log.WithField("task_id", req.TaskID)
	start := o.now()

	var workspace string
	defer func() {
		if workspace == "" {
			return
		}
		if err := o.deps.Media.Cleanup(workspace); err != nil {
			log.Warnf("清理工作目录失败: %v", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("任务执行时发生panic: %v", r)
			o.fail(ctx, req.TaskID, fmt.Errorf("任务执行异常: %v", r))
		}
	}()

	noteID, err := o.process(ctx, req, &workspace)
	if err != nil {
		log.Errorf("任务失败: %v", err)
		o.fail(ctx, req.TaskID, err)
		return
	}

	if err := o.update(ctx, req.TaskID, func(t *models.Task) {
		t.Status = models.TaskStatusCompleted
		t.StatusMessage = MsgCompleted
		t.ResultNoteID = &noteID
	}); err != nil {
		log.Errorf("更新任务完成状态失败: %v", err)
		o.fail(ctx, req.TaskID, err)
		return
	}
	o.finished(models.TaskStatusCompleted)
	log.Infof("任务完成，笔记ID: %d，用时 %s", noteID, utils.FormatTimeDuration(o.now().Sub(start).Seconds()))
}

func (o *TaskOrchestrator) process(ctx context.Context, req models.GenerationRequest, workspace *string) (int64, error) {
	// 1. 下载视频
	if err := o.progress(ctx, req.TaskID, MsgDownloading); err != nil {
		return 0, err
	}
	stageStart := o.now()
	ws, err := o.deps.Media.NewWorkspace(req.TaskID)
	if err != nil {
		return 0, err
	}
	*workspace = ws
	videoPath, err := o.deps.Media.DownloadVideo(ctx, ws, req.URL)
	if err != nil {
		return 0, err
	}
	o.observe(StageDownload, stageStart)

	// 2. 提取音频
	if err := o.progress(ctx, req.TaskID, MsgExtracting); err != nil {
		return 0, err
	}
	stageStart = o.now()
	audioPath, err := o.deps.Media.ExtractAudio(ctx, videoPath)
	if err != nil {
		return 0, err
	}
	o.observe(StageExtract, stageStart)

	// 3. 生成笔记
	if err := o.progress(ctx, req.TaskID, MsgGenerating); err != nil {
		return 0, err
	}
	stageStart = o.now()
	content, err := o.generate(ctx, req, audioPath)
	if err != nil {
		return 0, err
	}
	o.observe(StageGenerate, stageStart)

	// 4. 保存笔记
	if err := o.progress(ctx, req.TaskID, MsgSaving); err != nil {
		return 0, err
	}
	stageStart = o.now()
	note := &models.Note{
		UserID:    req.UserID,
		VideoURL:  req.URL,
		Content:   content,
		CreatedAt: o.now(),
	}
	if err := o.deps.Notes.SaveNote(ctx, note); err != nil {
		return 0, fmt.Errorf("保存笔记失败: %w", err)
	}
	o.observe(StageSave, stageStart)

	return note.ID, nil
}

func (o *TaskOrchestrator) generate(ctx context.Context, req models.GenerationRequest, audioPath string) (string, error) {
	provider, err := o.deps.Providers.Resolve(req.Provider)
	if err != nil {
		return "", err
	}

	genCtx := ctx
	if o.deps.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, o.deps.GenerationTimeout)
		defer cancel()
	}

	o.log.WithFields(logrus.Fields{
		"task_id":  req.TaskID,
		"provider": provider.ProviderKey(),
		"mode":     req.Mode,
	}).Info("开始生成笔记")

	raw, err := provider.GenerateNotesFromAudio(genCtx, audioPath, req.Mode)
	if o.deps.Recorder != nil {
		o.deps.Recorder.ProviderCall(provider.ProviderKey(), llm.OpGenerateNotes, err == nil)
	}
	if err != nil {
		return "", err
	}
	return llm.NormalizeNoteDocument(raw)
}

// progress 进入 PROCESSING 并更新阶段信息
func (o *TaskOrchestrator) progress(ctx context.Context, taskID, message string) error {
	return o.update(ctx, taskID, func(t *models.Task) {
		t.Status = models.TaskStatusProcessing
		t.StatusMessage = message
	})
}

// fail 将任务标记为 FAILED，信息保证非空
func (o *TaskOrchestrator) fail(ctx context.Context, taskID string, cause error) {
	msg := models.FailureMessage(cause)
	if err := o.update(ctx, taskID, func(t *models.Task) {
		t.Status = models.TaskStatusFailed
		t.StatusMessage = msg
	}); err != nil {
		o.log.WithField("task_id", taskID).Errorf("更新任务失败状态失败: %v", err)
		return
	}
	o.finished(models.TaskStatusFailed)
}

// update 重新读取任务后修改并保存
func (o *TaskOrchestrator) update(ctx context.Context, taskID string, mutate func(t *models.Task)) error {
	task, err := o.deps.Tasks.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("读取任务 %s 失败: %w", taskID, err)
	}
	mutate(task)
	task.UpdatedAt = o.now()
	if err := o.deps.Tasks.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("保存任务 %s 失败: %w", taskID, err)
	}
	o.notify(*task)
	return nil
}

func (o *TaskOrchestrator) notify(task models.Task) {
	for _, l := range o.listeners {
		l(task)
	}
}

func (o *TaskOrchestrator) observe(stage string, start time.Time) {
	if o.deps.Recorder != nil {
		o.deps.Recorder.ObserveStage(stage, o.now().Sub(start))
	}
}

func (o *TaskOrchestrator) finished(status models.TaskStatus) {
	if o.deps.Recorder != nil {
		o.deps.Recorder.TaskFinished(string(status))
	}
}

// Task 查询任务状态
func (o *TaskOrchestrator) Task(ctx context.Context, id string) (*models.Task, error) {
	return o.deps.Tasks.GetTask(ctx, id)
}

// Note 查询笔记
func (o *TaskOrchestrator) Note(ctx context.Context, id int64) (*models.Note, error) {
	return o.deps.Notes.GetNote(ctx, id)
}
