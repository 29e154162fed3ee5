package server

import "github.com/ccp-p/ai-video-notes/pkg/models"

// --- 请求结构体 ---

// GenerateNoteRequest 生成笔记请求
type GenerateNoteRequest struct {
	URL      string `json:"url"`
	UserID   int64  `json:"userId"`
	Mode     string `json:"mode"`               // FLASH 或 PRO，默认 FLASH
	Provider string `json:"provider,omitempty"` // 为空时使用默认提供商
}

// ExplainRequest 术语解释请求
type ExplainRequest struct {
	Term             string `json:"term"`
	ShortExplanation string `json:"shortExplanation"`
	Context          string `json:"context"`
	Provider         string `json:"provider,omitempty"`
}

// --- 响应结构体 ---

// BaseResponse 统一响应，code 为 0 表示成功
type BaseResponse struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// TaskCreatedData 任务创建结果
type TaskCreatedData struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

// TaskStatusData 任务状态，完成后附带笔记
type TaskStatusData struct {
	Task *models.Task `json:"task"`
	Note *models.Note `json:"note,omitempty"`
}

// ExplainData 术语解释结果
type ExplainData struct {
	Term        string `json:"term"`
	Explanation string `json:"explanation"`
}
