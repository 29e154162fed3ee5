package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ccp-p/ai-video-notes/pkg/models"
)

// geminiRequest generateContent 请求体
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// geminiResponse 只声明需要检查的字段，其余字段延迟解析
type geminiResponse struct {
	Error          json.RawMessage `json:"error"`
	Candidates     json.RawMessage `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiCandidate struct {
	Content struct {
		Parts []struct {
			Text json.RawMessage `json:"text"`
		} `json:"parts"`
	} `json:"content"`
}

// ParseGeminiText 从 generateContent 响应中取出 candidates[0].content.parts[0].text
func ParseGeminiText(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", &models.InvalidGenerationOutputError{Reason: "Gemini 返回空响应"}
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &models.InvalidGenerationOutputError{Reason: "Gemini 响应不是合法JSON", Raw: truncate(string(body), maxErrorBody), Err: err}
	}

	if present(resp.Error) {
		return "", &models.ProviderReportedError{
			Provider: ProviderGemini,
			Kind:     models.ProviderFailureError,
			Message:  errorMessage(resp.Error),
		}
	}

	var candidates []geminiCandidate
	if present(resp.Candidates) {
		// candidates 不是数组时按缺失处理
		_ = json.Unmarshal(resp.Candidates, &candidates)
	}
	if len(candidates) == 0 {
		reason := "unknown reason"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = resp.PromptFeedback.BlockReason
		}
		return "", &models.ProviderReportedError{
			Provider: ProviderGemini,
			Kind:     models.ProviderFailureBlocked,
			Message:  reason,
		}
	}

	parts := candidates[0].Content.Parts
	if len(parts) == 0 || !present(parts[0].Text) {
		return "", &models.InvalidGenerationOutputError{Reason: "Gemini 响应中找不到 text 字段"}
	}
	var text string
	if err := json.Unmarshal(parts[0].Text, &text); err != nil {
		return "", &models.InvalidGenerationOutputError{Reason: "Gemini 响应中的 text 不是字符串", Err: err}
	}
	return text, nil
}

func present(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}

func errorMessage(raw json.RawMessage) string {
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	return "Unknown error"
}
