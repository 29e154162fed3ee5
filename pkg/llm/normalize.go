package llm

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ccp-p/ai-video-notes/pkg/models"
)

var (
	leadingFence  = regexp.MustCompile("^```(?:json|JSON)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

// StripCodeFence 去掉首尾的 ``` 代码块标记
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// NormalizeNoteDocument 把提供商输出整理成 {"notes":[...]} 文档
//   - JSON 数组包装为 {"notes": 数组}
//   - 含 notes 键的对象原样返回
//   - 其他情况返回 *models.InvalidGenerationOutputError
func NormalizeNoteDocument(raw string) (string, error) {
	cleaned := StripCodeFence(raw)
	if cleaned == "" {
		return "", &models.InvalidGenerationOutputError{Reason: "AI返回内容为空", Raw: raw}
	}

	var root interface{}
	if err := json.Unmarshal([]byte(cleaned), &root); err != nil {
		return "", &models.InvalidGenerationOutputError{Reason: "AI返回的不是合法JSON", Raw: cleaned, Err: err}
	}

	switch v := root.(type) {
	case []interface{}:
		var buf bytes.Buffer
		buf.WriteString(`{"notes":`)
		if err := json.Compact(&buf, []byte(cleaned)); err != nil {
			return "", &models.InvalidGenerationOutputError{Reason: "AI返回的不是合法JSON", Raw: cleaned, Err: err}
		}
		buf.WriteString("}")
		return buf.String(), nil
	case map[string]interface{}:
		if _, ok := v["notes"]; !ok {
			return "", &models.InvalidGenerationOutputError{Reason: "JSON对象缺少顶层 notes 键", Raw: cleaned}
		}
		return cleaned, nil
	default:
		return "", &models.InvalidGenerationOutputError{Reason: "JSON顶层既不是数组也不是对象", Raw: cleaned}
	}
}
