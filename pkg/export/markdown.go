package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// ExplanationPlaceholder 术语详细解释获取失败时的占位文本
const ExplanationPlaceholder = "(详细解释生成失败或未找到)"

// DefaultTag 正文中没有匹配到关键词时使用的标签
const DefaultTag = "视频笔记"

// 可以从正文中识别出的标签
var tagKeywords = []string{"Agent", "LangChain", "LLM", "Spring", "MyBatis", "AI", "Java"}

// Block 笔记中的一个内容块
type Block struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// KnowledgePoint knowledge_point 块的内容
type KnowledgePoint struct {
	Term        string `json:"term"`
	Explanation string `json:"explanation"`
}

// Text 返回字符串类型的内容，不是字符串时返回原始JSON
func (b Block) Text() string {
	var s string
	if err := json.Unmarshal(b.Content, &s); err == nil {
		return s
	}
	return string(b.Content)
}

// KnowledgePoint 解析知识点内容
func (b Block) KnowledgePoint() (KnowledgePoint, bool) {
	var kp KnowledgePoint
	if err := json.Unmarshal(b.Content, &kp); err != nil || strings.TrimSpace(kp.Term) == "" {
		return KnowledgePoint{}, false
	}
	return kp, true
}

// ParseBlocks 解析笔记内容 {"notes":[...]}
func ParseBlocks(content string) ([]Block, error) {
	var doc struct {
		Notes []Block `json:"notes"`
	}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("解析笔记内容失败: %w", err)
	}
	return doc.Notes, nil
}

// TermExplainer 获取术语的详细解释
type TermExplainer interface {
	Explain(ctx context.Context, term, shortExplanation, noteContext, providerKey string) (string, error)
}

// MarkdownExporter 将笔记导出为带 frontmatter 的交互式 Markdown
type MarkdownExporter struct {
	OutputFolder string

	explainer TermExplainer
	now       func() time.Time
}

// NewMarkdownExporter 创建一个新的Markdown导出器
func NewMarkdownExporter(outputFolder string, explainer TermExplainer) *MarkdownExporter {
	return &MarkdownExporter{
		OutputFolder: outputFolder,
		explainer:    explainer,
		now:          time.Now,
	}
}

// Render 生成完整的 Markdown 文本
// 每个知识点会请求一次详细解释，单个术语失败时使用占位文本
func (e *MarkdownExporter) Render(ctx context.Context, note *models.Note, providerKey string) (string, error) {
	blocks, err := ParseBlocks(note.Content)
	if err != nil {
		return "", err
	}

	explanations := e.explainTerms(ctx, blocks, buildContext(blocks), providerKey)

	var body strings.Builder
	hasList := false
	for _, block := range blocks {
		switch block.Type {
		case models.BlockHeading:
			body.WriteString("## " + block.Text() + "\n\n")
		case models.BlockParagraph:
			body.WriteString(block.Text() + "\n\n")
		case models.BlockListItem:
			hasList = true
			body.WriteString("* " + block.Text() + "\n")
		case models.BlockKnowledgePoint:
			kp, ok := block.KnowledgePoint()
			if !ok {
				continue
			}
			long, found := explanations[kp.Term]
			if !found {
				long = ExplanationPlaceholder
			}
			fmt.Fprintf(&body, "<details>\n<summary>点击展开<strong>%s</strong>详细内容</summary>\n\n> **%s**: %s\n\n%s\n\n</details>\n\n",
				kp.Term, kp.Term, kp.Explanation, long)
		}
	}
	if hasList {
		body.WriteString("\n")
	}

	markdown := body.String()
	return e.frontmatter(note.VideoURL, markdown) + markdown, nil
}

// ExportFile 导出到输出目录，返回文件路径
func (e *MarkdownExporter) ExportFile(ctx context.Context, note *models.Note, providerKey string) (string, error) {
	markdown, err := e.Render(ctx, note, providerKey)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(e.OutputFolder, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	outputFile := filepath.Join(e.OutputFolder, fmt.Sprintf("note_%d.md", note.ID))
	if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
		return "", fmt.Errorf("写入Markdown文件失败: %w", err)
	}

	utils.Info("已导出Markdown文件: %s", outputFile)
	return outputFile, nil
}

func (e *MarkdownExporter) explainTerms(ctx context.Context, blocks []Block, noteContext, providerKey string) map[string]string {
	out := make(map[string]string)
	if e.explainer == nil {
		return out
	}
	for _, block := range blocks {
		if block.Type != models.BlockKnowledgePoint {
			continue
		}
		kp, ok := block.KnowledgePoint()
		if !ok {
			continue
		}
		if _, done := out[kp.Term]; done {
			continue
		}
		long, err := e.explainer.Explain(ctx, kp.Term, kp.Explanation, noteContext, providerKey)
		if err != nil {
			utils.Warn("获取术语 %s 的详细解释失败: %v", kp.Term, err)
			out[kp.Term] = ExplanationPlaceholder
			continue
		}
		out[kp.Term] = long
	}
	return out
}

// buildContext 拼接整篇笔记作为术语解释的上下文
func buildContext(blocks []Block) string {
	var sb strings.Builder
	for _, block := range blocks {
		if kp, ok := block.KnowledgePoint(); ok && block.Type == models.BlockKnowledgePoint {
			sb.WriteString(kp.Term + ": " + kp.Explanation + "\n")
			continue
		}
		sb.WriteString(block.Text() + "\n")
	}
	return sb.String()
}

func (e *MarkdownExporter) frontmatter(videoURL, body string) string {
	source := videoURL
	if source == "" {
		source = "N/A"
	}

	lower := strings.ToLower(body)
	var tags strings.Builder
	for _, kw := range tagKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			tags.WriteString("  - " + kw + "\n")
		}
	}
	if tags.Len() == 0 {
		tags.WriteString("  - " + DefaultTag + "\n")
	}

	return fmt.Sprintf("---\nsource: %s\ngenerated_at: %s\ntags:\n%s---\n\n",
		source, e.now().Format("2006-01-02"), tags.String())
}
