package prompt

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// DefaultNotePrompt 内置的多模态笔记生成提示词
const DefaultNotePrompt = `你是一名专业的学习笔记整理助手。请仔细收听这段音频，把其中的知识内容整理成结构化的学习笔记。

输出要求:
1. 只输出一个合法的 JSON 数组，不要输出任何解释性文字，也不要使用代码块标记。
2. 数组中的每个元素是一个笔记块，格式为 {"type": 类型, "content": 内容}。
3. type 只能是以下四种之一:
   - "heading": 章节标题，content 为字符串
   - "paragraph": 段落说明，content 为字符串
   - "list_item": 列表要点，content 为字符串
   - "knowledge_point": 关键知识点，content 为对象 {"term": 术语, "explanation": 一句话解释}
4. 按音频中内容出现的顺序组织笔记，标题与内容层次分明。
5. 对视频中出现的专业术语、框架、核心概念使用 knowledge_point 标注。
6. 使用简体中文输出。`

// Loader 管理提示词模板，模板文件变化后可重新加载
type Loader struct {
	path string

	mu         sync.RWMutex
	notePrompt string
}

// NewLoader 创建提示词加载器，path 为空时使用内置模板
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path, notePrompt: DefaultNotePrompt}
	if path == "" {
		return l, nil
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path 模板文件路径
func (l *Loader) Path() string {
	return l.path
}

// Reload 重新读取模板文件，读取失败时保留原有模板
func (l *Loader) Reload() error {
	if l.path == "" {
		return nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("读取提示词模板失败: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Errorf("提示词模板为空: %s", l.path)
	}

	l.mu.Lock()
	l.notePrompt = text
	l.mu.Unlock()

	utils.Info("已加载提示词模板: %s", l.path)
	return nil
}

// OnFileChanged 作为文件监控回调，失败只记录日志
func (l *Loader) OnFileChanged(string) {
	if err := l.Reload(); err != nil {
		utils.Warn("重新加载提示词模板失败，继续使用旧模板: %v", err)
	}
}

// NotePrompt 当前的笔记生成提示词
func (l *Loader) NotePrompt() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.notePrompt
}

// BuildExplanationPrompt 构造术语深度解释的提示词
func BuildExplanationPrompt(term, noteContext string) string {
	return fmt.Sprintf(`你是一位资深的软件架构师和技术导师。一位学生正在学习关于 "%s" 的知识，这是他/她学习笔记的上下文：

--- 笔记上下文 ---
%s
--- 结束 ---

请你用通俗易懂、循循诱导的方式，向这位学生详细解释 "%s" 是什么。请专注于以下几点：
1. 它的核心思想或解决了什么问题？
2. 为什么在上述笔记的上下文中会提到它？
3. (可选) 给出一个简单的例子或比喻来帮助理解。

你的回答应该结构清晰，重点突出。请直接返回解释内容，无需客套。`, term, noteContext, term)
}
