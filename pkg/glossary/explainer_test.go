package glossary

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ccp-p/ai-video-notes/pkg/llm"
	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/store"
	"github.com/ccp-p/ai-video-notes/pkg/store/memstore"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) ProviderKey() string {
	return "GEMINI"
}

func (m *mockProvider) GenerateNotesFromAudio(ctx context.Context, audioPath string, mode models.GenerationMode) (string, error) {
	args := m.Called(ctx, audioPath, mode)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) GenerateTextResponse(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type mockRecorder struct {
	mu      sync.Mutex
	lookups map[string]int
	calls   int
}

func (r *mockRecorder) GlossaryLookup(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookups == nil {
		r.lookups = map[string]int{}
	}
	r.lookups[result]++
}

func (r *mockRecorder) ProviderCall(string, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
}

func newExplainer(p llm.Provider, s store.GlossaryStore, rec Recorder) *Explainer {
	return NewExplainer(s, llm.NewRegistry("GEMINI", p), rec)
}

func TestExplainCachesResult(t *testing.T) {
	p := &mockProvider{}
	p.On("GenerateTextResponse", mock.Anything, mock.AnythingOfType("string")).Return("RAG 的详细解释", nil).Once()

	s := memstore.New()
	rec := &mockRecorder{}
	e := newExplainer(p, s, rec)
	ctx := context.Background()

	first, err := e.Explain(ctx, "RAG", "检索增强生成", "笔记上下文", "")
	require.NoError(t, err)
	second, err := e.Explain(ctx, "RAG", "检索增强生成", "笔记上下文", "")
	require.NoError(t, err)

	assert.Equal(t, "RAG 的详细解释", first)
	assert.Equal(t, first, second)
	p.AssertNumberOfCalls(t, "GenerateTextResponse", 1)

	saved, err := s.FindByTerm(ctx, "RAG")
	require.NoError(t, err)
	assert.Equal(t, "检索增强生成", saved.ShortExplanation)
	assert.Equal(t, "RAG 的详细解释", *saved.LongExplanation)

	assert.Equal(t, 1, rec.lookups["miss"])
	assert.Equal(t, 1, rec.lookups["hit"])
	assert.Equal(t, 1, rec.calls)
}

func TestExplainFillsExistingEntryWithoutLong(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	blank := "   "
	require.NoError(t, s.SaveTerm(ctx, &models.GlossaryTerm{Term: "Agent", ShortExplanation: "原有简述", LongExplanation: &blank}))

	p := &mockProvider{}
	p.On("GenerateTextResponse", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, `"Agent"`)
	})).Return("Agent 解释", nil).Once()

	e := newExplainer(p, s, nil)
	got, err := e.Explain(ctx, "Agent", "新简述", "ctx", "gemini")
	require.NoError(t, err)
	assert.Equal(t, "Agent 解释", got)

	saved, err := s.FindByTerm(ctx, "Agent")
	require.NoError(t, err)
	// 已存在的记录保留原简述
	assert.Equal(t, "原有简述", saved.ShortExplanation)
	assert.Equal(t, int64(1), saved.ID)
}

func TestExplainConcurrentSingleCall(t *testing.T) {
	p := &mockProvider{}
	p.On("GenerateTextResponse", mock.Anything, mock.Anything).
		WaitUntil(time.After(100*time.Millisecond)).
		Return("并发解释", nil).Once()

	e := newExplainer(p, memstore.New(), nil)

	var wg sync.WaitGroup
	results := make([]string, 5)
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Explain(context.Background(), "LLM", "", "ctx", "")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "并发解释", results[i])
	}
	p.AssertNumberOfCalls(t, "GenerateTextResponse", 1)
}

func TestExplainUnknownProvider(t *testing.T) {
	e := newExplainer(&mockProvider{}, memstore.New(), nil)

	_, err := e.Explain(context.Background(), "RAG", "", "", "UNKNOWN")
	var unsupported *models.UnsupportedProviderError
	assert.True(t, errors.As(err, &unsupported))
}

func TestExplainProviderErrorNotCached(t *testing.T) {
	p := &mockProvider{}
	p.On("GenerateTextResponse", mock.Anything, mock.Anything).Return("", errors.New("upstream failed")).Once()
	p.On("GenerateTextResponse", mock.Anything, mock.Anything).Return("第二次成功", nil).Once()

	s := memstore.New()
	e := newExplainer(p, s, nil)
	ctx := context.Background()

	_, err := e.Explain(ctx, "MyBatis", "", "", "")
	assert.Error(t, err)
	_, err = s.FindByTerm(ctx, "MyBatis")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := e.Explain(ctx, "MyBatis", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "第二次成功", got)
}

func TestExplainBlankTerm(t *testing.T) {
	e := newExplainer(&mockProvider{}, memstore.New(), nil)
	_, err := e.Explain(context.Background(), "  ", "", "", "")
	assert.Error(t, err)
}

// blockingProvider 在 release 关闭前阻塞，并尊重传入的上下文
type blockingProvider struct {
	key     string
	started chan struct{}
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	calls   int
}

func newBlockingProvider(key string) *blockingProvider {
	return &blockingProvider{key: key, started: make(chan struct{}), release: make(chan struct{})}
}

func (p *blockingProvider) ProviderKey() string { return p.key }

func (p *blockingProvider) GenerateNotesFromAudio(context.Context, string, models.GenerationMode) (string, error) {
	return "", errors.New("不支持")
}

func (p *blockingProvider) GenerateTextResponse(ctx context.Context, _ string) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	p.once.Do(func() { close(p.started) })
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.release:
		return p.key + " 解释", nil
	}
}

func (p *blockingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestExplainCancelledCallerDoesNotFailOthers(t *testing.T) {
	p := newBlockingProvider("GEMINI")
	s := memstore.New()
	e := newExplainer(p, s, nil)

	ctx1, cancel1 := context.WithCancel(context.Background())
	defer cancel1()

	firstErr := make(chan error, 1)
	go func() {
		_, err := e.Explain(ctx1, "RAG", "", "ctx", "")
		firstErr <- err
	}()

	select {
	case <-p.started:
	case <-time.After(2 * time.Second):
		t.Fatal("提供商没有被调用")
	}

	type result struct {
		out string
		err error
	}
	second := make(chan result, 1)
	go func() {
		out, err := e.Explain(context.Background(), "RAG", "", "ctx", "")
		second <- result{out, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel1()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("取消的调用方没有返回")
	}

	close(p.release)
	select {
	case r := <-second:
		require.NoError(t, r.err)
		assert.Equal(t, "GEMINI 解释", r.out)
	case <-time.After(2 * time.Second):
		t.Fatal("第二个调用方没有返回")
	}
	assert.Equal(t, 1, p.callCount())

	// 后台生成完成后写入了缓存
	assert.Eventually(t, func() bool {
		entry, err := s.FindByTerm(context.Background(), "RAG")
		return err == nil && entry.HasLongExplanation()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestExplainConcurrentDifferentProviders(t *testing.T) {
	gemini := newBlockingProvider("GEMINI")
	openai := newBlockingProvider("OPENAI")
	e := NewExplainer(memstore.New(), llm.NewRegistry("GEMINI", gemini, openai), nil)

	errs := make(chan error, 2)
	go func() {
		_, err := e.Explain(context.Background(), "Agent", "", "", "gemini")
		errs <- err
	}()
	<-gemini.started

	openaiOut := make(chan string, 1)
	go func() {
		out, err := e.Explain(context.Background(), "Agent", "", "", "OPENAI")
		errs <- err
		openaiOut <- out
	}()

	select {
	case <-openai.started:
	case <-time.After(2 * time.Second):
		t.Fatal("指定其他提供商的请求不应复用进行中的生成")
	}
	close(openai.release)
	close(gemini.release)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Equal(t, 1, gemini.callCount())
	assert.Equal(t, 1, openai.callCount())
}

func TestExplainTermIsVerbatimKey(t *testing.T) {
	p := &mockProvider{}
	p.On("GenerateTextResponse", mock.Anything, mock.Anything).Return("解释", nil).Twice()

	s := memstore.New()
	e := newExplainer(p, s, nil)
	ctx := context.Background()

	_, err := e.Explain(ctx, "RAG", "", "", "")
	require.NoError(t, err)
	_, err = e.Explain(ctx, " RAG", "", "", "")
	require.NoError(t, err)

	p.AssertNumberOfCalls(t, "GenerateTextResponse", 2)
	_, err = s.FindByTerm(ctx, " RAG")
	assert.NoError(t, err)
}
