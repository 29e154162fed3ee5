package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "ai_video_notes"

// Pipeline 笔记生成流程的监控指标
type Pipeline struct {
	registry *prometheus.Registry

	tasksTotal      *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	providerCalls   *prometheus.CounterVec
	glossaryLookups *prometheus.CounterVec
	apiResponseTime *prometheus.HistogramVec
	apiErrorCounter *prometheus.CounterVec
}

// NewPipeline 创建指标并注册到独立的 Registry
func NewPipeline() *Pipeline {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Pipeline{
		registry: reg,
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "任务按最终状态计数",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "各处理阶段耗时",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "LLM 提供商调用次数",
		}, []string{"provider", "operation", "result"}),
		glossaryLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "glossary_lookups_total",
			Help:      "术语解释缓存命中情况",
		}, []string{"result"}),
		apiResponseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_response_time_seconds",
			Help:      "HTTP 接口耗时",
		}, []string{"api"}),
		apiErrorCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_error_total",
			Help:      "HTTP 接口错误响应次数",
		}, []string{"method", "api", "status"}),
	}

	reg.MustRegister(m.tasksTotal, m.stageDuration, m.providerCalls, m.glossaryLookups, m.apiResponseTime, m.apiErrorCounter)
	return m
}

// Registry 用于 /metrics 暴露
func (m *Pipeline) Registry() *prometheus.Registry {
	return m.registry
}

// TaskFinished 记录任务终止状态
func (m *Pipeline) TaskFinished(status string) {
	m.tasksTotal.WithLabelValues(status).Inc()
}

// StageTimer 阶段计时器，调用 ObserveDuration 结束计时
func (m *Pipeline) StageTimer(stage string) *prometheus.Timer {
	return prometheus.NewTimer(m.stageDuration.WithLabelValues(stage))
}

// ObserveStage 记录阶段耗时
func (m *Pipeline) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ProviderCall 记录一次提供商调用
func (m *Pipeline) ProviderCall(provider, operation string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.providerCalls.WithLabelValues(provider, operation, result).Inc()
}

// GlossaryLookup 记录术语缓存命中 (hit) 或未命中 (miss)
func (m *Pipeline) GlossaryLookup(result string) {
	m.glossaryLookups.WithLabelValues(result).Inc()
}

// ApiResponseTimer 接口计时器
func (m *Pipeline) ApiResponseTimer(api string) *prometheus.Timer {
	return prometheus.NewTimer(m.apiResponseTime.WithLabelValues(api))
}

// ApiErrorInc 记录错误响应
func (m *Pipeline) ApiErrorInc(method, api string, status int) {
	m.apiErrorCounter.WithLabelValues(method, api, strconv.Itoa(status)).Inc()
}

// RegisterGauge 注册按需取值的仪表，例如线程池队列长度
func (m *Pipeline) RegisterGauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}
