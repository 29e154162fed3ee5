package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ccp-p/ai-video-notes/pkg/metrics"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// RequestLogger 记录每个请求的方法、路由、状态码与耗时
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		utils.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}).Debug("HTTP请求")
	}
}

// Metrics 记录接口耗时与错误次数
func Metrics(m *metrics.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		api := c.FullPath()
		if api == "" {
			api = "unknown"
		}
		timer := m.ApiResponseTimer(api)

		c.Next()

		timer.ObserveDuration()
		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			m.ApiErrorInc(c.Request.Method, api, status)
		}
	}
}

// limiterIdleTTL 客户端超过该时长没有请求时移除其限流器
const limiterIdleTTL = 10 * time.Minute

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter 按客户端IP限流，空闲的客户端定期清理
type ClientLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientEntry
	lastPrune time.Time
}

// NewClientLimiter 创建限流器，perSecond <= 0 表示不限流
func NewClientLimiter(perSecond float64, burst int) *ClientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ClientLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		now:       time.Now,
		clients:   make(map[string]*clientEntry),
		lastPrune: time.Now(),
	}
}

// Allow 客户端本次请求是否放行
func (l *ClientLimiter) Allow(client string) bool {
	if l.limit <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastPrune) >= limiterIdleTTL {
		l.prune(now)
	}
	entry, ok := l.clients[client]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// prune 移除空闲超时的客户端，调用方持有锁
func (l *ClientLimiter) prune(now time.Time) {
	for client, entry := range l.clients {
		if now.Sub(entry.lastSeen) >= limiterIdleTTL {
			delete(l.clients, client)
		}
	}
	l.lastPrune = now
}

// Clients 当前跟踪的客户端数量
func (l *ClientLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Middleware 超出限额时返回 429
func (l *ClientLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			respondWithError(c, http.StatusTooManyRequests, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}
		c.Next()
	}
}
