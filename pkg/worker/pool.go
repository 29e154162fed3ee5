package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

var (
	// ErrPoolFull 队列已满且额外工作协程已达上限
	ErrPoolFull = errors.New("任务队列已满，请稍后重试")
	// ErrPoolClosed 线程池已关闭
	ErrPoolClosed = errors.New("任务线程池已关闭")
)

// Job 提交到线程池的任务，ctx 在线程池强制关闭时取消
type Job func(ctx context.Context)

// Options 线程池参数
type Options struct {
	CoreSize      int           // 常驻工作协程数
	MaxSize       int           // 工作协程上限
	QueueCapacity int           // 等待队列长度
	KeepAlive     time.Duration // 额外工作协程的空闲存活时间
}

// Stats 线程池运行状态
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
}

// Pool 有界线程池: 先占用常驻协程，再进入队列，队列满时扩容到上限，仍然满则拒绝
type Pool struct {
	opts  Options
	jobs  chan Job
	burst *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	workers   int32
	active    int32
	completed int64
	rejected  int64
}

// NewPool 创建并启动线程池
func NewPool(opts Options) *Pool {
	if opts.CoreSize < 1 {
		opts.CoreSize = 1
	}
	if opts.MaxSize < opts.CoreSize {
		opts.MaxSize = opts.CoreSize
	}
	if opts.QueueCapacity < 0 {
		opts.QueueCapacity = 0
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		opts:   opts,
		jobs:   make(chan Job, opts.QueueCapacity),
		burst:  semaphore.NewWeighted(int64(opts.MaxSize - opts.CoreSize)),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < opts.CoreSize; i++ {
		p.wg.Add(1)
		atomic.AddInt32(&p.workers, 1)
		go p.coreWorker()
	}

	utils.Info("任务线程池已启动: core=%d max=%d queue=%d", opts.CoreSize, opts.MaxSize, opts.QueueCapacity)
	return p
}

// Submit 提交任务，不会阻塞
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		return nil
	default:
	}

	if p.burst.TryAcquire(1) {
		p.wg.Add(1)
		atomic.AddInt32(&p.workers, 1)
		go p.burstWorker(job)
		return nil
	}

	atomic.AddInt64(&p.rejected, 1)
	return ErrPoolFull
}

func (p *Pool) coreWorker() {
	defer p.wg.Done()
	defer atomic.AddInt32(&p.workers, -1)

	for job := range p.jobs {
		p.run(job)
	}
}

// burstWorker 执行首个任务后继续消费队列，空闲超时后退出
func (p *Pool) burstWorker(first Job) {
	defer p.wg.Done()
	defer p.burst.Release(1)
	defer atomic.AddInt32(&p.workers, -1)

	p.run(first)

	idle := time.NewTimer(p.opts.KeepAlive)
	defer idle.Stop()
	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(job)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.opts.KeepAlive)
		case <-idle.C:
			return
		}
	}
}

func (p *Pool) run(job Job) {
	atomic.AddInt32(&p.active, 1)
	defer func() {
		atomic.AddInt32(&p.active, -1)
		atomic.AddInt64(&p.completed, 1)
		if r := recover(); r != nil {
			utils.Error("任务执行时发生panic: %v\n%s", r, debug.Stack())
		}
	}()
	job(p.ctx)
}

// Stats 当前运行状态
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   int(atomic.LoadInt32(&p.workers)),
		Active:    int(atomic.LoadInt32(&p.active)),
		Queued:    len(p.jobs),
		Completed: atomic.LoadInt64(&p.completed),
		Rejected:  atomic.LoadInt64(&p.rejected),
	}
}

// Shutdown 停止接收新任务并等待队列中的任务执行完毕
// ctx 结束时取消正在执行的任务并返回 ctx 的错误
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		utils.Info("任务线程池已关闭")
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("等待任务结束超时: %w", ctx.Err())
	}
}
