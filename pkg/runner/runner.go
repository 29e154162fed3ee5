package runner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

const (
	// tailLines 失败时保留的输出行数
	tailLines = 20
	waitDelay = time.Second
)

// Command 一次外部命令调用
type Command struct {
	Name string
	Args []string
	Dir  string // 为空使用当前目录
}

// String 返回用于日志与错误信息的命令行
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner 执行外部命令，退出码非0时返回 *models.ExternalToolError
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner 基于 os/exec 的实现，stdout 与 stderr 合并后逐行写入调试日志
type ExecRunner struct {
	Logger *logrus.Entry
}

// NewExecRunner 创建命令执行器
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Logger: utils.WithField("component", "runner")}
}

// Run 执行命令并等待结束
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	log := r.Logger
	if log == nil {
		log = utils.WithField("component", "runner")
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	// 子进程被杀后孙进程可能仍持有输出管道
	cmd.WaitDelay = waitDelay

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	log.Infof("执行命令: %s", c.String())

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return &models.ExternalToolError{Command: c.String(), ExitCode: -1, Err: err}
	}

	tail := newTailBuffer(tailLines)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			log.Debugf("[CMD Output] %s", line)
			tail.add(line)
		}
		// 超长行导致扫描中断时继续读空管道，避免子进程阻塞
		io.Copy(io.Discard, pr)
	}()

	waitErr := cmd.Wait()
	pw.Close()
	wg.Wait()
	pr.Close()

	if waitErr == nil {
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		waitErr = ctxErr
	}

	log.WithField("exit_code", exitCode).Errorf("命令执行失败: %s", c.Name)
	return &models.ExternalToolError{
		Command:  c.String(),
		ExitCode: exitCode,
		Output:   tail.String(),
		Err:      waitErr,
	}
}

// tailBuffer 保存最后 n 行输出
type tailBuffer struct {
	lines []string
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *tailBuffer) String() string {
	return strings.Join(t.lines, "\n")
}
