package utils

import (
	"context"
	"os/exec"
	"time"
)

// CheckTool 检查外部工具是否可用，返回版本输出的第一行
func CheckTool(name string, versionFlag string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, versionFlag).Output()
	if err != nil {
		return "", false
	}
	for i, b := range out {
		if b == '\n' {
			return string(out[:i]), true
		}
	}
	return string(out), true
}
