package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CheckFileExists 检查文件是否存在
func CheckFileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// CheckDirExists 检查目录是否存在
func CheckDirExists(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// EnsureDirExists 确保目录存在，如果不存在则创建
func EnsureDirExists(dirPath string) error {
	if dirPath == "" {
		return nil // 空路径视为可选
	}

	if !CheckDirExists(dirPath) {
		return os.MkdirAll(dirPath, 0755)
	}

	return nil
}

// FileSize 返回文件大小，文件不存在时返回错误
func FileSize(filePath string) (int64, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s 是目录", filePath)
	}
	return info.Size(), nil
}

// RemoveAllIfExists 目录存在时递归删除，返回是否执行了删除
func RemoveAllIfExists(dirPath string) (bool, error) {
	if dirPath == "" {
		return false, nil
	}
	if _, err := os.Stat(dirPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := os.RemoveAll(dirPath); err != nil {
		return false, fmt.Errorf("删除目录失败: %w", err)
	}
	return true, nil
}

// ReplaceExt 替换文件扩展名
func ReplaceExt(filePath string, ext string) string {
	return strings.TrimSuffix(filePath, filepath.Ext(filePath)) + ext
}

// ListStaleDirs 列出 root 下名称以 prefix 开头且修改时间早于 before 的目录
func ListStaleDirs(root string, prefix string, before time.Time) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(before) {
			stale = append(stale, filepath.Join(root, entry.Name()))
		}
	}
	return stale, nil
}
