package logx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// DefaultLevel 让 stderr 默认只显示需要关注的问题；逐文件结果由进度输出负责。
const DefaultLevel = slog.LevelWarn

// Options 描述诊断日志的输出位置。
type Options struct {
	Level  slog.Level
	File   string    // 非空时额外以 JSON 追加写入该文件
	Stderr io.Writer // 为空时使用 os.Stderr
}

// Setup 创建诊断 logger：stderr 为文本格式；配置了 File 时通过 Fanout 同时写 JSON 文件。
// 返回的 cleanup 用于关闭日志文件（未打开文件时为 no-op）。
func Setup(opt Options) (*slog.Logger, func() error, error) {
	stderr := opt.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: opt.Level})

	if strings.TrimSpace(opt.File) == "" {
		return slog.New(stderrHandler), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(opt.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("创建日志目录失败：%w", err)
	}
	f, err := os.OpenFile(opt.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("打开日志文件失败：%w", err)
	}

	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: opt.Level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler)), f.Close, nil
}

// ParseLevel 解析 debug/info/warn/error（大小写不敏感）；空串返回 DefaultLevel。
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLevel, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return DefaultLevel, fmt.Errorf("log_level 只能是 debug/info/warn/error，实际是 %q", s)
	}
	return l, nil
}
