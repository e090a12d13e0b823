package logx

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetup_FanoutToStderrAndJSONFile(t *testing.T) {
	var stderr bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "slpsort.log")

	logger, cleanup, err := Setup(Options{Level: slog.LevelDebug, File: file, Stderr: &stderr})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	logger.Info("classified", "path", "Game_1.slp", "category", "cpu")
	if err := cleanup(); err != nil {
		t.Fatalf("关闭日志文件失败：%v", err)
	}

	if !strings.Contains(stderr.String(), "msg=classified") {
		t.Fatalf("stderr 缺少文本日志：%q", stderr.String())
	}

	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("读取日志文件失败：%v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(b), &rec); err != nil {
		t.Fatalf("日志文件不是 JSON 行：%v\n%s", err, b)
	}
	if rec["category"] != "cpu" {
		t.Fatalf("JSON 日志字段不正确：%v", rec)
	}
}

func TestSetup_LevelFiltersStderr(t *testing.T) {
	var stderr bytes.Buffer
	logger, cleanup, err := Setup(Options{Level: slog.LevelWarn, Stderr: &stderr})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer cleanup()

	logger.Debug("hidden")
	logger.Warn("shown")
	if strings.Contains(stderr.String(), "hidden") || !strings.Contains(stderr.String(), "shown") {
		t.Fatalf("level 过滤不正确：%q", stderr.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      DefaultLevel,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v；期望 %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("非法 level 应报错")
	}
}
