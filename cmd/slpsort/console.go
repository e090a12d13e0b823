package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/slpsort/internal/app/run"
	"github.com/John-Robertt/slpsort/internal/config"
	"github.com/John-Robertt/slpsort/internal/domain"
)

var _ run.Observer = (*console)(nil)

// console 把运行事件渲染为面向人的逐行输出（写到 stderr，不污染 stdout 的 JSON 契约）。
//
// 每个被移动（或 dry-run 下计划移动）的回放一行，解码失败与移动失败各一行；
// 保留原位的回放不输出。
type console struct {
	w      io.Writer
	dryRun bool
}

func newConsole(w io.Writer) *console {
	return &console{w: w}
}

func (c *console) OnStart(eff config.EffectiveConfig) {
	c.dryRun = eff.DryRun

	mode := "apply"
	if eff.DryRun {
		mode = "dry-run (不创建目录/不移动)"
	}
	fmt.Fprintf(c.w, "[%s] slpsort %s\n", time.Now().Format("15:04:05"), mode)
	fmt.Fprintf(c.w, "  path: %s\n", eff.Path)
	if eff.ConfigPath != "" {
		fmt.Fprintf(c.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(c.w, "  cpu: %s  handwarmers: %s (< %s)  collision: %s\n",
		eff.Rules.CPUFolder, eff.Rules.HandwarmersFolder, formatDamage(eff.Rules.MinDamage), eff.Collision)
}

func (c *console) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	switch name {
	case "scan":
		fmt.Fprintf(c.w, "扫描: files=%d (%s)\n", intField(fields, "files"), formatShortDuration(dur))
	default:
		fmt.Fprintf(c.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (c *console) OnItemDone(idx, total int, file domain.ReplayFile, res domain.ItemResult, dur time.Duration) {
	for _, line := range itemLines(file.AbsPath, res, c.dryRun) {
		fmt.Fprintln(c.w, line)
	}
}

func (c *console) OnFinish(rr domain.RunReport) {}

// itemLines 生成单个回放的输出行。分类行先于移动结果输出：移动失败时两行都会出现。
func itemLines(path string, res domain.ItemResult, dryRun bool) []string {
	suffix := ""
	if dryRun {
		suffix = " (dry-run)"
	}

	if res.Status == domain.StatusFailed && (res.ErrorCode == domain.ErrCodeDecodeFailed || res.ErrorCode == domain.ErrCodeOpenFailed) {
		return []string{fmt.Sprintf("failed to read game: %s [%s]", path, truncate(res.ErrorMsg, 160))}
	}

	var lines []string
	switch res.Category {
	case domain.CategoryCPU:
		lines = append(lines, fmt.Sprintf("%s: cpu_match%s", path, suffix))
	case domain.CategoryHandwarmer:
		lines = append(lines, fmt.Sprintf("%s: damage_done = %s%s", path, formatDamage(res.TotalDamage), suffix))
	default:
		return nil
	}

	if res.Status == domain.StatusFailed {
		kind := "cpu match"
		if res.Category == domain.CategoryHandwarmer {
			kind = "handwarmer match"
		}
		lines = append(lines, fmt.Sprintf("failed to move %s: file=%s err=%s: %s",
			kind, path, res.ErrorCode, truncate(res.ErrorMsg, 160)))
	}
	return lines
}

// formatDamage 输出能唯一还原该 float32 的最短十进制表示（40 而不是 40.000000）。
func formatDamage(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
