package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusMoved   = "moved"
	StatusPlanned = "planned"
	StatusKept    = "kept"
	StatusFailed  = "failed"
)

const (
	ErrCodeDecodeFailed   = "decode_failed"
	ErrCodeOpenFailed     = "open_failed"
	ErrCodeTargetConflict = "target_conflict"
	ErrCodeCrossDevice    = "cross_device"
	ErrCodeMoveFailed     = "move_failed"
	ErrCodeScanFailed     = "scan_failed"
	ErrCodeConfigInvalid  = "config_invalid"
	ErrCodeRootInvalid    = "root_invalid"
	ErrCodeCanceled       = "canceled"
	ErrCodeLocked         = "locked"
)

// RunReport 是对外稳定输出（--report 文件 / stdout JSON）的结构。
type RunReport struct {
	RunID  string `json:"run_id"`
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Scanned     int `json:"scanned"`
	CPU         int `json:"cpu"`
	Handwarmers int `json:"handwarmers"`
	Kept        int `json:"kept"`
	Failed      int `json:"failed"`
}

type ItemResult struct {
	Src string `json:"src"`
	Dst string `json:"dst"`

	Category    string  `json:"category"`
	HasCPU      bool    `json:"has_cpu"`
	TotalDamage float32 `json:"total_damage"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 src 字典序；src=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Src
		b := r.Items[j].Src
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		if it.Src != "" {
			s.Scanned++
		}
		switch it.Status {
		case StatusFailed:
			s.Failed++
			continue
		case StatusKept:
			s.Kept++
			continue
		}
		switch it.Category {
		case CategoryCPU:
			s.CPU++
		case CategoryHandwarmer:
			s.Handwarmers++
		}
	}
	r.Summary = s
}

// Fatal 报告本次运行是否在逐文件处理之前就失败了（配置/根目录/扫描错误）。
// 这类错误以 src=="" 的合成条目出现。
func (r RunReport) Fatal() bool {
	for _, it := range r.Items {
		if it.Src == "" && it.Status == StatusFailed {
			return true
		}
	}
	return false
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
