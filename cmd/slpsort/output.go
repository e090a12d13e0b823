package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"

	"github.com/John-Robertt/slpsort/internal/domain"
)

// emitReport 输出最终结果：
// - stdout 是终端：汇总表格 + 失败条目表
// - 否则：stdout 必须且仅输出一个 RunReport JSON（摘要行走 stderr）
func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if isTerminal(stdout) {
		fmt.Fprintln(stdout, renderSummary(rr))
		if failures := renderFailures(rr); failures != "" {
			fmt.Fprintln(stdout, failures)
		}
		return
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, summaryLine(rr))
}

func marshalReport(rr domain.RunReport) ([]byte, error) {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	return fmt.Sprintf("完成：scanned=%d cpu=%d handwarmers=%d kept=%d failed=%d",
		s.Scanned, s.CPU, s.Handwarmers, s.Kept, s.Failed)
}

func renderSummary(rr domain.RunReport) string {
	s := rr.Summary
	mode := "apply"
	if rr.DryRun {
		mode = "dry-run"
	}
	rows := [][]string{
		{"path", rr.Path},
		{"mode", mode},
		{"scanned", strconv.Itoa(s.Scanned)},
		{"cpu", strconv.Itoa(s.CPU)},
		{"handwarmers", strconv.Itoa(s.Handwarmers)},
		{"kept", strconv.Itoa(s.Kept)},
		{"failed", strconv.Itoa(s.Failed)},
		{"elapsed", formatShortDuration(rr.FinishedAt.Sub(rr.StartedAt))},
	}
	return renderTable([]string{"Summary", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func renderFailures(rr domain.RunReport) string {
	var rows [][]string
	for _, it := range rr.Items {
		if it.Status != domain.StatusFailed {
			continue
		}
		src := it.Src
		if src == "" {
			src = "<run>"
		}
		rows = append(rows, []string{src, it.ErrorCode, truncate(it.ErrorMsg, 100)})
	}
	if len(rows) == 0 {
		return ""
	}
	return renderTable([]string{"File", "Error", "Message"}, rows, nil)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
