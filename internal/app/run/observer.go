package run

import (
	"time"

	"github.com/John-Robertt/slpsort/internal/config"
	"github.com/John-Robertt/slpsort/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件在调用 Execute 的 goroutine 上按顺序发出。
type Observer interface {
	// OnStart 在运行开始、扫描之前调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在单个回放处理完成时调用（用于每条结果的一行输出）。
	OnItemDone(idx, total int, file domain.ReplayFile, res domain.ItemResult, dur time.Duration)
	// OnFinish 在 report Finalize 之后调用。
	OnFinish(rr domain.RunReport)
}

type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig) {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration) {}
func (nopObserver) OnItemDone(int, int, domain.ReplayFile, domain.ItemResult, time.Duration) {}
func (nopObserver) OnFinish(domain.RunReport) {}
