package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/slpsort/internal/app/planner"
	"github.com/John-Robertt/slpsort/internal/config"
	"github.com/John-Robertt/slpsort/internal/domain"
	"github.com/John-Robertt/slpsort/internal/feature"
	"github.com/John-Robertt/slpsort/internal/infra/fsx"
	"github.com/John-Robertt/slpsort/internal/scan"
	"github.com/John-Robertt/slpsort/internal/slippi"
)

// Options 是一次运行的可替换依赖；零值可用。
type Options struct {
	Decoder  slippi.Decoder // 为空时使用 slippi.Parser
	Observer Observer
	Logger   *slog.Logger // 为空时丢弃
}

// Execute 执行一次分拣（dry-run/apply），并返回对外稳定的 RunReport。
// 单个文件的失败只降级为该文件的 failed 条目，不影响其他文件。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithOptions(ctx, eff, Options{})
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/结果行（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	return ExecuteWithOptions(ctx, eff, Options{Observer: obs})
}

// ExecuteWithOptions 是完整入口。
//
// 处理严格串行：扫描完成后逐个文件 打开 -> 解码 -> 提取特征 -> 分类 -> 移动。
// ctx 只在文件之间检查；取消后剩余文件不再处理，以一条 canceled 合成条目记录。
func ExecuteWithOptions(ctx context.Context, eff config.EffectiveConfig, opt Options) domain.RunReport {
	started := time.Now().UTC()

	dec := opt.Decoder
	if dec == nil {
		dec = slippi.Parser{}
	}
	obs := opt.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	obs.OnStart(eff)

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Path:      eff.Path,
		DryRun:    eff.DryRun,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 128),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		obs.OnFinish(rr)
		return rr
	}

	scanStarted := time.Now()
	files, err := scan.ScanReplays(eff.Path, eff.ScanOptions(logger))
	if err != nil {
		code := domain.ErrCodeScanFailed
		if errors.Is(err, scan.ErrRootInvalid) {
			code = domain.ErrCodeRootInvalid
		}
		rr.Items = append(rr.Items, syntheticFailed(code, fmt.Sprintf("扫描失败：%v", err)))
		return finish()
	}
	obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, time.Since(scanStarted))
	logger.Info("扫描完成", "path", eff.Path, "files", len(files))

	m := &mover{
		eff:    eff,
		dec:    dec,
		log:    logger,
		states: make(map[string]*domain.OutState, 2),
	}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeCanceled,
				fmt.Sprintf("已取消：剩余 %d 个文件未处理：%v", len(files)-i, err)))
			break
		}

		oneStarted := time.Now()
		res := m.processOne(f)
		rr.Items = append(rr.Items, res)
		obs.OnItemDone(i+1, len(files), f, res, time.Since(oneStarted))
	}

	return finish()
}

type mover struct {
	eff config.EffectiveConfig
	dec slippi.Decoder
	log *slog.Logger

	// states 按输出目录名缓存 OutState；每次成功移动后登记新文件名，
	// 使 rename 策略在同一次运行内也不会分配到重复名字。
	states map[string]*domain.OutState
}

func (m *mover) processOne(f domain.ReplayFile) domain.ItemResult {
	item := domain.ItemResult{
		Src:      filepath.ToSlash(f.RelPath),
		Category: domain.CategoryNone,
	}

	g, err := m.decode(f.AbsPath)
	if err != nil {
		var se *slippi.Error
		code := domain.ErrCodeOpenFailed
		if errors.As(err, &se) {
			code = domain.ErrCodeDecodeFailed
		}
		m.log.Debug("解码失败", "path", f.AbsPath, "error", err)
		return failed(item, code, err.Error())
	}

	feat := feature.Extract(g)
	d := planner.Classify(feat, m.eff.Rules)
	item.Category = d.Category
	item.HasCPU = feat.HasCPU
	item.TotalDamage = feat.TotalDamage

	if !d.Move() {
		item.Status = domain.StatusKept
		return item
	}

	st, err := m.outState(d.Folder)
	if err != nil {
		return failed(item, domain.ErrCodeMoveFailed, fmt.Sprintf("读取输出目录失败：%v", err))
	}
	plan, err := planner.PlanMove(f.AbsPath, *st, m.eff.Collision)
	if err != nil {
		return failed(item, domain.ErrCodeMoveFailed, err.Error())
	}
	item.Dst = m.rel(plan.DstAbs)

	if m.eff.DryRun {
		item.Status = domain.StatusPlanned
		return item
	}

	// 建目录失败不单独报告：随后的 rename 会以真实原因失败。
	if err := fsx.EnsureDir(st.OutDir); err != nil {
		m.log.Debug("创建输出目录失败", "dir", st.OutDir, "error", err)
	}
	if err := fsx.RenameNoReplace(plan.SrcAbs, plan.DstAbs); err != nil {
		code := domain.ErrCodeMoveFailed
		switch {
		case fsx.IsTargetExists(err):
			code = domain.ErrCodeTargetConflict
		case fsx.IsCrossDevice(err):
			code = domain.ErrCodeCrossDevice
		}
		m.log.Debug("移动失败", "src", plan.SrcAbs, "dst", plan.DstAbs, "error", err)
		return failed(item, code, err.Error())
	}

	st.ExistingNames[filepath.Base(plan.DstAbs)] = struct{}{}
	m.log.Info("已移动", "src", plan.SrcAbs, "dst", plan.DstAbs, "category", d.Category)
	item.Status = domain.StatusMoved
	return item
}

func (m *mover) decode(path string) (domain.Game, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Game{}, err
	}
	defer f.Close()
	return m.dec.Decode(f)
}

func (m *mover) outState(folder string) (*domain.OutState, error) {
	if st, ok := m.states[folder]; ok {
		return st, nil
	}
	st, err := planner.ReadOutState(m.eff.Path, folder)
	if err != nil {
		return nil, err
	}
	m.states[folder] = &st
	return &st, nil
}

// rel 把绝对路径转成相对扫描根目录的 / 分隔路径；失败时原样返回。
func (m *mover) rel(abs string) string {
	r, err := filepath.Rel(m.eff.Path, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(r)
}

func failed(item domain.ItemResult, code, msg string) domain.ItemResult {
	item.Status = domain.StatusFailed
	item.ErrorCode = code
	item.ErrorMsg = msg
	return item
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}
