package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/slpsort/internal/domain"
)

const (
	// 输出目录以 '@' 开头：在目录列表中排在最前，也便于扫描时整体排除。
	DefaultCPUFolder         = "@cpu_games"
	DefaultHandwarmersFolder = "@handwarmers"
	// DefaultMinDamage 以下的对局视为热身局（handwarmer）。
	DefaultMinDamage float32 = 100.0
)

const (
	// CollisionReject：目标已存在时不移动，报告 target_conflict。
	CollisionReject = "reject"
	// CollisionRename：目标已存在时改名为 <stem>__N<ext>（N 从 2 开始）。
	CollisionRename = "rename"
)

// Rules 是分类规则；在构造时传入，测试可替换。
type Rules struct {
	CPUFolder         string
	HandwarmersFolder string
	MinDamage         float32
}

func DefaultRules() Rules {
	return Rules{
		CPUFolder:         DefaultCPUFolder,
		HandwarmersFolder: DefaultHandwarmersFolder,
		MinDamage:         DefaultMinDamage,
	}
}

// Folders 返回需要在扫描时排除的输出目录名。
func (r Rules) Folders() []string {
	return []string{r.CPUFolder, r.HandwarmersFolder}
}

// Classify 按顺序应用规则（先命中先生效）：
// 1) 存在 CPU => CPU 目录
// 2) 总伤害严格小于 MinDamage => handwarmers 目录
// 3) 其他 => 原地保留
func Classify(f domain.Features, r Rules) domain.Decision {
	switch {
	case f.HasCPU:
		return domain.Decision{Category: domain.CategoryCPU, Folder: r.CPUFolder}
	case f.TotalDamage < r.MinDamage:
		return domain.Decision{Category: domain.CategoryHandwarmer, Folder: r.HandwarmersFolder}
	default:
		return domain.Decision{Category: domain.CategoryNone}
	}
}

// ReadOutState 读取 <root>/<folder>/ 的现状（只做 ReadDir，不读文件内容）。
// 若目录不存在，返回空状态且不报错。
func ReadOutState(root, folder string) (domain.OutState, error) {
	outDir := filepath.Join(root, folder)
	st := domain.OutState{
		OutDir:        outDir,
		ExistingNames: map[string]struct{}{},
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return domain.OutState{}, err
	}
	for _, e := range entries {
		st.ExistingNames[e.Name()] = struct{}{}
	}
	return st, nil
}

// PlanMove 生成把 src 移入输出目录的计划：保留文件名，丢弃原目录层级。
//
// collision=reject 时计划总是 <OutDir>/<base>，冲突由执行阶段的 RenameNoReplace 判定；
// collision=rename 时按 st 中已有文件名分配第一个空闲的 <stem>__N<ext>。
func PlanMove(src string, st domain.OutState, collision string) (domain.MovePlan, error) {
	name := filepath.Base(src)
	if name == "." || name == string(filepath.Separator) {
		return domain.MovePlan{}, fmt.Errorf("非法源路径：%q", src)
	}

	switch collision {
	case CollisionReject, "":
	case CollisionRename:
		name = allocName(name, st.ExistingNames)
	default:
		return domain.MovePlan{}, fmt.Errorf("未知冲突策略：%q", collision)
	}

	return domain.MovePlan{
		SrcAbs: src,
		DstAbs: filepath.Join(st.OutDir, name),
	}, nil
}

func allocName(name string, used map[string]struct{}) string {
	if _, ok := used[name]; !ok {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s__%d%s", base, n, ext)
		if _, ok := used[cand]; !ok {
			return cand
		}
	}
}
