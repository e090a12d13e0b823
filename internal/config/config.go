package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/slpsort/internal/app/planner"
	"github.com/John-Robertt/slpsort/internal/infra/logx"
	"github.com/John-Robertt/slpsort/internal/scan"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeRootInvalid 表示扫描根目录不存在或不是目录。
	ErrCodeRootInvalid = "root_invalid"
)

// FileName 是扫描根目录下自动发现的配置文件名。
const FileName = "slpsort.toml"

// CLIArgs 是 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --dry-run=false 必须能覆盖 dry_run = true。
type CLIArgs struct {
	Path       string
	ConfigPath string

	DryRun    bool
	DryRunSet bool

	Pause    bool
	PauseSet bool

	LogFile  string
	LogLevel string
}

// FileConfig 对应 slpsort.toml 的解析结构；指针字段用于区分“未设置”与零值。
type FileConfig struct {
	CPUFolder         string   `toml:"cpu_folder"`
	HandwarmersFolder string   `toml:"handwarmers_folder"`
	MinDamage         *float32 `toml:"min_damage"`
	Extension         string   `toml:"extension"`
	Collision         string   `toml:"collision"`
	DryRun            *bool    `toml:"dry_run"`
	Pause             *bool    `toml:"pause"`
	LogFile           string   `toml:"log_file"`
	LogLevel          string   `toml:"log_level"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path       string // 扫描根目录（clean + absolute），输出目录也建在这里
	ConfigPath string // 实际读取的配置文件；未读取时为空

	Rules     planner.Rules
	Ext       string
	Collision string

	DryRun bool
	Pause  bool

	LogFile  string
	LogLevel slog.Level
}

// ScanOptions 把配置转换为扫描规则：输出目录永远不作为输入。
func (e EffectiveConfig) ScanOptions(logger *slog.Logger) scan.Options {
	return scan.Options{
		Ext:          e.Ext,
		ExcludeNames: e.Rules.Folders(),
		Logger:       logger,
	}
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeRootInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：扫描目录 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：扫描目录 %q 无效", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 定位并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) 扫描目录：CLI path > cwd
// 2) --config 给出时必须存在；否则尝试 <扫描目录>/slpsort.toml（可选）
//
// 覆盖优先级（固定）：CLI（显式指定）> 配置文件 > 内置默认。
// 扫描目录不存在或不是目录视为致命错误（root_invalid），而不是静默得到空结果。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	root := cwdAbs
	if strings.TrimSpace(cli.Path) != "" {
		root = absCleanFrom(cwdAbs, cli.Path)
	}
	fi, err := os.Stat(root)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeRootInvalid, Path: root, Err: err}
	}
	if !fi.IsDir() {
		return EffectiveConfig{}, &Error{Code: ErrCodeRootInvalid, Path: root, Err: errors.New("不是目录")}
	}

	var (
		cfgPath string
		fc      FileConfig
		exists  bool
	)
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(root, FileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}
	if !exists {
		cfgPath = ""
	}

	eff, err := merge(root, cwdAbs, cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigPath = cfgPath
	return eff, nil
}

func merge(root, cwdAbs string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	rules := planner.DefaultRules()
	if v := strings.TrimSpace(fc.CPUFolder); v != "" {
		rules.CPUFolder = v
	}
	if v := strings.TrimSpace(fc.HandwarmersFolder); v != "" {
		rules.HandwarmersFolder = v
	}
	if fc.MinDamage != nil {
		rules.MinDamage = *fc.MinDamage
	}
	if err := validateRules(rules); err != nil {
		return EffectiveConfig{}, err
	}

	ext := strings.TrimSpace(fc.Extension)
	if ext == "" {
		ext = scan.DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if ext == "." || strings.ContainsAny(ext, `/\`) {
		return EffectiveConfig{}, fmt.Errorf("extension 无效：%q", fc.Extension)
	}

	collision := strings.ToLower(strings.TrimSpace(fc.Collision))
	switch collision {
	case "":
		collision = planner.CollisionReject
	case planner.CollisionReject, planner.CollisionRename:
	default:
		return EffectiveConfig{}, fmt.Errorf("collision 只能是 reject 或 rename，实际是 %q", fc.Collision)
	}

	// dry_run / pause：CLI > config > 默认 false
	dryRun := false
	if cli.DryRunSet {
		dryRun = cli.DryRun
	} else if fc.DryRun != nil {
		dryRun = *fc.DryRun
	}
	pause := false
	if cli.PauseSet {
		pause = cli.Pause
	} else if fc.Pause != nil {
		pause = *fc.Pause
	}

	logFile := strings.TrimSpace(fc.LogFile)
	if v := strings.TrimSpace(cli.LogFile); v != "" {
		logFile = absCleanFrom(cwdAbs, v)
	} else if logFile != "" {
		// 配置文件里的相对路径相对扫描目录。
		logFile = absCleanFrom(root, logFile)
	}

	levelStr := fc.LogLevel
	if strings.TrimSpace(cli.LogLevel) != "" {
		levelStr = cli.LogLevel
	}
	level, err := logx.ParseLevel(levelStr)
	if err != nil {
		return EffectiveConfig{}, err
	}

	return EffectiveConfig{
		Path:      root,
		Rules:     rules,
		Ext:       ext,
		Collision: collision,
		DryRun:    dryRun,
		Pause:     pause,
		LogFile:   logFile,
		LogLevel:  level,
	}, nil
}

func validateRules(r planner.Rules) error {
	for _, f := range []struct{ key, v string }{
		{"cpu_folder", r.CPUFolder},
		{"handwarmers_folder", r.HandwarmersFolder},
	} {
		if f.v == "." || f.v == ".." || strings.ContainsAny(f.v, `/\`) {
			return fmt.Errorf("%s 必须是单个目录名，实际是 %q", f.key, f.v)
		}
	}
	if r.CPUFolder == r.HandwarmersFolder {
		return fmt.Errorf("cpu_folder 与 handwarmers_folder 不能相同：%q", r.CPUFolder)
	}
	if r.MinDamage < 0 {
		return fmt.Errorf("min_damage 不能为负数：%v", r.MinDamage)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(&fc); err != nil {
		return FileConfig{}, true, fmt.Errorf("解析 TOML 失败：%w", err)
	}
	return fc, true, nil
}
