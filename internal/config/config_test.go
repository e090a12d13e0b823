package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/slpsort/internal/app/planner"
)

func TestLoadEffective_DefaultsWithoutConfigFile(t *testing.T) {
	root := t.TempDir()

	eff, err := LoadEffective(root, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Path != root || eff.ConfigPath != "" {
		t.Fatalf("路径不符合预期：%+v", eff)
	}
	if eff.Rules != planner.DefaultRules() {
		t.Fatalf("默认规则不符合预期：%+v", eff.Rules)
	}
	if eff.Ext != ".slp" || eff.Collision != planner.CollisionReject {
		t.Fatalf("默认 ext/collision 不符合预期：%q %q", eff.Ext, eff.Collision)
	}
	if eff.DryRun || eff.Pause || eff.LogFile != "" || eff.LogLevel != slog.LevelWarn {
		t.Fatalf("默认开关不符合预期：%+v", eff)
	}
}

func TestLoadEffective_PathRelativeToCwd(t *testing.T) {
	cwd := t.TempDir()
	mkdir(t, filepath.Join(cwd, "replays"))

	eff, err := LoadEffective(cwd, CLIArgs{Path: "replays"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Path != filepath.Join(cwd, "replays") {
		t.Fatalf("期望 %q，实际 %q", filepath.Join(cwd, "replays"), eff.Path)
	}
}

func TestLoadEffective_AutoDiscoverAndOverride(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), `
cpu_folder = "_cpu"
handwarmers_folder = "_warm"
min_damage = 250.5
extension = "SLP"
collision = "rename"
dry_run = true
pause = true
log_file = "logs/slpsort.log"
log_level = "debug"
`)

	eff, err := LoadEffective(root, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != filepath.Join(root, FileName) {
		t.Fatalf("ConfigPath 不符合预期：%q", eff.ConfigPath)
	}
	want := planner.Rules{CPUFolder: "_cpu", HandwarmersFolder: "_warm", MinDamage: 250.5}
	if eff.Rules != want {
		t.Fatalf("规则不符合预期：%+v", eff.Rules)
	}
	if eff.Ext != ".SLP" || eff.Collision != planner.CollisionRename {
		t.Fatalf("ext/collision 不符合预期：%q %q", eff.Ext, eff.Collision)
	}
	if !eff.DryRun || !eff.Pause || eff.LogLevel != slog.LevelDebug {
		t.Fatalf("开关不符合预期：%+v", eff)
	}
	if eff.LogFile != filepath.Join(root, "logs", "slpsort.log") {
		t.Fatalf("配置文件里的 log_file 应相对扫描目录：%q", eff.LogFile)
	}

	// CLI 显式给出的 false 必须能覆盖配置文件里的 true。
	eff, err = LoadEffective(root, CLIArgs{DryRunSet: true, PauseSet: true, LogLevel: "error"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.DryRun || eff.Pause || eff.LogLevel != slog.LevelError {
		t.Fatalf("CLI 覆盖失败：%+v", eff)
	}
}

func TestLoadEffective_ExplicitConfigMissing(t *testing.T) {
	root := t.TempDir()

	_, err := LoadEffective(root, CLIArgs{ConfigPath: "nope.toml"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %s，实际：%v", ErrCodeNotFound, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("应可 errors.Is(os.ErrNotExist)：%v", err)
	}
}

func TestLoadEffective_RootInvalid(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "file.slp"), "x")

	for _, p := range []string{"missing", "file.slp"} {
		_, err := LoadEffective(cwd, CLIArgs{Path: p})
		if Code(err) != ErrCodeRootInvalid {
			t.Fatalf("path=%q 期望 %s，实际：%v", p, ErrCodeRootInvalid, err)
		}
	}
}

func TestLoadEffective_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		toml string
	}{
		{"bad_toml", "cpu_folder = "},
		{"nested_folder", `cpu_folder = "a/b"`},
		{"dotdot_folder", `handwarmers_folder = ".."`},
		{"same_folders", `cpu_folder = "x"` + "\n" + `handwarmers_folder = "x"`},
		{"negative_damage", "min_damage = -1.0"},
		{"bad_collision", `collision = "overwrite"`},
		{"bad_ext", `extension = "."`},
		{"bad_level", `log_level = "loud"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, filepath.Join(root, FileName), tc.toml)

			_, err := LoadEffective(root, CLIArgs{})
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %s，实际：%v", ErrCodeInvalid, err)
			}
		})
	}
}

func TestEffectiveConfig_ScanOptionsExcludesOutputFolders(t *testing.T) {
	eff := EffectiveConfig{Rules: planner.DefaultRules(), Ext: ".slp"}
	opt := eff.ScanOptions(nil)
	if opt.Ext != ".slp" || len(opt.ExcludeNames) != 2 ||
		opt.ExcludeNames[0] != planner.DefaultCPUFolder || opt.ExcludeNames[1] != planner.DefaultHandwarmersFolder {
		t.Fatalf("扫描选项不符合预期：%+v", opt)
	}
}

func mkdir(t *testing.T, p string) {
	t.Helper()
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	mkdir(t, filepath.Dir(p))
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
