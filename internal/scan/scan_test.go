package scan

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var sentinels = []string{"@cpu_games", "@handwarmers"}

func TestScanReplays_ExcludeSentinelFolders(t *testing.T) {
	root := t.TempDir()

	// 输出目录（任意深度）永久排除。
	touch(t, filepath.Join(root, "@cpu_games", "Game_1.slp"))
	touch(t, filepath.Join(root, "@handwarmers", "Game_2.slp"))
	touch(t, filepath.Join(root, "2024", "@handwarmers", "Game_3.slp"))

	// 正常文件。
	touch(t, filepath.Join(root, "2024", "Game_4.slp"))
	touch(t, filepath.Join(root, "Game_5.slp"))
	touch(t, filepath.Join(root, "2024", "notes.txt"))

	got, err := ScanReplays(root, Options{ExcludeNames: sentinels})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []string{filepath.Join("2024", "Game_4.slp"), "Game_5.slp"}
	if len(got) != len(want) {
		t.Fatalf("期望 %d 个回放，实际 %d：%+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i].RelPath != want[i] {
			t.Fatalf("第 %d 个期望 rel=%q，实际=%q", i, want[i], got[i].RelPath)
		}
		for _, part := range strings.Split(filepath.ToSlash(got[i].RelPath), "/") {
			for _, s := range sentinels {
				if part == s {
					t.Fatalf("输出不应包含输出目录分量：%q", got[i].RelPath)
				}
			}
		}
	}
}

func TestScanReplays_ExcludeIsExactComponentNotSubstring(t *testing.T) {
	root := t.TempDir()

	// 只是包含输出目录名作为子串：必须保留。
	touch(t, filepath.Join(root, "old@cpu_games", "A.slp"))
	touch(t, filepath.Join(root, "@handwarmers_2023", "B.slp"))
	touch(t, filepath.Join(root, "x", "@cpu_games.slp"))

	got, err := ScanReplays(root, Options{ExcludeNames: sentinels})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 3 {
		t.Fatalf("期望 3 个回放，实际 %d：%+v", len(got), got)
	}
}

func TestScanReplays_ExtCaseInsensitiveAndDefault(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "A.SLP"))
	touch(t, filepath.Join(root, "B.slp"))
	touch(t, filepath.Join(root, "C.slpx"))
	touch(t, filepath.Join(root, "noext"))

	got, err := ScanReplays(root, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 个回放，实际 %d：%+v", len(got), got)
	}
	if got[0].Base != "A.SLP" || got[1].Base != "B.slp" {
		t.Fatalf("结果不符合预期：%+v", got)
	}
	if !filepath.IsAbs(got[0].AbsPath) {
		t.Fatalf("AbsPath 必须是绝对路径：%q", got[0].AbsPath)
	}
}

func TestScanReplays_FollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	touch(t, filepath.Join(outside, "linked", "Game_L.slp"))
	touch(t, filepath.Join(outside, "single.slp"))

	symlink(t, filepath.Join(outside, "linked"), filepath.Join(root, "dirlink"))
	symlink(t, filepath.Join(outside, "single.slp"), filepath.Join(root, "filelink.slp"))
	// 指回 root 的环：必须终止。
	symlink(t, root, filepath.Join(root, "loop"))

	got, err := ScanReplays(root, Options{ExcludeNames: sentinels})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	var rels []string
	for _, f := range got {
		rels = append(rels, f.RelPath)
	}
	want := []string{filepath.Join("dirlink", "Game_L.slp"), "filelink.slp"}
	if len(rels) != len(want) || rels[0] != want[0] || rels[1] != want[1] {
		t.Fatalf("期望 %v，实际 %v", want, rels)
	}
}

func TestScanReplays_SkipsLinkAliasingOutputFolder(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "@handwarmers", "a.slp"))
	touch(t, filepath.Join(root, "b.slp"))
	symlink(t, filepath.Join(root, "@handwarmers"), filepath.Join(root, "warm"))

	got, err := ScanReplays(root, Options{ExcludeNames: sentinels})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 || got[0].RelPath != "b.slp" {
		t.Fatalf("指向输出目录的链接应被剪枝：%+v", got)
	}
}

func TestScanReplays_SkipsBrokenSymlink(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "ok.slp"))
	symlink(t, filepath.Join(root, "missing.slp"), filepath.Join(root, "dangling.slp"))

	got, err := ScanReplays(root, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 || got[0].Base != "ok.slp" {
		t.Fatalf("坏链接应被静默跳过：%+v", got)
	}
}

func TestScanReplays_RootInvalid(t *testing.T) {
	root := t.TempDir()

	_, err := ScanReplays(filepath.Join(root, "nope"), Options{})
	if !errors.Is(err, ErrRootInvalid) {
		t.Fatalf("期望 ErrRootInvalid，实际：%v", err)
	}

	f := filepath.Join(root, "file.slp")
	touch(t, f)
	_, err = ScanReplays(f, Options{})
	if !errors.Is(err, ErrRootInvalid) {
		t.Fatalf("root 是文件时期望 ErrRootInvalid，实际：%v", err)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func symlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("当前平台不支持符号链接：%v", err)
	}
}
