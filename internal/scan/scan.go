package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/slpsort/internal/domain"
)

// DefaultExt 是 Slippi 回放的扩展名。
const DefaultExt = ".slp"

// ErrRootInvalid 表示扫描根目录不存在、不可访问或不是目录。
var ErrRootInvalid = errors.New("扫描根目录无效")

// Options 是扫描规则；由上层在构造时传入，测试可替换。
type Options struct {
	// Ext 形如 ".slp"，大小写不敏感；为空时使用 DefaultExt。
	Ext string
	// ExcludeNames 是需要整体排除的路径分量（精确匹配，不做子串匹配），
	// 通常就是两个输出目录名。
	ExcludeNames []string
	// Logger 只用于 debug 级别记录被跳过的条目；为空则丢弃。
	Logger *slog.Logger
}

// ScanReplays 递归扫描 root 下的回放文件。
//
// 规则（硬约束）：
// - 跟随符号链接（文件与目录均跟随）；已在当前祖先链上的目录不会再次进入，避免环
// - 相对 root 的路径中任一分量等于 ExcludeNames 之一：整体排除（目录直接剪枝）
// - 与 <root>/<ExcludeNames> 是同一目录的链接也剪枝（输出目录不能换个名字再被当作输入）
// - 无法 stat / 无法读取的条目静默跳过（best-effort 枚举，不是严格清单）
// - 输出按 RelPath 字典序稳定排序
//
// 只有 root 本身无效时才返回错误（ErrRootInvalid）。
func ScanReplays(root string, opt Options) ([]domain.ReplayFile, error) {
	abs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, fmt.Errorf("%w：%q：%v", ErrRootInvalid, root, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w：%q：%v", ErrRootInvalid, root, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w：%q 不是目录", ErrRootInvalid, root)
	}

	w := &walker{
		ext:     normalizeExt(opt.Ext),
		exclude: make(map[string]struct{}, len(opt.ExcludeNames)),
		log:     opt.Logger,
		files:   make([]domain.ReplayFile, 0, 128),
	}
	if w.log == nil {
		w.log = slog.New(slog.DiscardHandler)
	}
	for _, n := range opt.ExcludeNames {
		if n = strings.TrimSpace(n); n != "" {
			w.exclude[n] = struct{}{}
			// 记住 <root>/<n> 本身：以其他名字链接到输出目录的路径同样剪枝。
			if ofi, err := os.Stat(filepath.Join(abs, n)); err == nil && ofi.IsDir() {
				w.outputs = append(w.outputs, ofi)
			}
		}
	}

	w.walkDir(abs, "", []fs.FileInfo{fi})

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(w.files, func(i, j int) bool { return w.files[i].RelPath < w.files[j].RelPath })
	return w.files, nil
}

type walker struct {
	ext     string
	exclude map[string]struct{}
	outputs []fs.FileInfo
	log     *slog.Logger
	files   []domain.ReplayFile
}

func (w *walker) walkDir(dir, rel string, chain []fs.FileInfo) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.log.Debug("跳过不可读目录", "path", dir, "error", err)
		return
	}

	for _, e := range entries {
		name := e.Name()
		if _, ok := w.exclude[name]; ok {
			continue
		}

		path := filepath.Join(dir, name)
		relPath := filepath.Join(rel, name)

		// os.Stat 跟随符号链接：链接本身的类型不重要，重要的是它指向什么。
		fi, err := os.Stat(path)
		if err != nil {
			w.log.Debug("跳过无法 stat 的条目", "path", path, "error", err)
			continue
		}

		switch {
		case fi.IsDir():
			if onChain(fi, chain) {
				w.log.Debug("跳过符号链接环", "path", path)
				continue
			}
			if onChain(fi, w.outputs) {
				w.log.Debug("跳过指向输出目录的链接", "path", path)
				continue
			}
			// 三下标切片：禁止兄弟目录共享 append 后的底层数组。
			w.walkDir(path, relPath, append(chain[:len(chain):len(chain)], fi))
		case fi.Mode().IsRegular():
			if !strings.EqualFold(filepath.Ext(name), w.ext) {
				continue
			}
			w.files = append(w.files, domain.ReplayFile{
				AbsPath: path,
				RelPath: relPath,
				Base:    name,
				Size:    fi.Size(),
				ModUnix: fi.ModTime().Unix(),
			})
		}
	}
}

func onChain(fi fs.FileInfo, chain []fs.FileInfo) bool {
	for _, a := range chain {
		if os.SameFile(fi, a) {
			return true
		}
	}
	return false
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
