package lockx

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked 表示另一个实例正在处理同一个根目录。
var ErrLocked = errors.New("另一个 slpsort 实例正在处理该目录")

// Lock 是按扫描根目录划分的单实例锁。
type Lock struct {
	Path string
	fl   *flock.Flock
}

// PathFor 返回 root 对应的锁文件路径。
// 锁文件放在系统临时目录，避免在回放目录里留下额外文件。
func PathFor(root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return filepath.Join(os.TempDir(), "slpsort-"+hex.EncodeToString(sum[:8])+".lock")
}

// Acquire 以非阻塞方式获取 root 的锁；已被占用时返回 ErrLocked。
func Acquire(root string) (*Lock, error) {
	path := PathFor(root)
	fl := flock.New(path)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取锁 %q 失败：%w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w（lock=%s）", ErrLocked, path)
	}
	return &Lock{Path: path, fl: fl}, nil
}

// Release 释放锁；对 nil 安全。
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
