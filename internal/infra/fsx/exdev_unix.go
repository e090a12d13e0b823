//go:build unix

package fsx

import (
	"errors"
	"syscall"
)

// isEXDEV 识别跨文件系统的 rename；errors.Is 会穿过 *os.LinkError 的包装。
func isEXDEV(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
