package domain

// ReplayFile 描述一次扫描得到的回放文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - RelPath 相对扫描根目录，用于稳定排序与 report 输出
type ReplayFile struct {
	AbsPath string
	RelPath string
	Base    string // 文件名（含扩展名）
	Size    int64
	ModUnix int64
}
