package domain

// Features 是单个回放派生出的特征值，只在处理该文件时存在，不落盘。
type Features struct {
	HasCPU      bool
	TotalDamage float32
}

const (
	CategoryNone       = "none"
	CategoryCPU        = "cpu"
	CategoryHandwarmer = "handwarmer"
)

// Decision 是分类结果：Category==CategoryNone 表示原地保留（Folder 为空）。
type Decision struct {
	Category string
	Folder   string
}

// Move 报告该决策是否需要移动文件。
func (d Decision) Move() bool {
	return d.Category != CategoryNone && d.Folder != ""
}
