package domain

// OutState 描述某个输出目录（例如 <root>/@handwarmers）的现状（只做 ReadDir，不读内容）。
type OutState struct {
	OutDir string

	// ExistingNames 是目录内现有文件名集合，用于 O(1) 冲突判定。
	ExistingNames map[string]struct{}
}
