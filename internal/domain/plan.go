package domain

// MovePlan 规划一次文件移动（只描述 src/dst；真正执行由 run 层完成）。
type MovePlan struct {
	SrcAbs string
	DstAbs string
}
