package domain

// PlayerType 与 Slippi Game Start 中的 player type 字节一一对应。
type PlayerType uint8

const (
	PlayerHuman PlayerType = 0
	PlayerCPU   PlayerType = 1
	PlayerDemo  PlayerType = 2
	PlayerEmpty PlayerType = 3
)

func (t PlayerType) String() string {
	switch t {
	case PlayerHuman:
		return "human"
	case PlayerCPU:
		return "cpu"
	case PlayerDemo:
		return "demo"
	case PlayerEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Player 是一个非空槽位的参赛者元数据。
type Player struct {
	Port      int // 0..3
	Type      PlayerType
	Character uint8 // external character id
}

// PortFrames 是某个端口 leader 的逐帧伤害（percent），已按帧号排序且去重（rollback 取最后一次）。
type PortFrames struct {
	Port    int
	Percent []float32
}

// Game 是解码后的回放：只保留分类需要的最小字段集。
type Game struct {
	Version [4]uint8
	Players []Player
	Ports   []PortFrames
}
