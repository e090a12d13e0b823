// Package slippitest 生成最小可解码的合成 .slp 回放，供各包测试使用。
package slippitest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/slpsort/internal/domain"
)

// 与真实回放一致的事件长度（不含命令字节）；解码器只依赖 Event Payloads 的声明。
const (
	sizeGameStart = 0x2FF
	sizePreFrame  = 0x3F
	sizePostFrame = 0x54
	sizeGameEnd   = 0x02

	firstFrame = -123
)

type frameEvent struct {
	port     int
	frame    int32
	percent  float32
	follower bool
}

// Builder 以链式调用描述一局比赛。默认四个槽位都是 Empty。
type Builder struct {
	types   [4]domain.PlayerType
	chars   [4]uint8
	events  []frameEvent
	next    [4]int32
	noEnd   bool
	unsized bool
}

func New() *Builder {
	b := &Builder{}
	for i := range b.types {
		b.types[i] = domain.PlayerEmpty
		b.next[i] = firstFrame
	}
	return b
}

// Player 设置槽位类型。
func (b *Builder) Player(port int, t domain.PlayerType) *Builder {
	b.types[port] = t
	return b
}

// Character 设置槽位角色（external character id）。
func (b *Builder) Character(port int, c uint8) *Builder {
	b.chars[port] = c
	return b
}

// Percent 从该端口的下一帧开始，逐帧追加 percent。
func (b *Builder) Percent(port int, values ...float32) *Builder {
	for _, v := range values {
		b.events = append(b.events, frameEvent{port: port, frame: b.next[port], percent: v})
		b.next[port]++
	}
	return b
}

// Frame 追加一条显式帧号的 Post-Frame（用于模拟 rollback 重复帧）。
func (b *Builder) Frame(port int, frame int32, percent float32) *Builder {
	b.events = append(b.events, frameEvent{port: port, frame: frame, percent: percent})
	return b
}

// Follower 追加一条 follower（冰山 Nana）的 Post-Frame。
func (b *Builder) Follower(port int, frame int32, percent float32) *Builder {
	b.events = append(b.events, frameEvent{port: port, frame: frame, percent: percent, follower: true})
	return b
}

// NoGameEnd 不写 Game End 事件（模拟录制中断）。
func (b *Builder) NoGameEnd() *Builder {
	b.noEnd = true
	return b
}

// Unsized 把 raw 长度写为 0（Dolphin 崩溃时留下的文件形态）。
func (b *Builder) Unsized() *Builder {
	b.unsized = true
	return b
}

// Bytes 编码为完整的 .slp 文件内容。
func (b *Builder) Bytes() []byte {
	var raw bytes.Buffer

	raw.WriteByte(0x35)
	raw.WriteByte(1 + 3*4)
	for _, e := range []struct {
		cmd  byte
		size uint16
	}{
		{0x36, sizeGameStart},
		{0x37, sizePreFrame},
		{0x38, sizePostFrame},
		{0x39, sizeGameEnd},
	} {
		raw.WriteByte(e.cmd)
		_ = binary.Write(&raw, binary.BigEndian, e.size)
	}

	start := make([]byte, sizeGameStart)
	copy(start[0:4], []byte{3, 12, 0, 0})
	for i := 0; i < 4; i++ {
		start[0x64+0x24*i] = b.chars[i]
		start[0x65+0x24*i] = byte(b.types[i])
	}
	raw.WriteByte(0x36)
	raw.Write(start)

	for _, ev := range b.events {
		// Pre-Frame 只用于验证解码器按声明长度跳过未知内容。
		pre := make([]byte, sizePreFrame)
		binary.BigEndian.PutUint32(pre[0:4], uint32(ev.frame))
		pre[4] = byte(ev.port)
		raw.WriteByte(0x37)
		raw.Write(pre)

		post := make([]byte, sizePostFrame)
		binary.BigEndian.PutUint32(post[0:4], uint32(ev.frame))
		post[4] = byte(ev.port)
		if ev.follower {
			post[5] = 1
		}
		binary.BigEndian.PutUint32(post[0x15:0x19], math.Float32bits(ev.percent))
		raw.WriteByte(0x38)
		raw.Write(post)
	}

	if !b.noEnd {
		raw.WriteByte(0x39)
		raw.Write(make([]byte, sizeGameEnd))
	}

	var out bytes.Buffer
	out.Write([]byte{'{', 'U', 0x03, 'r', 'a', 'w', '[', '$', 'U', '#', 'l'})
	n := uint32(raw.Len())
	if b.unsized {
		n = 0
	}
	_ = binary.Write(&out, binary.BigEndian, n)
	out.Write(raw.Bytes())
	// metadata 对象留空：解码器不读取它。
	out.Write([]byte{'U', 0x08})
	out.WriteString("metadata")
	out.Write([]byte{'{', '}', '}'})
	return out.Bytes()
}

// WriteFile 把回放写到 path（自动创建父目录）。
func (b *Builder) WriteFile(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("写入回放失败：%v", err)
	}
}

// Versus 是一局两名人类对战、伤害合计为 damage 的常用场景（每人一条单调序列）。
func Versus(damage float32) *Builder {
	half := damage / 2
	return New().
		Player(0, domain.PlayerHuman).
		Player(1, domain.PlayerHuman).
		Percent(0, 0, half).
		Percent(1, 0, damage-half)
}
