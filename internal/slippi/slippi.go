// Package slippi 把 Slippi 回放（.slp）解码为分类所需的最小结构 domain.Game。
//
// 只解析 UBJSON 容器中的 raw 事件流：Event Payloads / Game Start / Post-Frame Update / Game End。
// 其余事件按 Event Payloads 声明的长度跳过；metadata 不读取。
package slippi

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/John-Robertt/slpsort/internal/domain"
)

const (
	cmdEventPayloads = 0x35
	cmdGameStart     = 0x36
	cmdPostFrame     = 0x38
	cmdGameEnd       = 0x39

	// FirstFrame 是 Slippi 的首帧帧号（倒计时开始前的 123 帧）。
	FirstFrame = -123
	// maxFrames 限制单端口帧数，避免损坏文件触发超大分配（约 19 小时 @60fps）。
	maxFrames = 1 << 22

	ports = 4
)

// Game Start / Post-Frame 字段偏移（相对命令字节）。
const (
	offStartVersion   = 0x01
	offStartCharacter = 0x65
	offStartType      = 0x66
	startPlayerStride = 0x24

	offPostFrame    = 0x01
	offPostPort     = 0x05
	offPostFollower = 0x06
	offPostPercent  = 0x16
)

// rawHeader 是 `{"raw": [$U#l` 的 UBJSON 编码，紧跟 4 字节大端长度。
var rawHeader = []byte{'{', 'U', 0x03, 'r', 'a', 'w', '[', '$', 'U', '#', 'l'}

// ErrNotSlippi 表示文件头不是 Slippi 容器。
var ErrNotSlippi = errors.New("不是 Slippi 回放文件")

// Decoder 把回放字节流解码为 domain.Game。
//
// 核心流程只依赖该接口；错误对上层是不透明的（只使用 Error() 展示）。
type Decoder interface {
	Decode(r io.Reader) (domain.Game, error)
}

// Error 是解码阶段的结构化错误。
type Error struct {
	Op     string // "container" / "payloads" / "event"
	Offset int64  // 出错事件在文件中的字节偏移
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("slippi %s 解码失败（offset=%d）：%v", e.Op, e.Offset, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Parser 是 Decoder 的 Slippi 实现；零值可用。
type Parser struct{}

var _ Decoder = Parser{}

func (Parser) Decode(r io.Reader) (domain.Game, error) {
	cr := &countingReader{r: bufio.NewReader(r)}

	hdr := make([]byte, len(rawHeader)+4)
	if _, err := io.ReadFull(cr, hdr); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrNotSlippi
		}
		return domain.Game{}, &Error{Op: "container", Offset: 0, Err: err}
	}
	if !bytes.Equal(hdr[:len(rawHeader)], rawHeader) {
		return domain.Game{}, &Error{Op: "container", Offset: 0, Err: ErrNotSlippi}
	}

	rawLen := int32(binary.BigEndian.Uint32(hdr[len(rawHeader):]))
	if rawLen < 0 {
		return domain.Game{}, &Error{Op: "container", Offset: int64(len(rawHeader)), Err: fmt.Errorf("raw 长度非法：%d", rawLen)}
	}

	d := &decoder{r: cr, sized: rawLen > 0}
	if d.sized {
		d.end = cr.n + int64(rawLen)
		d.r = &countingReader{r: io.LimitReader(cr, int64(rawLen)), n: cr.n}
	}
	return d.run()
}

type portFrames struct {
	vals []float32
	set  []bool
}

type decoder struct {
	r     *countingReader
	sized bool  // raw 长度已知；为 0（录制中断）时读到非事件字节即结束
	end   int64 // sized 时 raw 结束的文件偏移

	sizes [256]int
	known [256]bool

	started bool
	game    domain.Game
	active  [ports]bool
	frames  [ports]portFrames
}

func (d *decoder) run() (domain.Game, error) {
	if err := d.readPayloads(); err != nil {
		return domain.Game{}, err
	}

	buf := make([]byte, 0, 512)
	for {
		off := d.r.n
		cmd, err := d.readByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if d.sized && off < d.end {
					return domain.Game{}, &Error{Op: "event", Offset: off, Err: fmt.Errorf("raw 被截断：缺少 %d 字节", d.end-off)}
				}
				break
			}
			return domain.Game{}, &Error{Op: "event", Offset: off, Err: err}
		}
		if !d.known[cmd] {
			if !d.sized {
				break
			}
			return domain.Game{}, &Error{Op: "event", Offset: off, Err: fmt.Errorf("未声明的事件 0x%02x", cmd)}
		}

		size := d.sizes[cmd]
		if cap(buf) < size {
			buf = make([]byte, size)
		}
		buf = buf[:size]
		if _, err := io.ReadFull(d.r, buf); err != nil {
			return domain.Game{}, &Error{Op: "event", Offset: off, Err: fmt.Errorf("事件 0x%02x 被截断：%w", cmd, err)}
		}

		switch cmd {
		case cmdGameStart:
			err = d.onGameStart(buf)
		case cmdPostFrame:
			err = d.onPostFrame(buf)
		case cmdGameEnd:
			return d.finish(off)
		}
		if err != nil {
			return domain.Game{}, &Error{Op: "event", Offset: off, Err: err}
		}
	}
	return d.finish(d.r.n)
}

func (d *decoder) readPayloads() error {
	cmd, err := d.readByte()
	if err != nil {
		return &Error{Op: "payloads", Offset: d.r.n, Err: err}
	}
	if cmd != cmdEventPayloads {
		return &Error{Op: "payloads", Offset: d.r.n - 1, Err: fmt.Errorf("首个事件应为 0x35，实际 0x%02x", cmd)}
	}
	n, err := d.readByte()
	if err != nil {
		return &Error{Op: "payloads", Offset: d.r.n, Err: err}
	}
	if n < 1 || (int(n)-1)%3 != 0 {
		return &Error{Op: "payloads", Offset: d.r.n - 1, Err: fmt.Errorf("payload size 非法：%d", n)}
	}

	b := make([]byte, int(n)-1)
	if _, err := io.ReadFull(d.r, b); err != nil {
		return &Error{Op: "payloads", Offset: d.r.n, Err: err}
	}
	for i := 0; i+2 < len(b); i += 3 {
		c := b[i]
		d.sizes[c] = int(binary.BigEndian.Uint16(b[i+1 : i+3]))
		d.known[c] = true
	}
	return nil
}

func (d *decoder) onGameStart(p []byte) error {
	// payload 不含命令字节：字段偏移统一减 1。
	need := offStartType + startPlayerStride*(ports-1)
	if len(p) < need {
		return fmt.Errorf("Game Start 长度不足：%d < %d", len(p), need)
	}
	copy(d.game.Version[:], p[offStartVersion-1:offStartVersion+3])

	d.game.Players = d.game.Players[:0]
	for i := 0; i < ports; i++ {
		t := domain.PlayerType(p[offStartType-1+startPlayerStride*i])
		if t == domain.PlayerEmpty {
			continue
		}
		d.active[i] = true
		d.game.Players = append(d.game.Players, domain.Player{
			Port:      i,
			Type:      t,
			Character: p[offStartCharacter-1+startPlayerStride*i],
		})
	}
	d.started = true
	return nil
}

func (d *decoder) onPostFrame(p []byte) error {
	if !d.started {
		return errors.New("Post-Frame 出现在 Game Start 之前")
	}
	if len(p) < offPostPercent+3 {
		return fmt.Errorf("Post-Frame 长度不足：%d", len(p))
	}

	port := int(p[offPostPort-1])
	if port >= ports {
		return fmt.Errorf("非法端口：%d", port)
	}
	if p[offPostFollower-1] != 0 || !d.active[port] {
		// follower（冰山 Nana）与空槽位不参与统计。
		return nil
	}

	frame := int32(binary.BigEndian.Uint32(p[offPostFrame-1 : offPostFrame+3]))
	idx := int(frame) - FirstFrame
	if idx < 0 || idx >= maxFrames {
		return fmt.Errorf("帧号越界：%d", frame)
	}
	percent := math.Float32frombits(binary.BigEndian.Uint32(p[offPostPercent-1 : offPostPercent+3]))

	pf := &d.frames[port]
	if idx >= len(pf.vals) {
		grow := idx + 1
		pf.vals = append(pf.vals, make([]float32, grow-len(pf.vals))...)
		pf.set = append(pf.set, make([]bool, grow-len(pf.set))...)
	}
	// rollback：同一帧再次出现时以最后一次为准。
	pf.vals[idx] = percent
	pf.set[idx] = true
	return nil
}

func (d *decoder) finish(off int64) (domain.Game, error) {
	if !d.started {
		return domain.Game{}, &Error{Op: "event", Offset: off, Err: errors.New("缺少 Game Start")}
	}

	d.game.Ports = make([]domain.PortFrames, 0, len(d.game.Players))
	for _, pl := range d.game.Players {
		pf := d.frames[pl.Port]
		vals := make([]float32, 0, len(pf.vals))
		for i, ok := range pf.set {
			if ok {
				vals = append(vals, pf.vals[i])
			}
		}
		d.game.Ports = append(d.game.Ports, domain.PortFrames{Port: pl.Port, Percent: vals})
	}
	return d.game, nil
}

func (d *decoder) readByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// countingReader 记录已读字节数，用于错误中的 offset。
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
