package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Capacity 单个会话的玩家上限（同时也是玩家 ID 池的大小）
const Capacity = 4

// SessionKey 传输层为每个连接分配的不透明标识
type SessionKey string

// PlayerID 会话内分配的小整数编号，范围 1..Capacity，离开后回收
type PlayerID int

// String 线上格式：十进制字符串，例如 "1"
func (id PlayerID) String() string { return strconv.Itoa(int(id)) }

// Valid 是否落在 1..Capacity 范围内
func (id PlayerID) Valid() bool { return id >= 1 && id <= Capacity }

// ParsePlayerID 解析字符串形式的玩家编号；只接受规范的十进制写法（"1"，不是 "01" 或 " 1"）
func ParsePlayerID(s string) (PlayerID, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	id := PlayerID(n)
	if id.String() != s {
		return 0, false
	}
	return id, true
}

// Tile 网格格子坐标
type Tile struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Key 格子的字符串键 "x,y"
func (t Tile) Key() string { return fmt.Sprintf("%d,%d", t.X, t.Y) }

// ParseTileKey 解析 "x,y" 形式的格子键
func ParseTileKey(key string) (Tile, bool) {
	xs, ys, ok := strings.Cut(key, ",")
	if !ok {
		return Tile{}, false
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return Tile{}, false
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return Tile{}, false
	}
	return Tile{X: x, Y: y}, true
}

// Player 同步给所有客户端的玩家状态（只有位置与朝向）
type Player struct {
	X         float64 `json:"x"`
	Z         float64 `json:"z"`
	RotationY float64 `json:"rotationY"`
}

// PlayerRef 客户端发来的玩家引用：有时是字符串 "1"，有时是数字 1。
// 原样保留以便回显，同时可解析为 PlayerID。
type PlayerRef struct {
	raw json.RawMessage
}

func (r *PlayerRef) UnmarshalJSON(b []byte) error {
	r.raw = append(r.raw[:0], b...)
	return nil
}

func (r PlayerRef) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte("null"), nil
	}
	return r.raw, nil
}

// Present 字段是否出现且不为 null
func (r PlayerRef) Present() bool {
	return len(r.raw) > 0 && string(r.raw) != "null"
}

// PlayerID 解析为玩家编号；非整数或无法识别时返回 false
func (r PlayerRef) PlayerID() (PlayerID, bool) {
	if !r.Present() {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(r.raw, &s); err == nil {
		return ParsePlayerID(s)
	}
	var f float64
	if err := json.Unmarshal(r.raw, &f); err == nil {
		n, ok := integral(f)
		if !ok {
			return 0, false
		}
		return PlayerID(n), true
	}
	return 0, false
}

// RefFor 构造一个字符串形式的引用（测试与管理接口使用）
func RefFor(id PlayerID) PlayerRef {
	b, _ := json.Marshal(id.String())
	return PlayerRef{raw: b}
}
