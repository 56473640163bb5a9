package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Input 客户端发来的一条消息，由房间线程交给 Session 分发
type Input struct {
	Key     SessionKey
	Kind    string
	Payload json.RawMessage
}

// InputMessage 入站消息外壳（WebSocket 文本消息）
// 示例：{"type":"tileTaken","message":{"id":"1","xx":3,"yy":5}}
type InputMessage struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// lightMessage 红绿灯切换
type lightMessage struct {
	ID   *float64 `json:"id"`
	Prev *float64 `json:"prev"`
}

// tileTakenMessage 占领格子
type tileTakenMessage struct {
	ID PlayerRef `json:"id"`
	XX *float64  `json:"xx"`
	YY *float64  `json:"yy"`
}

// PositionMessage position / car_position 共用的入站结构
type PositionMessage struct {
	ID           json.RawMessage `json:"id,omitempty"`
	CarID        json.RawMessage `json:"carID,omitempty"`
	X            *float64        `json:"x"`
	Z            *float64        `json:"z"`
	RotationY    *float64        `json:"rotationY"`
	RightBlinker *bool           `json:"rightBlinker,omitempty"`
	LeftBlinker  *bool           `json:"leftBlinker,omitempty"`
	IsHorizontal *bool           `json:"isHorizontal,omitempty"`
	HasPriority  *bool           `json:"hasPriority,omitempty"`
	Turning      *string         `json:"turning,omitempty"`
	Speed        *float64        `json:"speed,omitempty"`
	Entrance     *float64        `json:"entrance,omitempty"`
	Name         *string         `json:"name,omitempty"`
}

// refMessage intersection / death / player_leave：只有一个 id
type refMessage struct {
	ID PlayerRef `json:"id"`
}

// spawnMessage 登记出生点
type spawnMessage struct {
	ID    PlayerRef `json:"id"`
	Spawn *float64  `json:"spawn"`
}

// spawningMessage 查询可用出生点
type spawningMessage struct {
	PlayerID json.RawMessage `json:"playerID"`
}

// decodePayload 解析消息体，失败统一包装为 ErrMalformedPayload
func decodePayload(raw json.RawMessage, v any) error {
	if !present(raw) {
		return fmt.Errorf("%w: empty message", ErrMalformedPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// missing 构造缺字段错误
func missing(field string) error {
	return fmt.Errorf("%w: missing %s", ErrMalformedPayload, field)
}

// present 原始 JSON 是否有值（非空且非 null）
func present(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && !bytes.Equal(t, []byte("null"))
}

// maxIntegral float64 能精确表示的最大整数
const maxIntegral = 1 << 53

// integral 浮点数是否为可精确表示的整数，并返回对应 int
func integral(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > maxIntegral {
		return 0, false
	}
	return int(f), true
}

// requireFloat 检查必填数字字段
func requireFloat(name string, v *float64) error {
	if v == nil {
		return missing(name)
	}
	return nil
}
