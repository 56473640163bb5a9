package server

import "encoding/json"

// 入站消息类型
const (
	KindLight        = "light"
	KindTileTaken    = "tileTaken"
	KindPosition     = "position"
	KindCarPosition  = "car_position"
	KindIntersection = "intersection"
	KindDeath        = "death"
	KindPlayerLeave  = "player_leave"
	KindSpawn        = "spawn"
	KindSpawning     = "spawning"
)

// 出站消息类型（除与入站同名者外）
const (
	KindCurrentTiles   = "current_tiles"
	KindPlayerID       = "player_id"
	KindWelcome        = "welcomeMessage"
	KindJoin           = "join"
	KindLeft           = "left"
	KindPlayerPosition = "player_position"
	KindState          = "state"
	KindStatePatch     = "state_patch"
)

// WelcomeText 加入时发送给新玩家的欢迎语
const WelcomeText = "Welcome to Colyseus!"

// Envelope 出站消息外壳，与 InputMessage 同构
type Envelope struct {
	Type    string `json:"type"`
	Message any    `json:"message"`
}

// EncodeFrame 编码一帧出站消息
func EncodeFrame(kind string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{Type: kind, Message: payload})
}

// playerIDMessage player_id：告知新玩家自己的编号
type playerIDMessage struct {
	ID PlayerID `json:"id"`
}

// sessionKeyMessage join / left：携带连接的 sessionKey
type sessionKeyMessage struct {
	ID SessionKey `json:"id"`
}

// lightBroadcast light 广播，id 向下取整
type lightBroadcast struct {
	ID   float64 `json:"id"`
	Prev float64 `json:"prev"`
}

// playerPosition player_position 广播，只带客户端提供的字段
type playerPosition struct {
	ID           json.RawMessage `json:"id,omitempty"`
	X            float64         `json:"x"`
	Z            float64         `json:"z"`
	RotationY    float64         `json:"rotationY"`
	RightBlinker *bool           `json:"rightBlinker,omitempty"`
	LeftBlinker  *bool           `json:"leftBlinker,omitempty"`
	IsHorizontal *bool           `json:"isHorizontal,omitempty"`
	HasPriority  *bool           `json:"hasPriority,omitempty"`
	Turning      *string         `json:"turning,omitempty"`
	Speed        *float64        `json:"speed,omitempty"`
	Entrance     *float64        `json:"entrance,omitempty"`
	Name         *string         `json:"name,omitempty"`
}

// carPosition car_position 广播
type carPosition struct {
	CarID        json.RawMessage `json:"carID,omitempty"`
	X            float64         `json:"x"`
	Z            float64         `json:"z"`
	RotationY    float64         `json:"rotationY"`
	RightBlinker *bool           `json:"rightBlinker,omitempty"`
	LeftBlinker  *bool           `json:"leftBlinker,omitempty"`
}

// spawningBroadcast spawning 广播：id 为可用出生点
type spawningBroadcast struct {
	ID       []SpawnSlot     `json:"id"`
	PlayerID json.RawMessage `json:"playerID"`
}
