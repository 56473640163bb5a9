package server

import "errors"

var (
	// ErrPoolExhausted 玩家 ID 池已空（第 5 个客户端尝试加入）
	ErrPoolExhausted = errors.New("player id pool exhausted")
	// ErrUnknownOwner tileTaken 指向的玩家没有格子集合
	ErrUnknownOwner = errors.New("unknown tile owner")
	// ErrMalformedPayload 消息缺少必填字段或字段类型不对
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnknownMessage 未注册的消息类型
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrRoomClosed 房间已销毁，调用方应重新获取房间
	ErrRoomClosed = errors.New("room closed")
	// ErrNotMember 会话中找不到该连接
	ErrNotMember = errors.New("not a session member")

	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
)
