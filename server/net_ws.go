package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// CloseRoomFull 房间已满时使用的关闭码
const CloseRoomFull = 4000

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte

	closed chan struct{}
	once   sync.Once
	onDrop func()

	writeTimeout time.Duration
	readTimeout  time.Duration
	pingInterval time.Duration
	readLimit    int64
}

func NewClientConn(ws *websocket.Conn, cfg Config) *ClientConn {
	return &ClientConn{
		ws:           ws,
		send:         make(chan []byte, cfg.Game.SendBuffer),
		closed:       make(chan struct{}),
		writeTimeout: cfg.Transport.WriteTimeout,
		readTimeout:  cfg.Transport.ReadTimeout,
		pingInterval: cfg.Transport.PingInterval,
		readLimit:    cfg.Transport.ReadLimit,
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃并计数）
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.send <- b:
	default:
		// 为了实时性，丢弃而不是阻塞房间线程
		if c.onDrop != nil {
			c.onDrop()
		}
	}
}

// Close 通知写协程发送关闭帧并断开；可重复调用
func (c *ClientConn) Close() {
	c.once.Do(func() { close(c.closed) })
}

// reject 加入失败：直接写关闭帧后断开，写协程尚未启动
func (c *ClientConn) reject(code int, reason string) {
	c.Close()
	deadline := time.Now().Add(c.writeTimeout)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.ws.Close()
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定时发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
		case <-c.closed:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
			return
		}
	}
}

// readPump 读取客户端输入，转换为 Input 注入房间
func (c *ClientConn) readPump(room *Room, key SessionKey, limiter *rate.Limiter) {
	consented := false
	defer func() {
		// 读泵退出时，通知房间在自己的线程中移除该玩家
		room.RequestLeave(key, consented)
		c.Close()
	}()
	c.ws.SetReadLimit(c.readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			consented = websocket.IsCloseError(err, websocket.CloseNormalClosure)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Log.Debugf("read error: room=%s session=%s err=%v", room.ID, key, err)
			}
			return
		}
		if limiter != nil && !limiter.Allow() {
			room.Metrics().IncRateLimited()
			continue
		}
		var im InputMessage
		if err := json.Unmarshal(payload, &im); err != nil || im.Type == "" {
			room.Metrics().IncMalformed()
			Log.Warnf("dropping frame: room=%s session=%s err=%v", room.ID, key, err)
			continue
		}
		room.OnInput(Input{Key: key, Kind: im.Type, Payload: im.Message})
	}
}

// newLimiter 每个连接一个令牌桶；速率为 0 表示不限流
func newLimiter(t RoomTuning) *rate.Limiter {
	if t.MessagesPerSecond <= 0 {
		return nil
	}
	burst := t.MessageBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(t.MessagesPerSecond), burst)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：/ws?room=my_room&token=<jwt>
func HandleWS(rm *RoomManager, auth *Authenticator) http.HandlerFunc {
	cfg := rm.Config()
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		if roomID == "" {
			roomID = cfg.Game.RoomName
		}
		user, authErr := auth.VerifyRequest(r)
		if authErr != nil && cfg.Auth.RequireToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			Log.Warnf("upgrade error: %v", err)
			return
		}

		client := NewClientConn(ws, cfg)
		key := SessionKey(uuid.NewString())
		room, id, err := joinRoom(rm, roomID, key, client)
		if err != nil {
			if errors.Is(err, ErrPoolExhausted) {
				client.reject(CloseRoomFull, "room is full")
			} else {
				Log.Errorf("join failed: room=%s session=%s err=%v", roomID, key, err)
				client.reject(websocket.CloseInternalServerErr, "join failed")
			}
			return
		}
		if authErr == nil {
			Log.Infof("authenticated join: room=%s session=%s player=%d user=%s", roomID, key, id, user.ID)
		}

		go client.writePump()
		go client.readPump(room, key, newLimiter(room.Tuning()))
	}
}

// joinRoom 加入房间；房间恰好在销毁时换一个新房间重试一次
func joinRoom(rm *RoomManager, roomID string, key SessionKey, client *ClientConn) (*Room, PlayerID, error) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		room := rm.GetOrCreateRoom(roomID)
		client.onDrop = room.Metrics().IncChanFullDiscarded
		var id PlayerID
		id, err = room.Join(key, client)
		if err == nil {
			return room, id, nil
		}
		if !errors.Is(err, ErrRoomClosed) {
			break
		}
	}
	return nil, 0, err
}
