package server

import (
	"errors"
	"sync"
	"time"
)

type eventKind int

const (
	evJoin eventKind = iota
	evLeave
	evInput
	evDo
)

type joinResult struct {
	id  PlayerID
	err error
}

// roomEvent 进入房间事件循环的一切操作，统一经过一个通道以保持先后顺序
type roomEvent struct {
	kind      eventKind
	key       SessionKey
	conn      Conn
	consented bool
	input     Input
	fn        func(*Session)
	joined    chan joinResult
	finished  chan struct{}
}

// RoomTuning 可在运行时调整的房间参数
type RoomTuning struct {
	PatchIntervalMs   int     `json:"patchIntervalMs"`
	MessagesPerSecond float64 `json:"messagesPerSecond"`
	MessageBurst      int     `json:"messageBurst"`
}

// Room 房间：一个 goroutine 独占 Session，所有钩子与消息串行执行
type Room struct {
	ID        string
	CreatedAt time.Time

	session *Session
	events  chan roomEvent
	done    chan struct{}
	metrics *RoomMetrics

	mu     sync.RWMutex
	tuning RoomTuning

	onDispose     func(*Room)
	tickerStarted bool
}

// NewRoom 创建房间与会话（OnCreate 在此执行）
func NewRoom(id string, cfg Config) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now(),
		session:   NewSession(id),
		events:    make(chan roomEvent, 256), // 足够缓冲，避免网络读阻塞
		done:      make(chan struct{}),
		metrics:   &RoomMetrics{},
		tuning: RoomTuning{
			PatchIntervalMs:   int(cfg.Game.PatchInterval / time.Millisecond),
			MessagesPerSecond: cfg.RateLimit.MessagesPerSecond,
			MessageBurst:      cfg.RateLimit.Burst,
		},
	}
}

// Join 加入房间，返回分配的玩家编号。房间已销毁时返回 ErrRoomClosed。
func (r *Room) Join(key SessionKey, conn Conn) (PlayerID, error) {
	reply := make(chan joinResult, 1)
	if err := r.submit(roomEvent{kind: evJoin, key: key, conn: conn, joined: reply}); err != nil {
		return 0, err
	}
	select {
	case res := <-reply:
		return res.id, res.err
	case <-r.done:
		return 0, ErrRoomClosed
	}
}

// RequestLeave 请求在房间线程中移除玩家，避免并发改动房间状态
func (r *Room) RequestLeave(key SessionKey, consented bool) {
	_ = r.submit(roomEvent{kind: evLeave, key: key, consented: consented})
}

// OnInput 入站消息，按到达顺序交给房间线程处理
func (r *Room) OnInput(in Input) {
	_ = r.submit(roomEvent{kind: evInput, key: in.Key, input: in})
}

// Do 在房间线程中执行 fn 并等待完成（管理接口读取状态使用）
func (r *Room) Do(fn func(*Session)) error {
	finished := make(chan struct{})
	if err := r.submit(roomEvent{kind: evDo, fn: fn, finished: finished}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// Done 房间销毁后关闭
func (r *Room) Done() <-chan struct{} { return r.done }

// Metrics 房间指标
func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// Tuning 当前可调参数
func (r *Room) Tuning() RoomTuning {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tuning
}

// SetTuning 更新可调参数；限流参数对之后建立的连接生效
func (r *Room) SetTuning(t RoomTuning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tuning = t
}

func (r *Room) patchInterval() time.Duration {
	ms := r.Tuning().PatchIntervalMs
	if ms <= 0 {
		ms = 1000 / TicksPerSecond
	}
	return time.Duration(ms) * time.Millisecond
}

func (r *Room) submit(ev roomEvent) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}
	select {
	case r.events <- ev:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// handle 处理一个事件；返回 true 表示房间已销毁
func (r *Room) handle(ev roomEvent) bool {
	s := r.session
	switch ev.kind {
	case evJoin:
		id, err := s.OnJoin(ev.key, ev.conn)
		if err != nil {
			r.metrics.IncJoinsRejected()
			Log.Warnf("join rejected: room=%s session=%s err=%v", r.ID, ev.key, err)
			ev.joined <- joinResult{err: err}
			if s.Empty() {
				r.dispose()
				return true
			}
			return false
		}
		r.metrics.IncJoins()
		// 新玩家单独收到一次全量同步状态，之后跟随增量
		_ = s.SendTo(ev.key, KindState, s.StateSnapshot())
		ev.joined <- joinResult{id: id}
	case evLeave:
		_, wasMember := s.PlayerIDOf(ev.key)
		s.OnLeave(ev.key, ev.consented)
		if !wasMember {
			return false
		}
		r.metrics.IncLeaves()
		if s.Empty() {
			r.dispose()
			return true
		}
	case evInput:
		r.dispatch(ev.input)
	case evDo:
		ev.fn(s)
		close(ev.finished)
	}
	return false
}

// dispatch 交给 Session 处理，按错误类别记日志与指标，消息本身被丢弃
func (r *Room) dispatch(in Input) {
	err := r.session.OnMessage(in.Key, in.Kind, in.Payload)
	switch {
	case err == nil:
		r.metrics.IncAccepted()
	case errors.Is(err, ErrMalformedPayload):
		r.metrics.IncMalformed()
		Log.Warnf("dropping message: room=%s session=%s err=%v", r.ID, in.Key, err)
	case errors.Is(err, ErrUnknownMessage):
		r.metrics.IncUnknown()
		Log.Warnf("dropping message: room=%s session=%s err=%v", r.ID, in.Key, err)
	default:
		Log.Debugf("dropping message: room=%s session=%s err=%v", r.ID, in.Key, err)
	}
}

// BroadcastDelta 将同步状态的增量广播给所有玩家
func (r *Room) BroadcastDelta() bool {
	patch := r.session.TakePatch()
	if patch.Empty() {
		return false
	}
	r.session.Broadcast(KindStatePatch, patch)
	return true
}

func (r *Room) dispose() {
	r.session.OnDispose()
	if r.onDispose != nil {
		r.onDispose(r)
	}
	close(r.done)
}
