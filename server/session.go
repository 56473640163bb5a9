package server

import (
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"
)

// Conn 会话向连接写出数据的最小接口（由传输层实现）
type Conn interface {
	// Enqueue 非阻塞地压入一帧待发送数据
	Enqueue(b []byte)
	// Close 断开连接
	Close()
}

type member struct {
	key  SessionKey
	id   PlayerID
	conn Conn
}

// MemberInfo 会话成员的只读视图
type MemberInfo struct {
	SessionKey SessionKey `json:"sessionId"`
	PlayerID   PlayerID   `json:"playerId"`
}

type handlerFunc func(from *member, payload json.RawMessage) error

// Session 一个游戏房间的权威状态：编号池、格子归属、出生点登记与同步状态。
// 不是并发安全的：所有调用必须来自同一个 goroutine（见 Room.run）。
type Session struct {
	ID string

	ids    *IDPool
	tiles  *TileOwnership
	spawns *SpawnRegistry
	state  *State

	members  map[SessionKey]*member
	order    []*member // 加入顺序，广播按此顺序写出
	handlers map[string]handlerFunc
}

// NewSession 创建会话并执行 OnCreate
func NewSession(id string) *Session {
	s := &Session{ID: id}
	s.OnCreate(nil)
	return s
}

// OnCreate 初始化空的同步状态、重置编号池、清空格子与出生点，并注册消息处理器（只注册一次）
func (s *Session) OnCreate(options map[string]any) {
	s.ids = NewIDPool(Capacity)
	s.tiles = NewTileOwnership()
	s.spawns = NewSpawnRegistry()
	s.state = NewState()
	s.members = make(map[SessionKey]*member)
	s.order = nil
	s.handlers = map[string]handlerFunc{
		KindLight:        s.onLight,
		KindTileTaken:    s.onTileTaken,
		KindPosition:     s.onPosition,
		KindCarPosition:  s.onCarPosition,
		KindIntersection: s.onIntersection,
		KindDeath:        s.onDeath,
		KindPlayerLeave:  s.onPlayerLeave,
		KindSpawn:        s.onSpawn,
		KindSpawning:     s.onSpawning,
	}
	Log.Debugf("session created: room=%s options=%v", s.ID, options)
}

// OnJoin 为连接分配编号并登记玩家，随后发送格子快照、编号、欢迎语与 join 广播。
// 编号池耗尽时返回 ErrPoolExhausted，且不修改任何状态。
func (s *Session) OnJoin(key SessionKey, conn Conn) (PlayerID, error) {
	if _, dup := s.members[key]; dup {
		return 0, fmt.Errorf("session %q already joined", key)
	}
	id, err := s.ids.Allocate()
	if err != nil {
		return 0, err
	}

	m := &member{key: key, id: id, conn: conn}
	s.members[key] = m
	s.order = append(s.order, m)
	s.state.Add(key)
	s.tiles.AddOwner(id)

	s.broadcast(KindCurrentTiles, s.tiles.Snapshot())
	// player_id 必须先于 join 广播，客户端先知道自己的编号
	s.send(m, KindPlayerID, playerIDMessage{ID: id})
	s.send(m, KindWelcome, WelcomeText)
	s.broadcast(KindJoin, sessionKeyMessage{ID: key})

	Log.Infof("player joined: room=%s session=%s player=%d members=%d", s.ID, key, id, len(s.members))
	return id, nil
}

// OnLeave 释放离开连接占用的全部资源，然后广播 left 并删除同步状态中的玩家。
// 记账必须先于同步状态删除。
func (s *Session) OnLeave(key SessionKey, consented bool) {
	if m, ok := s.members[key]; ok {
		s.tiles.RemoveOwner(m.id)
		if slot, freed := s.spawns.Remove(m.id); freed {
			Log.Infof("spawn point freed: room=%s player=%d slot=%d", s.ID, m.id, slot)
		}
		s.ids.Release(m.id)
		s.removeMember(key)
		Log.Infof("player left: room=%s session=%s player=%d consented=%t", s.ID, key, m.id, consented)
	} else {
		Log.Infof("unknown session left: room=%s session=%s consented=%t", s.ID, key, consented)
	}
	s.broadcast(KindLeft, sessionKeyMessage{ID: key})
	s.state.Delete(key)
}

// OnDispose 重置编号池并清空格子与出生点
func (s *Session) OnDispose() {
	Log.Infof("room disposing: room=%s", s.ID)
	s.ids.Reset()
	s.tiles.Clear()
	s.spawns.Clear()
	s.state.Reset()
	s.members = make(map[SessionKey]*member)
	s.order = nil
}

// OnMessage 按消息类型分发
func (s *Session) OnMessage(key SessionKey, kind string, payload json.RawMessage) error {
	m, ok := s.members[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotMember, key)
	}
	h, ok := s.handlers[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessage, kind)
	}
	if err := h(m, payload); err != nil {
		return fmt.Errorf("handle %s: %w", kind, err)
	}
	return nil
}

func (s *Session) removeMember(key SessionKey) {
	delete(s.members, key)
	for i, m := range s.order {
		if m.key == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// broadcast 编码一次，按加入顺序写给所有成员（包括发送者）
func (s *Session) broadcast(kind string, payload any) {
	b, err := EncodeFrame(kind, payload)
	if err != nil {
		Log.Errorf("encode %s: %v", kind, err)
		return
	}
	for _, m := range s.order {
		m.conn.Enqueue(b)
	}
}

// send 定向发送给单个成员
func (s *Session) send(m *member, kind string, payload any) {
	b, err := EncodeFrame(kind, payload)
	if err != nil {
		Log.Errorf("encode %s: %v", kind, err)
		return
	}
	m.conn.Enqueue(b)
}

// SendTo 定向发送给指定连接（房间发送全量状态时使用）
func (s *Session) SendTo(key SessionKey, kind string, payload any) error {
	m, ok := s.members[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotMember, key)
	}
	s.send(m, kind, payload)
	return nil
}

// Broadcast 向全部成员广播
func (s *Session) Broadcast(kind string, payload any) { s.broadcast(kind, payload) }

// MemberCount 当前成员数
func (s *Session) MemberCount() int { return len(s.members) }

// Empty 是否已无成员
func (s *Session) Empty() bool { return len(s.members) == 0 }

// PlayerIDOf 连接对应的玩家编号
func (s *Session) PlayerIDOf(key SessionKey) (PlayerID, bool) {
	m, ok := s.members[key]
	if !ok {
		return 0, false
	}
	return m.id, true
}

// Members 按加入顺序列出成员
func (s *Session) Members() []MemberInfo {
	out := make([]MemberInfo, 0, len(s.order))
	for _, m := range s.order {
		out = append(out, MemberInfo{SessionKey: m.key, PlayerID: m.id})
	}
	return out
}

// Disconnect 主动断开某个成员的连接（传输层随后会触发 OnLeave）
func (s *Session) Disconnect(key SessionKey) bool {
	m, ok := s.members[key]
	if !ok {
		return false
	}
	m.conn.Close()
	return true
}

// AvailableIDs 空闲编号（升序）
func (s *Session) AvailableIDs() []PlayerID { return s.ids.Available() }

// InUseIDs 已分配编号（升序）
func (s *Session) InUseIDs() []PlayerID { return s.ids.InUse() }

// TileSnapshot current_tiles 快照
func (s *Session) TileSnapshot() TileSnapshot { return s.tiles.Snapshot() }

func (s *Session) Tiles(id PlayerID) []Tile { return s.tiles.Tiles(id) }

func (s *Session) HasTileOwner(id PlayerID) bool { return s.tiles.HasOwner(id) }

func (s *Session) Spawns() map[string]SpawnSlot { return s.spawns.Snapshot() }

// AvailableSpawnSpots 未被登记的出生点（升序）
func (s *Session) AvailableSpawnSpots() []SpawnSlot { return s.spawns.AvailableSpots() }

func (s *Session) StateSnapshot() StateSnapshot { return s.state.Snapshot() }

func (s *Session) Player(key SessionKey) (Player, bool) { return s.state.Get(key) }

// TakePatch 取出同步状态增量（由房间 Tick 调用）
func (s *Session) TakePatch() StatePatch { return s.state.Patch() }

// Verify 检查会话记账的全部不变量，返回所有违反项
func (s *Session) Verify() error {
	var err error
	inUse := s.ids.InUse()
	avail := s.ids.Available()
	if len(inUse)+len(avail) != s.ids.Capacity() {
		err = multierr.Append(err, fmt.Errorf("pool size %d+%d != %d", len(inUse), len(avail), s.ids.Capacity()))
	}
	for i, id := range avail {
		if s.ids.IsInUse(id) {
			err = multierr.Append(err, fmt.Errorf("id %d both available and in use", id))
		}
		if i > 0 && avail[i-1] >= id {
			err = multierr.Append(err, fmt.Errorf("available ids not ascending: %v", avail))
		}
	}
	if len(s.members) != len(inUse) {
		err = multierr.Append(err, fmt.Errorf("members %d != ids in use %d", len(s.members), len(inUse)))
	}
	owned := make(map[PlayerID]bool, len(s.members))
	for key, m := range s.members {
		if !s.ids.IsInUse(m.id) {
			err = multierr.Append(err, fmt.Errorf("member %s holds id %d not in use", key, m.id))
		}
		owned[m.id] = true
		if _, ok := s.state.Get(key); !ok {
			err = multierr.Append(err, fmt.Errorf("member %s missing from replicated state", key))
		}
	}
	if s.state.Len() != len(s.members) {
		err = multierr.Append(err, fmt.Errorf("replicated players %d != members %d", s.state.Len(), len(s.members)))
	}
	seen := make(map[Tile]PlayerID)
	for _, id := range s.tiles.Owners() {
		if !owned[id] {
			err = multierr.Append(err, fmt.Errorf("tile set for %d outlives its owner", id))
		}
		for _, tile := range s.tiles.Tiles(id) {
			if prev, dup := seen[tile]; dup {
				err = multierr.Append(err, fmt.Errorf("tile %s owned by %d and %d", tile.Key(), prev, id))
			}
			seen[tile] = id
		}
	}
	for _, id := range s.spawns.Players() {
		if !owned[id] {
			err = multierr.Append(err, fmt.Errorf("spawn for %d outlives its owner", id))
		}
		if slot, _ := s.spawns.Get(id); !slot.Valid() {
			err = multierr.Append(err, fmt.Errorf("spawn slot %d out of range", slot))
		}
	}
	return err
}
