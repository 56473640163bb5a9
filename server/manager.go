package server

import (
	"sort"
	"sync"
)

// RoomManager 管理多个房间的生命周期
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	cfg   Config
}

// NewRoomManager 创建房间管理器；房间参数取自 cfg
func NewRoomManager(cfg Config) *RoomManager {
	return &RoomManager{rooms: make(map[string]*Room), cfg: cfg}
}

// Config 管理器使用的配置
func (m *RoomManager) Config() Config { return m.cfg }

// GetOrCreateRoom 获取或创建房间，并确保事件循环已启动
func (m *RoomManager) GetOrCreateRoom(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		r = NewRoom(id, m.cfg)
		r.onDispose = m.remove
		m.rooms[id] = r
		r.StartTicker()
		Log.Infof("room created: room=%s", id)
	}
	return r
}

// Room 按 id 查找已存在的房间
func (m *RoomManager) Room(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Rooms 按创建时间列出所有房间
func (m *RoomManager) Rooms() []*Room {
	m.mu.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// remove 房间销毁回调（在房间线程中执行）；同名新房间不受影响
func (m *RoomManager) remove(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[r.ID]; ok && cur == r {
		delete(m.rooms, r.ID)
	}
	Log.Infof("room removed: room=%s", r.ID)
}

// Shutdown 断开所有房间的全部连接；房间在最后一个玩家离开后自行销毁
func (m *RoomManager) Shutdown() {
	for _, r := range m.Rooms() {
		_ = r.Do(func(s *Session) {
			for _, info := range s.Members() {
				s.Disconnect(info.SessionKey)
			}
		})
	}
}
