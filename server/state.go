package server

import "sort"

// State 同步状态：sessionKey → Player，框架按增量同步给所有客户端。
// changed/removed 记录自上次 Patch 以来的变化。
type State struct {
	players map[SessionKey]*Player
	changed map[SessionKey]struct{}
	removed map[SessionKey]struct{}
}

// StateSnapshot 全量状态（state 消息体，加入时单独发送给新玩家）
type StateSnapshot struct {
	Players map[SessionKey]Player `json:"players"`
}

// StatePatch 增量状态（state_patch 消息体）
type StatePatch struct {
	Players map[SessionKey]Player `json:"players,omitempty"`
	Removed []SessionKey          `json:"removed,omitempty"`
}

// Empty 是否没有任何变化
func (p StatePatch) Empty() bool { return len(p.Players) == 0 && len(p.Removed) == 0 }

func NewState() *State {
	return &State{
		players: make(map[SessionKey]*Player),
		changed: make(map[SessionKey]struct{}),
		removed: make(map[SessionKey]struct{}),
	}
}

// Add 新建玩家记录（初始坐标 0）
func (s *State) Add(key SessionKey) *Player {
	p := &Player{}
	s.players[key] = p
	s.changed[key] = struct{}{}
	delete(s.removed, key)
	return p
}

// Update 写入位置与朝向；玩家不存在时返回 false
func (s *State) Update(key SessionKey, x, z, rotationY float64) bool {
	p, ok := s.players[key]
	if !ok {
		return false
	}
	p.X, p.Z, p.RotationY = x, z, rotationY
	s.changed[key] = struct{}{}
	return true
}

// Delete 删除玩家记录
func (s *State) Delete(key SessionKey) {
	if _, ok := s.players[key]; !ok {
		return
	}
	delete(s.players, key)
	delete(s.changed, key)
	s.removed[key] = struct{}{}
}

// Get 玩家当前状态副本
func (s *State) Get(key SessionKey) (Player, bool) {
	p, ok := s.players[key]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Keys 所有玩家键（排序后返回）
func (s *State) Keys() []SessionKey {
	out := make([]SessionKey, 0, len(s.players))
	for k := range s.players {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len 玩家数量
func (s *State) Len() int { return len(s.players) }

// Snapshot 全量副本
func (s *State) Snapshot() StateSnapshot {
	snap := StateSnapshot{Players: make(map[SessionKey]Player, len(s.players))}
	for k, p := range s.players {
		snap.Players[k] = *p
	}
	return snap
}

// Patch 取出自上次调用以来的增量并重置变化记录
func (s *State) Patch() StatePatch {
	var patch StatePatch
	if len(s.changed) > 0 {
		patch.Players = make(map[SessionKey]Player, len(s.changed))
		for k := range s.changed {
			if p, ok := s.players[k]; ok {
				patch.Players[k] = *p
			}
		}
	}
	for k := range s.removed {
		patch.Removed = append(patch.Removed, k)
	}
	sort.Slice(patch.Removed, func(i, j int) bool { return patch.Removed[i] < patch.Removed[j] })
	s.changed = make(map[SessionKey]struct{})
	s.removed = make(map[SessionKey]struct{})
	return patch
}

// Reset 清空全部状态与变化记录
func (s *State) Reset() {
	s.players = make(map[SessionKey]*Player)
	s.changed = make(map[SessionKey]struct{})
	s.removed = make(map[SessionKey]struct{})
}
