package server

import "sort"

// SpawnSlots 固定出生点数量（0..3）
const SpawnSlots = 4

// SpawnSlot 出生点编号
type SpawnSlot int

// Valid 是否为合法出生点
func (s SpawnSlot) Valid() bool { return s >= 0 && s < SpawnSlots }

// SpawnRegistry 记录每个玩家占用的出生点。
// 不强制不同玩家占用不同出生点，AvailableSpots 仅作参考查询。
type SpawnRegistry struct {
	slots map[PlayerID]SpawnSlot
}

func NewSpawnRegistry() *SpawnRegistry {
	return &SpawnRegistry{slots: make(map[PlayerID]SpawnSlot)}
}

// Clear 清空登记
func (r *SpawnRegistry) Clear() {
	r.slots = make(map[PlayerID]SpawnSlot)
}

// Set 登记玩家的出生点；返回此前已占用该出生点的其他玩家（若有）
func (r *SpawnRegistry) Set(id PlayerID, slot SpawnSlot) (PlayerID, bool) {
	var holder PlayerID
	var taken bool
	for other, s := range r.slots {
		if other != id && s == slot {
			holder, taken = other, true
			break
		}
	}
	r.slots[id] = slot
	return holder, taken
}

// Get 玩家当前的出生点
func (r *SpawnRegistry) Get(id PlayerID) (SpawnSlot, bool) {
	s, ok := r.slots[id]
	return s, ok
}

// Remove 释放玩家的出生点
func (r *SpawnRegistry) Remove(id PlayerID) (SpawnSlot, bool) {
	s, ok := r.slots[id]
	if ok {
		delete(r.slots, id)
	}
	return s, ok
}

// AvailableSpots {0,1,2,3} 中未被任何玩家登记的出生点（升序）
func (r *SpawnRegistry) AvailableSpots() []SpawnSlot {
	taken := make(map[SpawnSlot]bool, len(r.slots))
	for _, s := range r.slots {
		taken[s] = true
	}
	out := make([]SpawnSlot, 0, SpawnSlots)
	for s := SpawnSlot(0); s < SpawnSlots; s++ {
		if !taken[s] {
			out = append(out, s)
		}
	}
	return out
}

// Snapshot 以字符串编号为键的副本（管理接口使用）
func (r *SpawnRegistry) Snapshot() map[string]SpawnSlot {
	out := make(map[string]SpawnSlot, len(r.slots))
	for id, s := range r.slots {
		out[id.String()] = s
	}
	return out
}

// Players 已登记的玩家（升序）
func (r *SpawnRegistry) Players() []PlayerID {
	out := make([]PlayerID, 0, len(r.slots))
	for id := range r.slots {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
