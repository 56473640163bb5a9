package server

import "sort"

// TileOwnership 维护 玩家 → 格子集合 的归属关系。
// owners 是反向索引（格子 → 玩家），保证同一格子最多属于一个玩家。
type TileOwnership struct {
	sets   map[PlayerID]map[Tile]struct{}
	owners map[Tile]PlayerID
}

// TileSnapshot current_tiles 消息体
type TileSnapshot struct {
	Ownerships map[string][]Tile `json:"ownerships"`
}

func NewTileOwnership() *TileOwnership {
	t := &TileOwnership{}
	t.Clear()
	return t
}

// Clear 清空全部归属（会话创建与销毁时调用）
func (t *TileOwnership) Clear() {
	t.sets = make(map[PlayerID]map[Tile]struct{})
	t.owners = make(map[Tile]PlayerID)
}

// AddOwner 为玩家登记一个空集合；已存在则保持不变
func (t *TileOwnership) AddOwner(id PlayerID) {
	if _, ok := t.sets[id]; ok {
		return
	}
	t.sets[id] = make(map[Tile]struct{})
}

// HasOwner 是否存在该玩家的集合
func (t *TileOwnership) HasOwner(id PlayerID) bool {
	_, ok := t.sets[id]
	return ok
}

// RemoveOwner 删除玩家的集合及其占有的全部格子
func (t *TileOwnership) RemoveOwner(id PlayerID) {
	t.ClearOwner(id)
	delete(t.sets, id)
}

// ClearOwner 清空玩家的格子，但保留集合本身（死亡时）
func (t *TileOwnership) ClearOwner(id PlayerID) {
	set, ok := t.sets[id]
	if !ok {
		return
	}
	for tile := range set {
		delete(t.owners, tile)
	}
	t.sets[id] = make(map[Tile]struct{})
}

// Owner 当前占有该格子的玩家
func (t *TileOwnership) Owner(tile Tile) (PlayerID, bool) {
	id, ok := t.owners[tile]
	return id, ok
}

// Claim 将格子转给 id：先从旧主人处移除，再加入新主人的集合。
// 新主人没有集合时返回 ErrUnknownOwner，此时格子仍已从旧主人处释放。
func (t *TileOwnership) Claim(id PlayerID, tile Tile) error {
	if prev, ok := t.owners[tile]; ok {
		delete(t.sets[prev], tile)
		delete(t.owners, tile)
	}
	set, ok := t.sets[id]
	if !ok {
		return ErrUnknownOwner
	}
	set[tile] = struct{}{}
	t.owners[tile] = id
	return nil
}

// Tiles 玩家拥有的格子（按 x、y 排序）
func (t *TileOwnership) Tiles(id PlayerID) []Tile {
	set, ok := t.sets[id]
	if !ok {
		return nil
	}
	return sortedTiles(set)
}

// Owners 所有持有集合的玩家（升序）
func (t *TileOwnership) Owners() []PlayerID {
	out := make([]PlayerID, 0, len(t.sets))
	for id := range t.sets {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot 生成 current_tiles 全量快照；空集合输出为 []
func (t *TileOwnership) Snapshot() TileSnapshot {
	snap := TileSnapshot{Ownerships: make(map[string][]Tile, len(t.sets))}
	for id, set := range t.sets {
		snap.Ownerships[id.String()] = sortedTiles(set)
	}
	return snap
}

func sortedTiles(set map[Tile]struct{}) []Tile {
	out := make([]Tile, 0, len(set))
	for tile := range set {
		out = append(out, tile)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}
