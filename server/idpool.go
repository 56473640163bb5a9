package server

import "sort"

// IDPool 玩家编号池：available 升序保存空闲编号，inUse 记录已分配编号。
// 分配总是取最小的空闲编号，因此加入顺序决定编号（从 1 开始）。
type IDPool struct {
	capacity  int
	available []PlayerID
	inUse     map[PlayerID]struct{}
}

// NewIDPool 创建容量为 capacity 的编号池（1..capacity 全部空闲）
func NewIDPool(capacity int) *IDPool {
	p := &IDPool{capacity: capacity}
	p.Reset()
	return p
}

// Reset available := [1..capacity]，inUse := ∅
func (p *IDPool) Reset() {
	p.available = make([]PlayerID, 0, p.capacity)
	for i := 1; i <= p.capacity; i++ {
		p.available = append(p.available, PlayerID(i))
	}
	p.inUse = make(map[PlayerID]struct{}, p.capacity)
}

// Allocate 取出最小的空闲编号；池空时返回 ErrPoolExhausted
func (p *IDPool) Allocate() (PlayerID, error) {
	if len(p.available) == 0 {
		return 0, ErrPoolExhausted
	}
	id := p.available[0]
	p.available = p.available[1:]
	p.inUse[id] = struct{}{}
	return id, nil
}

// Release 归还编号；未分配的编号直接忽略（幂等）
func (p *IDPool) Release(id PlayerID) {
	if _, ok := p.inUse[id]; !ok {
		return
	}
	delete(p.inUse, id)
	p.available = append(p.available, id)
	sort.Slice(p.available, func(i, j int) bool { return p.available[i] < p.available[j] })
}

// IsInUse 编号是否已分配
func (p *IDPool) IsInUse(id PlayerID) bool {
	_, ok := p.inUse[id]
	return ok
}

// Available 空闲编号副本（升序）
func (p *IDPool) Available() []PlayerID {
	out := make([]PlayerID, len(p.available))
	copy(out, p.available)
	return out
}

// InUse 已分配编号副本（升序）
func (p *IDPool) InUse() []PlayerID {
	out := make([]PlayerID, 0, len(p.inUse))
	for id := range p.inUse {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Capacity 池容量
func (p *IDPool) Capacity() int { return p.capacity }
