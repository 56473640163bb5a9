package server

import "time"

const (
	// TicksPerSecond 默认同步频率（20 TPS）
	TicksPerSecond = 20
)

// StartTicker 启动房间的事件循环（单线程处理事件，并按固定间隔广播同步增量）
func (r *Room) StartTicker() {
	if r.tickerStarted {
		return
	}
	r.tickerStarted = true
	go r.run()
}

func (r *Room) run() {
	interval := r.patchInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case ev := <-r.events:
			if r.handle(ev) {
				return
			}
		case <-ticker.C:
			start := time.Now()
			if r.BroadcastDelta() {
				r.metrics.AddPatch(time.Since(start).Nanoseconds())
			}
			// 管理接口可能调整了同步间隔
			if next := r.patchInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}
