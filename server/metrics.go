package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	Joins             int64 // 成功加入次数
	JoinsRejected     int64 // 因编号池耗尽被拒绝的加入
	Leaves            int64 // 离开次数（含断线）
	MessagesAccepted  int64 // 被处理的入站消息
	MessagesMalformed int64 // 因字段缺失/类型错误被丢弃的消息
	MessagesUnknown   int64 // 未注册类型的消息
	RateLimited       int64 // 因限流被丢弃的消息
	ChanFullDiscarded int64 // 因发送队列满被丢弃的出站帧
	PatchCount        int64 // 发送的增量同步次数
	TotalPatchNs      int64 // Patch 累计耗时（纳秒）
}

func (m *RoomMetrics) IncJoins()             { atomic.AddInt64(&m.Joins, 1) }
func (m *RoomMetrics) IncJoinsRejected()     { atomic.AddInt64(&m.JoinsRejected, 1) }
func (m *RoomMetrics) IncLeaves()            { atomic.AddInt64(&m.Leaves, 1) }
func (m *RoomMetrics) IncAccepted()          { atomic.AddInt64(&m.MessagesAccepted, 1) }
func (m *RoomMetrics) IncMalformed()         { atomic.AddInt64(&m.MessagesMalformed, 1) }
func (m *RoomMetrics) IncUnknown()           { atomic.AddInt64(&m.MessagesUnknown, 1) }
func (m *RoomMetrics) IncRateLimited()       { atomic.AddInt64(&m.RateLimited, 1) }
func (m *RoomMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *RoomMetrics) AddPatch(ns int64) {
	atomic.AddInt64(&m.PatchCount, 1)
	atomic.AddInt64(&m.TotalPatchNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	patches := atomic.LoadInt64(&m.PatchCount)
	total := atomic.LoadInt64(&m.TotalPatchNs)
	var avgMs float64
	if patches > 0 {
		avgMs = float64(total) / float64(patches) / 1e6
	}
	return map[string]any{
		"joins":               atomic.LoadInt64(&m.Joins),
		"joins_rejected":      atomic.LoadInt64(&m.JoinsRejected),
		"leaves":              atomic.LoadInt64(&m.Leaves),
		"messages_accepted":   atomic.LoadInt64(&m.MessagesAccepted),
		"messages_malformed":  atomic.LoadInt64(&m.MessagesMalformed),
		"messages_unknown":    atomic.LoadInt64(&m.MessagesUnknown),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"patch_count":         patches,
		"avg_patch_ms":        avgMs,
	}
}
