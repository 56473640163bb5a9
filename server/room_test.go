package server

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanConn 并发安全的测试连接：房间线程写入，测试协程读取
type chanConn struct {
	frames chan []byte
	closed atomic.Bool
}

func newChanConn() *chanConn { return &chanConn{frames: make(chan []byte, 256)} }

func (c *chanConn) Enqueue(b []byte) {
	select {
	case c.frames <- b:
	default:
	}
}

func (c *chanConn) Close() { c.closed.Store(true) }

// next 读到指定类型的帧为止（跳过其他帧）
func (c *chanConn) next(t *testing.T, kind string) json.RawMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case b := <-c.frames:
			var f frame
			require.NoError(t, json.Unmarshal(b, &f))
			if f.Type == kind {
				return f.Message
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
			return nil
		}
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Game.PatchInterval = 10 * time.Millisecond
	return cfg
}

func startRoom(t *testing.T, id string) *Room {
	t.Helper()
	r := NewRoom(id, testConfig())
	r.StartTicker()
	return r
}

func TestRoomJoinSendsFullState(t *testing.T) {
	r := startRoom(t, "r")
	a := newChanConn()
	id, err := r.Join("a", a)
	require.NoError(t, err)
	assert.Equal(t, PlayerID(1), id)

	assert.JSONEq(t, `{"id":1}`, string(a.next(t, KindPlayerID)))
	assert.JSONEq(t, `{"players":{"a":{"x":0,"z":0,"rotationY":0}}}`, string(a.next(t, KindState)))
}

func TestRoomBroadcastsStatePatch(t *testing.T) {
	r := startRoom(t, "r")
	a, b := newChanConn(), newChanConn()
	_, err := r.Join("a", a)
	require.NoError(t, err)
	_, err = r.Join("b", b)
	require.NoError(t, err)
	b.next(t, KindState)

	// 先消费掉加入时的增量
	b.next(t, KindStatePatch)
	r.OnInput(Input{Key: "a", Kind: KindPosition, Payload: json.RawMessage(`{"x":4,"z":5,"rotationY":6}`)})

	b.next(t, KindPlayerPosition)
	var patch StatePatch
	require.NoError(t, json.Unmarshal(b.next(t, KindStatePatch), &patch))
	assert.Equal(t, Player{X: 4, Z: 5, RotationY: 6}, patch.Players["a"])
	assert.Greater(t, r.Metrics().Snapshot()["patch_count"], int64(0))
}

func TestRoomCountsDroppedMessages(t *testing.T) {
	r := startRoom(t, "r")
	_, err := r.Join("a", newChanConn())
	require.NoError(t, err)

	r.OnInput(Input{Key: "a", Kind: KindLight, Payload: json.RawMessage(`{"id":1,"prev":0}`)})
	r.OnInput(Input{Key: "a", Kind: KindLight, Payload: json.RawMessage(`{"id":1}`)})
	r.OnInput(Input{Key: "a", Kind: "warp", Payload: json.RawMessage(`{}`)})
	r.OnInput(Input{Key: "ghost", Kind: KindLight, Payload: json.RawMessage(`{"id":1,"prev":0}`)})
	// Do 与输入走同一个通道，返回时前面的输入都已处理
	require.NoError(t, r.Do(func(*Session) {}))

	m := r.Metrics().Snapshot()
	assert.Equal(t, int64(1), m["messages_accepted"])
	assert.Equal(t, int64(1), m["messages_malformed"])
	assert.Equal(t, int64(1), m["messages_unknown"])
	assert.Equal(t, int64(1), m["joins"])
}

func TestRoomRejectsFifthJoin(t *testing.T) {
	r := startRoom(t, "r")
	for i, key := range []SessionKey{"a", "b", "c", "d"} {
		id, err := r.Join(key, newChanConn())
		require.NoError(t, err)
		assert.Equal(t, PlayerID(i+1), id)
	}
	_, err := r.Join("e", newChanConn())
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, int64(1), r.Metrics().Snapshot()["joins_rejected"])

	var members int
	require.NoError(t, r.Do(func(s *Session) { members = s.MemberCount() }))
	assert.Equal(t, Capacity, members)
}

func TestRoomDisposesWhenLastMemberLeaves(t *testing.T) {
	rm := NewRoomManager(testConfig())
	r := rm.GetOrCreateRoom("lobby")
	_, err := r.Join("a", newChanConn())
	require.NoError(t, err)

	// 不认识的连接离开不会销毁房间
	r.RequestLeave("ghost", false)
	require.NoError(t, r.Do(func(*Session) {}))

	r.RequestLeave("a", true)
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("room was not disposed")
	}

	_, ok := rm.Room("lobby")
	assert.False(t, ok)
	_, err = r.Join("b", newChanConn())
	assert.ErrorIs(t, err, ErrRoomClosed)
	assert.ErrorIs(t, r.Do(func(*Session) {}), ErrRoomClosed)

	fresh := rm.GetOrCreateRoom("lobby")
	assert.NotSame(t, r, fresh)
	id, err := fresh.Join("b", newChanConn())
	require.NoError(t, err)
	assert.Equal(t, PlayerID(1), id)
}

func TestRoomTuning(t *testing.T) {
	r := NewRoom("r", testConfig())
	assert.Equal(t, 10*time.Millisecond, r.patchInterval())

	r.SetTuning(RoomTuning{PatchIntervalMs: 100, MessagesPerSecond: 5, MessageBurst: 2})
	assert.Equal(t, 100*time.Millisecond, r.patchInterval())
	assert.Equal(t, 5.0, r.Tuning().MessagesPerSecond)

	r.SetTuning(RoomTuning{})
	assert.Equal(t, time.Second/TicksPerSecond, r.patchInterval())
}

func TestManagerReusesAndListsRooms(t *testing.T) {
	rm := NewRoomManager(testConfig())
	a := rm.GetOrCreateRoom("a")
	assert.Same(t, a, rm.GetOrCreateRoom("a"))
	b := rm.GetOrCreateRoom("b")

	rooms := rm.Rooms()
	require.Len(t, rooms, 2)
	assert.ElementsMatch(t, []*Room{a, b}, rooms)
}

func TestManagerShutdownDisconnectsMembers(t *testing.T) {
	rm := NewRoomManager(testConfig())
	r := rm.GetOrCreateRoom("a")
	conn := newChanConn()
	_, err := r.Join("a", conn)
	require.NoError(t, err)

	rm.Shutdown()
	assert.True(t, conn.closed.Load())
}
