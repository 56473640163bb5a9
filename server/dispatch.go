package server

import (
	"encoding/json"
	"fmt"
	"math"
)

// onLight 红绿灯：id 向下取整后原样广播
func (s *Session) onLight(_ *member, payload json.RawMessage) error {
	var msg lightMessage
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}
	if err := requireFloat("id", msg.ID); err != nil {
		return err
	}
	if err := requireFloat("prev", msg.Prev); err != nil {
		return err
	}
	s.broadcast(KindLight, lightBroadcast{ID: math.Floor(*msg.ID), Prev: *msg.Prev})
	return nil
}

// onTileTaken 格子易主：先从旧主人移除，再加入新主人；随后广播一次全量快照
func (s *Session) onTileTaken(_ *member, payload json.RawMessage) error {
	var msg tileTakenMessage
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}
	if !msg.ID.Present() {
		return missing("id")
	}
	if err := requireFloat("xx", msg.XX); err != nil {
		return err
	}
	if err := requireFloat("yy", msg.YY); err != nil {
		return err
	}
	x, okX := integral(*msg.XX)
	y, okY := integral(*msg.YY)
	if !okX || !okY {
		return fmt.Errorf("%w: tile (%v,%v) is not on the grid", ErrMalformedPayload, *msg.XX, *msg.YY)
	}
	tile := Tile{X: x, Y: y}

	owner, _ := msg.ID.PlayerID()
	if err := s.tiles.Claim(owner, tile); err != nil {
		// 未知主人：静默忽略（旧主人已失去该格子）
		Log.Debugf("tile claim ignored: room=%s owner=%s tile=%s err=%v", s.ID, msg.ID.raw, tile.Key(), err)
	}
	s.broadcast(KindCurrentTiles, s.tiles.Snapshot())
	return nil
}

// onPosition 更新发送者的同步状态，并广播完整的 player_position
func (s *Session) onPosition(from *member, payload json.RawMessage) error {
	var msg PositionMessage
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}
	if err := requirePosition(&msg); err != nil {
		return err
	}
	s.state.Update(from.key, *msg.X, *msg.Z, *msg.RotationY)

	// 闪光灯、优先权等只是事件元数据，不写入同步状态
	s.broadcast(KindPlayerPosition, playerPosition{
		ID:           msg.ID,
		X:            *msg.X,
		Z:            *msg.Z,
		RotationY:    *msg.RotationY,
		RightBlinker: msg.RightBlinker,
		LeftBlinker:  msg.LeftBlinker,
		IsHorizontal: msg.IsHorizontal,
		HasPriority:  msg.HasPriority,
		Turning:      msg.Turning,
		Speed:        msg.Speed,
		Entrance:     msg.Entrance,
		Name:         msg.Name,
	})
	return nil
}

// onCarPosition NPC 车辆位置，原样转发
func (s *Session) onCarPosition(_ *member, payload json.RawMessage) error {
	var msg PositionMessage
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}
	if err := requirePosition(&msg); err != nil {
		return err
	}
	s.broadcast(KindCarPosition, carPosition{
		CarID:        msg.CarID,
		X:            *msg.X,
		Z:            *msg.Z,
		RotationY:    *msg.RotationY,
		RightBlinker: msg.RightBlinker,
		LeftBlinker:  msg.LeftBlinker,
	})
	return nil
}

func (s *Session) onIntersection(_ *member, payload json.RawMessage) error {
	return s.echoRef(KindIntersection, payload)
}

func (s *Session) onPlayerLeave(_ *member, payload json.RawMessage) error {
	return s.echoRef(KindPlayerLeave, payload)
}

// onDeath 清空死亡玩家的格子（保留集合），依次广播 current_tiles 与 death
func (s *Session) onDeath(_ *member, payload json.RawMessage) error {
	var msg refMessage
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}
	if !msg.ID.Present() {
		return missing("id")
	}
	if id, ok := msg.ID.PlayerID(); ok {
		s.tiles.ClearOwner(id)
	}
	s.broadcast(KindCurrentTiles, s.tiles.Snapshot())
	s.broadcast(KindDeath, msg)
	return nil
}

// onSpawn 登记出生点。不同玩家可以登记同一个出生点，这里只记录告警。
func (s *Session) onSpawn(_ *member, payload json.RawMessage) error {
	var msg spawnMessage
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}
	if !msg.ID.Present() {
		return missing("id")
	}
	if err := requireFloat("spawn", msg.Spawn); err != nil {
		return err
	}
	id, ok := msg.ID.PlayerID()
	if !ok || !id.Valid() {
		return fmt.Errorf("%w: bad player id %s", ErrMalformedPayload, msg.ID.raw)
	}
	n, ok := integral(*msg.Spawn)
	slot := SpawnSlot(n)
	if !ok || !slot.Valid() {
		return fmt.Errorf("%w: spawn slot %v out of range", ErrMalformedPayload, *msg.Spawn)
	}
	if !s.ids.IsInUse(id) {
		Log.Debugf("spawn ignored for idle player: room=%s player=%d slot=%d", s.ID, id, slot)
		return nil
	}
	if holder, taken := s.spawns.Set(id, slot); taken {
		Log.Warnf("spawn slot shared: room=%s slot=%d player=%d holder=%d", s.ID, slot, id, holder)
	}
	Log.Infof("player %d assigned spawn point %d: room=%s", id, slot, s.ID)
	return nil
}

// onSpawning 广播当前可用出生点
func (s *Session) onSpawning(_ *member, payload json.RawMessage) error {
	var msg spawningMessage
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}
	if !present(msg.PlayerID) {
		return missing("playerID")
	}
	s.broadcast(KindSpawning, spawningBroadcast{ID: s.spawns.AvailableSpots(), PlayerID: msg.PlayerID})
	return nil
}

// echoRef 只带 id 的消息：校验后原样广播
func (s *Session) echoRef(kind string, payload json.RawMessage) error {
	var msg refMessage
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}
	if !msg.ID.Present() {
		return missing("id")
	}
	s.broadcast(kind, msg)
	return nil
}

func requirePosition(msg *PositionMessage) error {
	if err := requireFloat("x", msg.X); err != nil {
		return err
	}
	if err := requireFloat("z", msg.Z); err != nil {
		return err
	}
	return requireFloat("rotationY", msg.RotationY)
}
