package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/multierr"
)

func roomParam(rm *RoomManager, r *http.Request) string {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = rm.Config().Game.RoomName
	}
	return roomID
}

// HandleAdminConfig 提供房间可调参数的读取与更新（热更新）
// GET /admin/config?room=my_room  返回当前配置
// POST /admin/config?room=my_room 以 JSON 载荷更新部分字段
func HandleAdminConfig(rm *RoomManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := roomParam(rm, r)
		room, ok := rm.Room(roomID)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		type patch struct {
			PatchIntervalMs   *int     `json:"patchIntervalMs,omitempty"`
			MessagesPerSecond *float64 `json:"messagesPerSecond,omitempty"`
			MessageBurst      *int     `json:"messageBurst,omitempty"`
		}

		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, room.Tuning())
		case http.MethodPost:
			var body patch
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
			t := room.Tuning()
			if body.PatchIntervalMs != nil {
				if *body.PatchIntervalMs <= 0 {
					http.Error(w, "patchIntervalMs must be positive", http.StatusBadRequest)
					return
				}
				t.PatchIntervalMs = *body.PatchIntervalMs
			}
			if body.MessagesPerSecond != nil {
				if *body.MessagesPerSecond < 0 {
					http.Error(w, "messagesPerSecond must not be negative", http.StatusBadRequest)
					return
				}
				t.MessagesPerSecond = *body.MessagesPerSecond
			}
			if body.MessageBurst != nil {
				t.MessageBurst = *body.MessageBurst
			}
			room.SetTuning(t)
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			Log.Infof("config updated: room=%s patchIntervalMs=%d messagesPerSecond=%.1f burst=%d",
				roomID, t.PatchIntervalMs, t.MessagesPerSecond, t.MessageBurst)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=my_room
func HandleMetrics(rm *RoomManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := roomParam(rm, r)
		room, ok := rm.Room(roomID)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"room":    roomID,
			"metrics": room.Metrics().Snapshot(),
		})
	}
}

// RoomSummary 监控列表中的一项
type RoomSummary struct {
	RoomID       string     `json:"roomId"`
	Name         string     `json:"name"`
	Clients      int        `json:"clients"`
	MaxClients   int        `json:"maxClients"`
	AvailableIDs []PlayerID `json:"availableIds"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// RoomDetail 单个房间的完整视图
type RoomDetail struct {
	RoomSummary
	Members    []MemberInfo         `json:"members"`
	InUseIDs   []PlayerID           `json:"inUseIds"`
	Tiles      TileSnapshot         `json:"tiles"`
	Spawns     map[string]SpawnSlot `json:"spawns"`
	State      StateSnapshot        `json:"state"`
	Violations []string             `json:"violations,omitempty"`
	Metrics    map[string]any       `json:"metrics"`
}

func summarize(r *Room, s *Session) RoomSummary {
	return RoomSummary{
		RoomID:       r.ID,
		Name:         r.ID,
		Clients:      s.MemberCount(),
		MaxClients:   Capacity,
		AvailableIDs: s.AvailableIDs(),
		CreatedAt:    r.CreatedAt,
	}
}

// HandleRooms GET /colyseus/api/rooms
func HandleRooms(rm *RoomManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make([]RoomSummary, 0)
		for _, room := range rm.Rooms() {
			var sum RoomSummary
			if err := room.Do(func(s *Session) { sum = summarize(room, s) }); err != nil {
				// 房间刚好销毁
				continue
			}
			out = append(out, sum)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleRoomDetail GET /colyseus/api/rooms/{id}
func HandleRoomDetail(rm *RoomManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, ok := rm.Room(r.PathValue("id"))
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		var detail RoomDetail
		err := room.Do(func(s *Session) {
			detail = RoomDetail{
				RoomSummary: summarize(room, s),
				Members:     s.Members(),
				InUseIDs:    s.InUseIDs(),
				Tiles:       s.TileSnapshot(),
				Spawns:      s.Spawns(),
				State:       s.StateSnapshot(),
			}
			for _, e := range multierr.Errors(s.Verify()) {
				detail.Violations = append(detail.Violations, e.Error())
			}
		})
		if err != nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		detail.Metrics = room.Metrics().Snapshot()
		writeJSON(w, http.StatusOK, detail)
	}
}
