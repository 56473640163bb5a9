package server

import (
	"net/http"
)

// NewMux 注册全部 HTTP 路由
func NewMux(rm *RoomManager, auth *Authenticator) *http.ServeMux {
	cfg := rm.Config()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Instance ID => " + cfg.Env.InstanceID))
	})
	mux.HandleFunc("GET /ws", HandleWS(rm, auth))

	// 监控
	mux.HandleFunc("GET /colyseus/api/rooms", HandleRooms(rm))
	mux.HandleFunc("GET /colyseus/api/rooms/{id}", HandleRoomDetail(rm))
	mux.Handle("GET /playground/", http.StripPrefix("/playground/", PlaygroundHandler()))

	// 身份
	mux.HandleFunc("POST /auth/register", auth.HandleRegister)
	mux.HandleFunc("POST /auth/login", auth.HandleLogin)
	mux.HandleFunc("POST /auth/anonymous", auth.HandleAnonymous)
	mux.HandleFunc("GET /auth/userdata", auth.HandleUserData)

	// 管理与监控接口
	mux.HandleFunc("/admin/config", HandleAdminConfig(rm))
	mux.HandleFunc("GET /metrics", HandleMetrics(rm))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
