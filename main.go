package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crossroads/server"
)

// crossroads 入口：加载配置，启动 HTTP + WebSocket 服务
func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// 使用第三方 zap 日志库写入滚动日志文件
	if err := server.InitLogger(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer server.SyncLogger()

	rm := server.NewRoomManager(cfg)
	auth := server.NewAuthenticator(cfg.Env, server.NewMemoryUserStore())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewMux(rm, auth),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		server.Log.Infof("crossroads listening on %s; instance=%s", cfg.Server.Addr, cfg.Env.InstanceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// 先停止接受新连接，再断开所有玩家
	if err := srv.Shutdown(ctx); err != nil {
		server.Log.Warnf("http shutdown: %v", err)
	}
	rm.Shutdown()
}
