package server

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed playground
var playgroundFiles embed.FS

// PlaygroundHandler 内嵌的调试页面：连接房间、发送任意类型的消息、查看收到的帧
func PlaygroundHandler() http.Handler {
	sub, err := fs.Sub(playgroundFiles, "playground")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
