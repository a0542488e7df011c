package logger

import (
	"io"
	"log/slog"
	"strings"
	"sync"
)

// 决策服务请求/响应原文落盘，方便排查 schema/post_validation 失败。
// 每条记录带 stage/direction/bytes 结构化字段，正文跟在字段后面，
// 便于按阶段 grep 定位某一次往返。

var (
	dumpMu      sync.Mutex
	dumpOut     io.Writer
	dumpLog     *slog.Logger
	dumpEnabled bool
)

func SetDumpWriter(w io.Writer) {
	dumpMu.Lock()
	defer dumpMu.Unlock()
	dumpOut = w
	if w == nil {
		dumpLog = nil
		return
	}
	dumpLog = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func EnablePayloadDump(enabled bool) {
	dumpMu.Lock()
	dumpEnabled = enabled
	dumpMu.Unlock()
}

// DumpPayload 记录一次与外部服务的往返原文。direction 取 "request"/"response"。
func DumpPayload(stage, direction, body string) {
	dumpMu.Lock()
	target := dumpLog
	out := dumpOut
	enabled := dumpEnabled
	dumpMu.Unlock()
	if target == nil || !enabled {
		return
	}
	text := strings.TrimSpace(body)
	if text == "" {
		return
	}
	target.Info("payload",
		slog.String("stage", stage),
		slog.String("direction", direction),
		slog.Int("bytes", len(text)),
	)
	io.WriteString(out, text+"\n=====\n")
}
