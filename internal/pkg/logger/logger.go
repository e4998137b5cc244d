package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewDefault 根据配置的级别创建标准输出上的 slog Logger。
//
// 参数:
//
//	level: 日志级别字符串: debug / info / warn / error（无法识别时用 info）
//
// 返回值:
//
//	*slog.Logger: 初始化完成的日志记录器
func NewDefault(level string) *slog.Logger {
	var lv slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lv = slog.LevelDebug
	case "warn", "warning":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lv})
	return slog.New(handler)
}
