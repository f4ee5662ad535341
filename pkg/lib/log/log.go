// Package log 提供 netshaper 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，提供简洁的日志 API。
// 日志级别可通过环境变量 NETSHAPER_LOG_LEVEL（debug/info/warn/error）
// 或运行时 SetLevel 调整。
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// EnvLogLevel 日志级别环境变量
const EnvLogLevel = "NETSHAPER_LOG_LEVEL"

var (
	// level 全局日志级别，所有 logger 共享
	level = new(slog.LevelVar)

	defaultMu     sync.RWMutex
	defaultLogger *slog.Logger
)

// ParseLevel 解析日志级别字符串
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLevel 设置全局日志级别
//
// 对已创建的 logger 立即生效。
func SetLevel(l slog.Level) {
	level.Set(l)
}

// GetLevel 返回当前全局日志级别
func GetLevel() slog.Level {
	return level.Level()
}

// SetOutput 设置日志输出目标
//
// 重新创建默认 logger，将输出重定向到指定的 Writer。
func SetOutput(w io.Writer) {
	SetDefault(New(w))
}

// SetDefault 设置默认 logger
func SetDefault(l *slog.Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default 返回默认 logger
func Default() *slog.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// New 创建共享全局级别的文本 logger
func New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard 返回一个丢弃所有日志的 Logger
//
// 主要用于测试。
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都从 Default() 获取最新的 logger，
// 支持在运行时动态切换日志输出目标。
//
// 使用方式：
//
//	var logger = log.Logger("core/throttle")
//	logger.Info("limit changed", "limit", v)
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) logger() *slog.Logger {
	return Default().With("component", l.component)
}

// Enabled 判断指定级别是否会输出
//
// 用于在构造昂贵的日志参数前提前判断。
func (l *LazyLogger) Enabled(lvl slog.Level) bool {
	return Default().Enabled(context.Background(), lvl)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.logger().Debug(msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.logger().Info(msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.logger().Warn(msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.logger().Error(msg, args...)
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger().DebugContext(ctx, msg, args...)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.logger().With(args...)
}

// discardHandler 丢弃所有日志的 Handler
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// ============================================================================
//                              初始化
// ============================================================================

func init() {
	level.Set(LevelInfo)
	if v := os.Getenv(EnvLogLevel); v != "" {
		if l, err := ParseLevel(v); err == nil {
			level.Set(l)
		}
	}
	defaultLogger = New(os.Stderr)
}
