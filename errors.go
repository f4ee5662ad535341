package netshaper

import (
	"errors"

	"github.com/dep2p/go-netshaper/internal/core/pacing"
	"github.com/dep2p/go-netshaper/internal/core/throttle"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrAlreadyStarted 已启动
	ErrAlreadyStarted = errors.New("shaper already started")

	// ErrClosed 已停止
	ErrClosed = errors.New("shaper closed")

	// ────────────────────────────────────────────────────────────────────────
	// 整形错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrKillLimitExceeded 累计流量已达到 kill 上限
	ErrKillLimitExceeded = pacing.ErrKillLimitExceeded

	// ErrInvalidCategory 未知的流量类别
	ErrInvalidCategory = throttle.ErrInvalidCategory

	// ErrInvalidWindowSize 窗口槽位数必须 >= 1
	ErrInvalidWindowSize = throttle.ErrInvalidWindowSize

	// ErrNilConn 连接为空
	ErrNilConn = pacing.ErrNilConn
)
