package pacing

import "errors"

var (
	// ErrKillLimitExceeded 累计流量已达到 kill 上限
	ErrKillLimitExceeded = errors.New("pacing: kill limit exceeded")

	// ErrNilConn 连接为空
	ErrNilConn = errors.New("pacing: nil connection")

	// ErrNilPacer Pacer 为空
	ErrNilPacer = errors.New("pacing: nil pacer")

	// ErrNilRegistry 注册表为空
	ErrNilRegistry = errors.New("pacing: nil throttle registry")

	// ErrTOSUnsupported 连接不支持设置 IP TOS
	ErrTOSUnsupported = errors.New("pacing: type of service unsupported on connection")
)
