package throttle

import "errors"

var (
	// ErrInvalidWindowSize 窗口槽位数必须 >= 1
	ErrInvalidWindowSize = errors.New("throttle: window size must be at least 1")

	// ErrInvalidCategory 未知的流量类别
	ErrInvalidCategory = errors.New("throttle: invalid category")
)
