package pacing

import "time"

// Config 节奏控制配置
type Config struct {
	// JitterMin 延迟抖动系数下限
	JitterMin float64

	// JitterMax 延迟抖动系数上限
	JitterMax float64

	// ExtraDelayMax 附加随机延迟上限
	ExtraDelayMax time.Duration

	// LagThreshold 单次写入耗时超过该值时计入 out 节流器过热（0 = 禁用）
	LagThreshold time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		JitterMin:     0.5,
		JitterMax:     1.5,
		ExtraDelayMax: 300 * time.Millisecond,
		LagThreshold:  0,
	}
}

// normalize 修正非法取值
func (c Config) normalize() Config {
	if c.JitterMin < 0 {
		c.JitterMin = 0
	}
	if c.JitterMax < c.JitterMin {
		c.JitterMax = c.JitterMin
	}
	if c.ExtraDelayMax < 0 {
		c.ExtraDelayMax = 0
	}
	if c.LagThreshold < 0 {
		c.LagThreshold = 0
	}
	return c
}
