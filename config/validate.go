package config

import "errors"

// ValidateAll 验证整个配置的有效性
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并修复可自动修复的问题
//
//   - 窗口槽位数 < 1 -> 默认值
//   - 抖动上限小于下限 -> 交换
//   - 负的时长 -> 0
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	if c.Throttle.WindowSize < 1 {
		c.Throttle.WindowSize = DefaultThrottleConfig().WindowSize
	}
	if c.Throttle.MaxSegment <= 0 {
		c.Throttle.MaxSegment = DefaultThrottleConfig().MaxSegment
	}
	if c.Throttle.ReportInterval < 0 {
		c.Throttle.ReportInterval = 0
	}
	if c.Pacing.JitterMax < c.Pacing.JitterMin {
		c.Pacing.JitterMin, c.Pacing.JitterMax = c.Pacing.JitterMax, c.Pacing.JitterMin
	}
	if c.Pacing.ExtraDelayMax < 0 {
		c.Pacing.ExtraDelayMax = 0
	}
	if c.Pacing.LagThreshold < 0 {
		c.Pacing.LagThreshold = 0
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustValidate 验证配置，失败时 panic
func MustValidate(c *Config) {
	if err := ValidateAll(c); err != nil {
		panic("invalid config: " + err.Error())
	}
}
