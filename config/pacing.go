package config

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/dep2p/go-netshaper/internal/core/pacing"
)

// PacingConfig 连接节奏控制配置
type PacingConfig struct {
	// JitterMin 延迟抖动系数下限
	// 默认值: 0.5
	JitterMin float64 `json:"jitter_min"`

	// JitterMax 延迟抖动系数上限
	// 默认值: 1.5
	JitterMax float64 `json:"jitter_max"`

	// ExtraDelayMax 附加随机延迟上限
	// 默认值: 300ms
	ExtraDelayMax Duration `json:"extra_delay_max"`

	// LagThreshold 写入滞后阈值，超过时计入过热（0 = 禁用）
	// 默认值: 0
	LagThreshold Duration `json:"lag_threshold"`
}

// DefaultPacingConfig 返回默认的节奏控制配置
func DefaultPacingConfig() PacingConfig {
	rt := pacing.DefaultConfig()
	return PacingConfig{
		JitterMin:     rt.JitterMin,
		JitterMax:     rt.JitterMax,
		ExtraDelayMax: Duration(rt.ExtraDelayMax),
		LagThreshold:  Duration(rt.LagThreshold),
	}
}

// Validate 验证节奏控制配置
func (c *PacingConfig) Validate() error {
	var err error
	if c.JitterMin < 0 {
		err = multierr.Append(err, fmt.Errorf("pacing.jitter_min must be >= 0, got %v", c.JitterMin))
	}
	if c.JitterMax < c.JitterMin {
		err = multierr.Append(err, fmt.Errorf("pacing.jitter_max (%v) must be >= jitter_min (%v)", c.JitterMax, c.JitterMin))
	}
	if c.ExtraDelayMax < 0 {
		err = multierr.Append(err, fmt.Errorf("pacing.extra_delay_max must be >= 0, got %s", c.ExtraDelayMax))
	}
	if c.LagThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("pacing.lag_threshold must be >= 0, got %s", c.LagThreshold))
	}
	return err
}

// ToRuntime 转换为节奏控制运行时配置
func (c *PacingConfig) ToRuntime() pacing.Config {
	return pacing.Config{
		JitterMin:     c.JitterMin,
		JitterMax:     c.JitterMax,
		ExtraDelayMax: c.ExtraDelayMax.Duration(),
		LagThreshold:  c.LagThreshold.Duration(),
	}
}
