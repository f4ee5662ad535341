// Package config 提供 netshaper 的统一配置
//
// 配置分为三部分，每部分在独立文件中定义：
//   - Throttle: 滑动窗口节流器（速率上限、kill 上限、窗口、过热）
//   - Pacing: 连接节奏控制（抖动、滞后检测）
//   - Metrics: Prometheus 指标导出
//
// 使用示例：
//
//	// 默认配置
//	cfg := config.NewConfig()
//	cfg.Throttle.UpLimitKBps = 512
//
//	// 应用预设
//	config.ApplyPreset(cfg, "constrained")
//
//	// 从文件加载
//	cfg, err := config.LoadFile("netshaper.json")
package config

import "go.uber.org/multierr"

// Config 是 netshaper 的完整配置结构
type Config struct {
	// Throttle 节流器配置
	Throttle ThrottleConfig `json:"throttle"`

	// Pacing 节奏控制配置
	Pacing PacingConfig `json:"pacing"`

	// Metrics 指标导出配置
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Throttle: DefaultThrottleConfig(),
		Pacing:   DefaultPacingConfig(),
		Metrics:  DefaultMetricsConfig(),
	}
}

// Validate 验证所有子配置，汇总全部错误
func (c *Config) Validate() error {
	return multierr.Combine(
		c.Throttle.Validate(),
		c.Pacing.Validate(),
		c.Metrics.Validate(),
	)
}
