package config

import (
	"fmt"

	"go.uber.org/multierr"

	throttleif "github.com/dep2p/go-netshaper/pkg/interfaces/throttle"
)

// ThrottleConfig 节流器配置
//
// 速率以 KiB/s 为单位，0 表示不限制。
type ThrottleConfig struct {
	// UpLimitKBps 出站速率上限
	// 默认值: 2048
	UpLimitKBps uint64 `json:"up_limit_kbps"`

	// DownLimitKBps 入站（含入站请求）速率上限
	// 默认值: 8192
	DownLimitKBps uint64 `json:"down_limit_kbps"`

	// KillLimitMB 累计流量硬上限（0 = 禁用）
	// 默认值: 0
	KillLimitMB uint64 `json:"kill_limit_mb"`

	// WindowSize 窗口槽位数（每槽 1 秒）
	// 默认值: 10
	WindowSize int `json:"window_size"`

	// OverheatWeight 过热延迟项权重
	// 默认值: 0
	OverheatWeight float64 `json:"overheat_weight"`

	// PerPacketOverhead 每包协议开销（字节）
	// 默认值: 128
	PerPacketOverhead int `json:"per_packet_overhead"`

	// MinimalSegment 记账包大小下限（字节）
	// 默认值: 256
	MinimalSegment int `json:"minimal_segment"`

	// MaxSegment 建议传输大小上限（字节）
	// 默认值: 1048576
	MaxSegment int `json:"max_segment"`

	// TypeOfService 新连接 IP TOS 标记（0 = 不设置）
	// 默认值: 0
	TypeOfService int `json:"type_of_service"`

	// ReportInterval 周期采样间隔（0 = 禁用）
	// 默认值: 0
	ReportInterval Duration `json:"report_interval"`
}

// DefaultThrottleConfig 返回默认的节流器配置
func DefaultThrottleConfig() ThrottleConfig {
	rt := throttleif.DefaultConfig()
	return ThrottleConfig{
		UpLimitKBps:       rt.UpLimit / 1024,
		DownLimitKBps:     rt.DownLimit / 1024,
		KillLimitMB:       rt.KillLimitMB,
		WindowSize:        rt.WindowSize,
		OverheatWeight:    rt.OverheatWeight,
		PerPacketOverhead: rt.PerPacketOverhead,
		MinimalSegment:    rt.MinimalSegment,
		MaxSegment:        rt.MaxSegment,
		TypeOfService:     rt.TypeOfService,
		ReportInterval:    Duration(rt.ReportInterval),
	}
}

// Validate 验证节流器配置
func (c *ThrottleConfig) Validate() error {
	var err error
	if c.WindowSize < 1 {
		err = multierr.Append(err, fmt.Errorf("throttle.window_size must be >= 1, got %d", c.WindowSize))
	}
	if c.OverheatWeight < 0 {
		err = multierr.Append(err, fmt.Errorf("throttle.overheat_weight must be >= 0, got %v", c.OverheatWeight))
	}
	if c.PerPacketOverhead < 0 {
		err = multierr.Append(err, fmt.Errorf("throttle.per_packet_overhead must be >= 0, got %d", c.PerPacketOverhead))
	}
	if c.MinimalSegment < 0 {
		err = multierr.Append(err, fmt.Errorf("throttle.minimal_segment must be >= 0, got %d", c.MinimalSegment))
	}
	if c.MaxSegment <= 0 {
		err = multierr.Append(err, fmt.Errorf("throttle.max_segment must be > 0, got %d", c.MaxSegment))
	}
	if c.TypeOfService < 0 || c.TypeOfService > 0xff {
		err = multierr.Append(err, fmt.Errorf("throttle.type_of_service must be in [0, 255], got %d", c.TypeOfService))
	}
	if c.ReportInterval < 0 {
		err = multierr.Append(err, fmt.Errorf("throttle.report_interval must be >= 0, got %s", c.ReportInterval))
	}
	return err
}

// ToRuntime 转换为节流器运行时配置
func (c *ThrottleConfig) ToRuntime() throttleif.Config {
	return throttleif.Config{
		WindowSize:        c.WindowSize,
		UpLimit:           c.UpLimitKBps * 1024,
		DownLimit:         c.DownLimitKBps * 1024,
		KillLimitMB:       c.KillLimitMB,
		OverheatWeight:    c.OverheatWeight,
		PerPacketOverhead: c.PerPacketOverhead,
		MinimalSegment:    c.MinimalSegment,
		MaxSegment:        c.MaxSegment,
		TypeOfService:     c.TypeOfService,
		ReportInterval:    c.ReportInterval.Duration(),
	}
}
