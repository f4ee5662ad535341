// Package throttle 定义流量整形接口
//
// 流量整形模块负责：
//   - 基于滑动窗口（默认 10 个 1 秒槽位）的流量历史
//   - 发送前的建议延迟计算
//   - 建议请求大小计算
//   - 进程级共享的三个节流器（out / in / in-request）
//
// 延迟是建议性的，不是硬性准入控制（可选的 kill 上限除外）。
package throttle

import (
	"fmt"
	"time"
)

// ============================================================================
//                              流量类别
// ============================================================================

// Category 流量类别
//
// 类别集合固定：每个类别对应一个独立加锁的全局节流器。
type Category int

const (
	// CategoryOut 出站流量
	CategoryOut Category = iota
	// CategoryIn 入站流量
	CategoryIn
	// CategoryInRequest 入站数据请求
	CategoryInRequest

	// NumCategories 类别数量
	NumCategories = 3
)

// Categories 返回所有类别
func Categories() []Category {
	return []Category{CategoryOut, CategoryIn, CategoryInRequest}
}

// Valid 检查类别是否有效
func (c Category) Valid() bool {
	return c >= CategoryOut && c < NumCategories
}

// String 返回类别短名
func (c Category) String() string {
	switch c {
	case CategoryOut:
		return "out"
	case CategoryIn:
		return "in"
	case CategoryInRequest:
		return "inreq"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Name 返回类别的诊断名称
func (c Category) Name() string {
	switch c {
	case CategoryOut:
		return "overall upload"
	case CategoryIn:
		return "overall download"
	case CategoryInRequest:
		return "download requests"
	default:
		return c.String()
	}
}

// ============================================================================
//                              配置
// ============================================================================

// 默认值
const (
	// DefaultWindowSize 默认窗口槽位数
	DefaultWindowSize = 10

	// DefaultPerPacketOverhead 每个包附加的协议开销（字节）
	DefaultPerPacketOverhead = 128

	// DefaultMinimalSegment 记账包大小下限（字节）
	DefaultMinimalSegment = 256

	// DefaultMaxSegment 建议传输大小上限（字节）
	DefaultMaxSegment = 1024 * 1024

	// DefaultTargetSpeed 未配置时单个节流器的目标速率（字节/秒）
	DefaultTargetSpeed = 16 * 1024
)

// Config 节流器运行时配置
type Config struct {
	// WindowSize 窗口槽位数（>= 1）
	WindowSize int

	// UpLimit 出站目标速率（字节/秒，0 = 不限制）
	UpLimit uint64

	// DownLimit 入站与入站请求目标速率（字节/秒，0 = 不限制）
	DownLimit uint64

	// KillLimitMB 硬性流量上限（MB，0 = 禁用）
	KillLimitMB uint64

	// OverheatWeight 过热延迟项权重（0 = 仅计算不生效）
	OverheatWeight float64

	// PerPacketOverhead 每包开销（字节）
	PerPacketOverhead int

	// MinimalSegment 记账包大小下限（字节）
	MinimalSegment int

	// MaxSegment 建议传输大小上限（字节）
	MaxSegment int

	// TypeOfService 新连接默认 IP TOS 标记（0 = 不设置）
	TypeOfService int

	// ReportInterval 周期性采样间隔（0 = 不启用）
	//
	// 周期性 tick 所有节流器并通知 Observer，空闲时也能观察到窗口衰减。
	ReportInterval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		WindowSize:        DefaultWindowSize,
		UpLimit:           2048 * 1024,
		DownLimit:         8192 * 1024,
		KillLimitMB:       0,
		OverheatWeight:    0,
		PerPacketOverhead: DefaultPerPacketOverhead,
		MinimalSegment:    DefaultMinimalSegment,
		MaxSegment:        DefaultMaxSegment,
		TypeOfService:     0,
		ReportInterval:    0,
	}
}

// ============================================================================
//                              观察者
// ============================================================================

// Snapshot 节流器状态快照
type Snapshot struct {
	// Name 节流器诊断名称
	Name string

	// ShortName 节流器短名（与 Category.String 对应）
	ShortName string

	// History 窗口内各槽位字节数，下标 0 为当前槽位
	History []uint64

	// WindowBytes 窗口内总字节数
	WindowBytes uint64

	// TotalBytes 自启动以来累计记账字节数
	TotalBytes uint64

	// AvgSpeed 窗口平均速率（字节/秒）
	AvgSpeed float64

	// TargetSpeed 目标速率（字节/秒，0 = 不限制）
	TargetSpeed float64

	// Delay 全窗口估计延迟（秒，可能为负）
	Delay float64

	// Overheat 当前过热值（秒）
	Overheat float64
}

// Observer 节流器观察者
//
// 替代历史曲线绘制的外部导出点。实现必须轻量且并发安全。
type Observer interface {
	// OnSample 每次记账或周期采样后调用
	//
	// 在节流器锁内调用，不能回调节流器。
	OnSample(s Snapshot)

	// OnPacingSleep 发送前节流休眠时调用（锁外）
	OnPacingSleep(shortName string, d time.Duration)
}

// NopObserver 空观察者
type NopObserver struct{}

// OnSample 实现 Observer
func (NopObserver) OnSample(Snapshot) {}

// OnPacingSleep 实现 Observer
func (NopObserver) OnPacingSleep(string, time.Duration) {}

var _ Observer = NopObserver{}

// MultiObserver 将事件分发给多个观察者
type MultiObserver []Observer

// OnSample 实现 Observer
func (m MultiObserver) OnSample(s Snapshot) {
	for _, o := range m {
		o.OnSample(s)
	}
}

// OnPacingSleep 实现 Observer
func (m MultiObserver) OnPacingSleep(shortName string, d time.Duration) {
	for _, o := range m {
		o.OnPacingSleep(shortName, d)
	}
}

var _ Observer = MultiObserver{}
