package throttle

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	throttleif "github.com/dep2p/go-netshaper/pkg/interfaces/throttle"
)

// ============================================================================
//                              节流器注册表
// ============================================================================

// Registry 全局节流器管理器
//
// 持有 out / in / in-request 三个节流器，每个由独立的 Guard 保护，
// 首次访问时通过 sync.Once 惰性创建。Registry 作为显式对象传递给每个连接，
// 保证“每个类别一个实例、所有连接共享”的语义，同时初始化顺序可控、可测试。
type Registry struct {
	config   throttleif.Config
	clock    clock.Clock
	observer throttleif.Observer

	once   [throttleif.NumCategories]sync.Once
	guards [throttleif.NumCategories]*Guard

	// tos 新连接默认 IP TOS 标记，最后一次写入生效
	tos atomic.Int32
}

// RegistryOption 注册表选项
type RegistryOption func(*Registry)

// WithRegistryClock 设置所有节流器的时间源
func WithRegistryClock(c clock.Clock) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithRegistryObserver 设置所有节流器的观察者
func WithRegistryObserver(o throttleif.Observer) RegistryOption {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// NewRegistry 创建注册表
//
// 提前校验窗口大小，保证惰性创建节流器时不会失败。
func NewRegistry(cfg throttleif.Config, opts ...RegistryOption) (*Registry, error) {
	if cfg.WindowSize < 1 {
		return nil, ErrInvalidWindowSize
	}

	r := &Registry{
		config:   cfg,
		clock:    clock.New(),
		observer: throttleif.NopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.tos.Store(int32(clampTypeOfService(cfg.TypeOfService)))
	return r, nil
}

// Get 返回指定类别的节流器
//
// 未知类别返回 nil。
func (r *Registry) Get(c throttleif.Category) *Guard {
	if !c.Valid() {
		return nil
	}
	r.once[c].Do(func() {
		r.guards[c] = NewGuard(r.build(c))
	})
	return r.guards[c]
}

// Lookup 与 Get 相同，未知类别返回 ErrInvalidCategory
func (r *Registry) Lookup(c throttleif.Category) (*Guard, error) {
	g := r.Get(c)
	if g == nil {
		return nil, ErrInvalidCategory
	}
	return g, nil
}

// Out 出站节流器
func (r *Registry) Out() *Guard { return r.Get(throttleif.CategoryOut) }

// In 入站节流器
func (r *Registry) In() *Guard { return r.Get(throttleif.CategoryIn) }

// InRequest 入站请求节流器
func (r *Registry) InRequest() *Guard { return r.Get(throttleif.CategoryInRequest) }

// Clock 返回注册表时间源
func (r *Registry) Clock() clock.Clock { return r.clock }

// Observer 返回注册表观察者
func (r *Registry) Observer() throttleif.Observer { return r.observer }

func (r *Registry) build(c throttleif.Category) *Throttle {
	speed := r.config.DownLimit
	if c == throttleif.CategoryOut {
		speed = r.config.UpLimit
	}

	t, err := New(c.String(), c.Name(), r.config.WindowSize,
		WithClock(r.clock),
		WithObserver(r.observer),
		WithTargetSpeed(speed),
		WithOverheatWeight(r.config.OverheatWeight),
		WithSegments(r.config.PerPacketOverhead, r.config.MinimalSegment, r.config.MaxSegment),
	)
	if err != nil {
		// NewRegistry 已校验窗口大小
		panic(err)
	}
	t.targetKillMB = r.config.KillLimitMB
	return t
}

// ==================== 配置入口 ====================

// SetRateUpLimit 设置出站目标速率（字节/秒）
func (r *Registry) SetRateUpLimit(bytesPerSec uint64) {
	r.Out().SetTargetSpeed(bytesPerSec)
}

// SetRateDownLimit 设置入站目标速率（字节/秒）
//
// 入站数据与入站请求共享同一上限。
func (r *Registry) SetRateDownLimit(bytesPerSec uint64) {
	r.In().SetTargetSpeed(bytesPerSec)
	r.InRequest().SetTargetSpeed(bytesPerSec)
}

// SetKillLimit 为所有类别设置 kill 上限（MB）
func (r *Registry) SetKillLimit(mb uint64) {
	for _, c := range throttleif.Categories() {
		r.Get(c).SetTargetKill(mb)
	}
}

// SetOverheatWeight 为所有类别设置过热权重
func (r *Registry) SetOverheatWeight(w float64) {
	for _, c := range throttleif.Categories() {
		r.Get(c).Do(func(t *Throttle) { t.SetOverheatWeight(w) })
	}
}

// maxTypeOfService IP TOS 字段为 8 位
const maxTypeOfService = 0xff

// SetTypeOfServiceFlag 设置新连接默认 IP TOS 标记
//
// 超出 [0, 255] 的值截断到边界并记录警告。
func (r *Registry) SetTypeOfServiceFlag(tos int) {
	r.tos.Store(int32(clampTypeOfService(tos)))
}

func clampTypeOfService(tos int) int {
	switch {
	case tos < 0:
		logger.Warn("TOS 超出范围，使用 0", "tos", tos)
		return 0
	case tos > maxTypeOfService:
		logger.Warn("TOS 超出范围，使用 255", "tos", tos)
		return maxTypeOfService
	default:
		return tos
	}
}

// TypeOfServiceFlag 返回新连接默认 IP TOS 标记
func (r *Registry) TypeOfServiceFlag() int {
	return int(r.tos.Load())
}

// ==================== 诊断 ====================

// Snapshots 返回所有类别的状态快照
func (r *Registry) Snapshots() map[throttleif.Category]throttleif.Snapshot {
	out := make(map[throttleif.Category]throttleif.Snapshot, throttleif.NumCategories)
	for _, c := range throttleif.Categories() {
		out[c] = r.Get(c).Snapshot()
	}
	return out
}

// Publish 推进所有节流器窗口并通知观察者
func (r *Registry) Publish() {
	for _, c := range throttleif.Categories() {
		r.Get(c).Publish()
	}
}
