package pacing

import (
	"context"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-netshaper/internal/core/throttle"
	throttleif "github.com/dep2p/go-netshaper/pkg/interfaces/throttle"
	"github.com/dep2p/go-netshaper/pkg/lib/log"
)

var logger = log.Logger("core/pacing")

// ============================================================================
//                              Pacer
// ============================================================================

// SleepFunc 可取消的休眠
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer 连接节奏控制器
//
// 所有连接共享一个 Pacer；状态全部在注册表的节流器中。
type Pacer struct {
	registry *throttle.Registry
	config   Config

	sleep  SleepFunc
	random func() float64
}

// Option Pacer 选项
type Option func(*Pacer)

// WithSleeper 替换休眠实现（测试中推进模拟时钟）
func WithSleeper(fn SleepFunc) Option {
	return func(p *Pacer) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// WithRand 替换 [0, 1) 随机数来源
func WithRand(fn func() float64) Option {
	return func(p *Pacer) {
		if fn != nil {
			p.random = fn
		}
	}
}

// NewPacer 创建 Pacer
func NewPacer(registry *throttle.Registry, cfg Config, opts ...Option) (*Pacer, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	p := &Pacer{
		registry: registry,
		config:   cfg.normalize(),
		sleep:    ClockSleeper(registry.Clock()),
		random:   rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ClockSleeper 基于时间源的可取消休眠
func ClockSleeper(c clock.Clock) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		timer := c.Timer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Registry 返回节流器注册表
func (p *Pacer) Registry() *throttle.Registry { return p.registry }

// Config 返回生效配置
func (p *Pacer) Config() Config { return p.config }

// ==================== 发送 ====================

// BeforeSend 在发送 n 字节前阻塞建议的时长，然后记账
//
// 等价于 Pace 之后 AccountSent(n)。取消或超出 kill 上限时不记账。
func (p *Pacer) BeforeSend(ctx context.Context, n int) error {
	if err := p.Pace(ctx, n); err != nil {
		return err
	}
	p.registry.Out().HandleTrafficTCP(n)
	return nil
}

// Pace 按发送 n 字节的建议延迟阻塞，不记账
//
// 每轮休眠前检查 ctx，取消时返回 ctx.Err()。
// 已达到 kill 上限时立即返回 ErrKillLimitExceeded。
// 只在测量时持有 out 锁，休眠期间其他连接可以继续记账。
func (p *Pacer) Pace(ctx context.Context, n int) error {
	out := p.registry.Out()

	if out.KillLimitReached() {
		return ErrKillLimitExceeded
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay := out.SleepTimeAfterTick(n)
		if delay <= 0 {
			return nil
		}

		d := p.jitter(delay)
		logger.Debug("节流休眠", "packet", n, "delay", delay, "sleep", d)
		p.registry.Observer().OnPacingSleep(throttleif.CategoryOut.String(), d)

		if err := p.sleep(ctx, d); err != nil {
			return err
		}
	}
}

// AccountSent 记录实际发出的 n 字节
func (p *Pacer) AccountSent(n int) {
	if n <= 0 {
		return
	}
	p.registry.Out().HandleTrafficTCP(n)
}

// jitter 抖动后的休眠时长
func (p *Pacer) jitter(delay time.Duration) time.Duration {
	factor := p.config.JitterMin + p.random()*(p.config.JitterMax-p.config.JitterMin)
	extra := time.Duration(p.random() * float64(p.config.ExtraDelayMax))
	return time.Duration(float64(delay)*factor) + extra
}

// ObserveWrite 记录一次写入耗时
//
// 超过 LagThreshold 时计入 out 节流器过热。
func (p *Pacer) ObserveWrite(elapsed time.Duration) {
	if p.config.LagThreshold <= 0 || elapsed <= p.config.LagThreshold {
		return
	}
	logger.Debug("写入滞后", "elapsed", elapsed, "threshold", p.config.LagThreshold)
	p.registry.Out().SetOverheat(elapsed)
}

// ==================== 接收 ====================

// AfterReceive 记录接收到的 n 字节，不阻塞
func (p *Pacer) AfterReceive(n int) {
	if n <= 0 {
		return
	}
	p.registry.In().HandleTrafficTCP(n)
}

// ==================== 数据请求 ====================

// RecordRequest 记录一次请求了 n 字节的数据请求
func (p *Pacer) RecordRequest(n int) {
	if n <= 0 {
		return
	}
	p.registry.InRequest().HandleTrafficTCP(n)
}

// RecommendedRequestSize 当前建议的数据请求大小（字节）
func (p *Pacer) RecommendedRequestSize() uint64 {
	return p.registry.InRequest().RecommendedSizeAfterTick()
}
