package netshaper

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-netshaper/config"
	"github.com/dep2p/go-netshaper/internal/core/pacing"
	throttleif "github.com/dep2p/go-netshaper/pkg/interfaces/throttle"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config *config.Config

	clock      clock.Clock
	registerer prometheus.Registerer
	observer   throttleif.Observer
	sleeper    pacing.SleepFunc

	// 用户自定义 Fx 选项
	fxOptions []fx.Option
}

func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置（覆盖此前的配置类选项）
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = config.CloneConfig(cfg)
		return nil
	}
}

// WithPreset 应用预设（"default" / "unlimited" / "constrained"）
func WithPreset(name string) Option {
	return func(o *options) error {
		return config.ApplyPreset(o.config, name)
	}
}

// WithUpLimit 设置出站速率上限（KiB/s，0 = 不限制）
func WithUpLimit(kbps uint64) Option {
	return func(o *options) error {
		o.config.Throttle.UpLimitKBps = kbps
		return nil
	}
}

// WithDownLimit 设置入站速率上限（KiB/s，0 = 不限制）
func WithDownLimit(kbps uint64) Option {
	return func(o *options) error {
		o.config.Throttle.DownLimitKBps = kbps
		return nil
	}
}

// WithKillLimit 设置累计流量硬上限（MB，0 = 禁用）
func WithKillLimit(mb uint64) Option {
	return func(o *options) error {
		o.config.Throttle.KillLimitMB = mb
		return nil
	}
}

// WithWindowSize 设置窗口槽位数
func WithWindowSize(slots int) Option {
	return func(o *options) error {
		if slots < 1 {
			return fmt.Errorf("window size %d: %w", slots, ErrInvalidWindowSize)
		}
		o.config.Throttle.WindowSize = slots
		return nil
	}
}

// WithTypeOfService 设置新连接默认 IP TOS 标记
func WithTypeOfService(tos int) Option {
	return func(o *options) error {
		o.config.Throttle.TypeOfService = tos
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              依赖注入
// ════════════════════════════════════════════════════════════════════════════

// WithClock 设置时间源（测试中使用 clock.NewMock）
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithMetrics 导出 Prometheus 指标到 reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) error {
		if reg == nil {
			return errors.New("prometheus registerer is nil")
		}
		o.registerer = reg
		o.config.Metrics.Enabled = true
		return nil
	}
}

// WithObserver 接入自定义观察者
func WithObserver(obs Observer) Option {
	return func(o *options) error {
		o.observer = obs
		return nil
	}
}

// WithSleeper 替换节流休眠实现
func WithSleeper(fn pacing.SleepFunc) Option {
	return func(o *options) error {
		o.sleeper = fn
		return nil
	}
}

// WithFxOption 追加自定义 Fx 选项
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
