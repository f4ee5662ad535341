package netshaper

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-netshaper/internal/core/pacing"
	"github.com/dep2p/go-netshaper/internal/core/throttle"
	throttleif "github.com/dep2p/go-netshaper/pkg/interfaces/throttle"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：throttle → pacing → 用户 Fx 选项。
func buildFxApp(o *options, s *Shaper) (*fx.App, error) {
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	throttleCfg := o.config.Throttle.ToRuntime()
	pacingCfg := o.config.Pacing.ToRuntime()

	modules := []fx.Option{
		// Fx 自身事件日志静默
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),

		fx.Supply(&throttleCfg),
		fx.Supply(&pacingCfg),
	}

	if o.clock != nil {
		c := o.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return c }))
	}
	if o.registerer != nil {
		reg := o.registerer
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return reg }))
	}
	if o.observer != nil {
		obs := o.observer
		modules = append(modules, fx.Provide(
			fx.Annotate(
				func() throttleif.Observer { return obs },
				fx.ResultTags(`name:"throttle_observer"`),
			),
		))
	}
	if o.sleeper != nil {
		sleep := o.sleeper
		modules = append(modules, fx.Provide(func() pacing.SleepFunc { return sleep }))
	}

	modules = append(modules,
		throttle.Module(),
		pacing.Module(),
		fx.Populate(&s.registry, &s.pacer),
	)
	modules = append(modules, o.fxOptions...)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}

	fxLogger.Debug("Fx 应用构建完成",
		"up", throttleCfg.UpLimit,
		"down", throttleCfg.DownLimit,
		"metrics", o.registerer != nil)
	return app, nil
}
