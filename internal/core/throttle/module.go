package throttle

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	throttleif "github.com/dep2p/go-netshaper/pkg/interfaces/throttle"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// MetricsNamespace Prometheus 指标命名空间
const MetricsNamespace = "netshaper"

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 配置（可选）
	Config *throttleif.Config `optional:"true"`

	// Clock 时间源（可选）
	Clock clock.Clock `optional:"true"`

	// Registerer Prometheus 注册器（可选，提供时导出指标）
	Registerer prometheus.Registerer `optional:"true"`

	// Observer 额外观察者（可选）
	Observer throttleif.Observer `name:"throttle_observer" optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Registry 全局节流器注册表
	Registry *Registry
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	config := throttleif.DefaultConfig()
	if input.Config != nil {
		config = *input.Config
	}

	var observers throttleif.MultiObserver
	if input.Registerer != nil {
		m, err := NewMetrics(MetricsNamespace, input.Registerer)
		if err != nil {
			return ModuleOutput{}, err
		}
		observers = append(observers, m)
	}
	if input.Observer != nil {
		observers = append(observers, input.Observer)
	}

	opts := []RegistryOption{WithRegistryClock(input.Clock)}
	if len(observers) > 0 {
		opts = append(opts, WithRegistryObserver(observers))
	}

	registry, err := NewRegistry(config, opts...)
	if err != nil {
		return ModuleOutput{}, err
	}

	return ModuleOutput{
		Registry: registry,
	}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("throttle",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC       fx.Lifecycle
	Registry *Registry
	Config   *throttleif.Config `optional:"true"`
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	config := throttleif.DefaultConfig()
	if input.Config != nil {
		config = *input.Config
	}

	var stopReport chan struct{}
	var done chan struct{}

	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("流量整形模块启动",
				"up", config.UpLimit,
				"down", config.DownLimit,
				"killMB", config.KillLimitMB,
				"window", config.WindowSize)

			// 启动周期采样任务
			if config.ReportInterval > 0 {
				stopReport = make(chan struct{})
				done = make(chan struct{})
				ticker := input.Registry.Clock().Ticker(config.ReportInterval)
				go func() {
					defer close(done)
					defer ticker.Stop()

					for {
						select {
						case <-ticker.C:
							input.Registry.Publish()
						case <-stopReport:
							return
						}
					}
				}()
			}

			return nil
		},
		OnStop: func(_ context.Context) error {
			logger.Info("流量整形模块停止")

			// 停止采样任务
			if stopReport != nil {
				close(stopReport)
				<-done
			}

			return nil
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	Version     = "1.0.0"
	Name        = "throttle"
	Description = "流量整形模块，提供 out / in / in-request 三个全局滑动窗口节流器"
)
