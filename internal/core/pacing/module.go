package pacing

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-netshaper/internal/core/throttle"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Registry *throttle.Registry

	// Config 配置（可选）
	Config *Config `optional:"true"`

	// Sleeper 休眠实现（可选，默认使用注册表时间源）
	Sleeper SleepFunc `optional:"true"`
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Pacer *Pacer
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	config := DefaultConfig()
	if input.Config != nil {
		config = *input.Config
	}

	pacer, err := NewPacer(input.Registry, config, WithSleeper(input.Sleeper))
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Pacer: pacer}, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("pacing",
		fx.Provide(ProvideServices),
	)
}
