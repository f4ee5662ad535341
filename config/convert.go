package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保持默认值。
//
// 示例 JSON:
//
//	{
//	  "throttle": {"up_limit_kbps": 512, "kill_limit_mb": 1024},
//	  "pacing": {"lag_threshold": "500ms"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return FromJSON(data)
}

// ToJSON 将配置序列化为带缩进的 JSON
func ToJSON(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "default": 恢复默认节流参数
//   - "unlimited": 不限速，仅记账
//   - "constrained": 低带宽链路，启用过热与滞后检测
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch presetName {
	case "default":
		cfg.Throttle = DefaultThrottleConfig()
		cfg.Pacing = DefaultPacingConfig()
	case "unlimited":
		applyUnlimitedPreset(cfg)
	case "constrained":
		applyConstrainedPreset(cfg)
	case "":
		// 空预设，不做任何操作
	default:
		return fmt.Errorf("unknown preset: %s", presetName)
	}
	return nil
}

// applyUnlimitedPreset 不限速预设
func applyUnlimitedPreset(cfg *Config) {
	cfg.Throttle.UpLimitKBps = 0
	cfg.Throttle.DownLimitKBps = 0
	cfg.Throttle.KillLimitMB = 0
}

// applyConstrainedPreset 低带宽链路预设
func applyConstrainedPreset(cfg *Config) {
	cfg.Throttle.UpLimitKBps = 128
	cfg.Throttle.DownLimitKBps = 512
	cfg.Throttle.OverheatWeight = 1
	cfg.Pacing.LagThreshold = Duration(500 * time.Millisecond)
}

// CloneConfig 深拷贝配置
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	clone := *cfg
	return &clone
}
