package config

import "errors"

// MetricsConfig 指标导出配置
type MetricsConfig struct {
	// Enabled 是否导出 Prometheus 指标
	// 默认值: false
	Enabled bool `json:"enabled"`

	// ListenAddr HTTP 监听地址（仅命令行工具使用）
	// 默认值: "127.0.0.1:9464"
	ListenAddr string `json:"listen_addr"`

	// Path 指标路径
	// 默认值: "/metrics"
	Path string `json:"path"`
}

// DefaultMetricsConfig 返回默认的指标导出配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:    false,
		ListenAddr: "127.0.0.1:9464",
		Path:       "/metrics",
	}
}

// Validate 验证指标导出配置
func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ListenAddr == "" {
		return errors.New("metrics.listen_addr is required when metrics are enabled")
	}
	if c.Path == "" || c.Path[0] != '/' {
		return errors.New("metrics.path must start with '/'")
	}
	return nil
}
