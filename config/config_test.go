package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, uint64(2048), cfg.Throttle.UpLimitKBps)
	assert.Equal(t, uint64(8192), cfg.Throttle.DownLimitKBps)
	assert.Equal(t, 10, cfg.Throttle.WindowSize)
	assert.Equal(t, 300*time.Millisecond, cfg.Pacing.ExtraDelayMax.Duration())

	t.Log("✅ NewConfig 测试通过")
}

// TestConfig_ValidateCollectsAllErrors 测试验证汇总全部错误
func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := NewConfig()
	cfg.Throttle.WindowSize = 0
	cfg.Throttle.TypeOfService = 300
	cfg.Pacing.JitterMax = 0.1
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
	assert.Contains(t, err.Error(), "window_size")
	assert.Contains(t, err.Error(), "type_of_service")
	assert.Contains(t, err.Error(), "jitter_max")
	assert.Contains(t, err.Error(), "listen_addr")

	t.Log("✅ Config.Validate 测试通过")
}

// TestThrottleConfig 测试节流器配置
func TestThrottleConfig(t *testing.T) {
	t.Run("ToRuntime", func(t *testing.T) {
		cfg := DefaultThrottleConfig()
		cfg.UpLimitKBps = 100
		cfg.DownLimitKBps = 0
		cfg.KillLimitMB = 7
		cfg.ReportInterval = Duration(time.Second)

		rt := cfg.ToRuntime()
		assert.Equal(t, uint64(100*1024), rt.UpLimit)
		assert.Equal(t, uint64(0), rt.DownLimit)
		assert.Equal(t, uint64(7), rt.KillLimitMB)
		assert.Equal(t, time.Second, rt.ReportInterval)
		assert.Equal(t, cfg.WindowSize, rt.WindowSize)
	})

	t.Run("Validate_NegativeValues", func(t *testing.T) {
		cfg := DefaultThrottleConfig()
		cfg.OverheatWeight = -1
		cfg.MaxSegment = 0
		cfg.ReportInterval = Duration(-time.Second)

		err := cfg.Validate()
		assert.Len(t, multierr.Errors(err), 3)
	})

	t.Log("✅ ThrottleConfig 测试通过")
}

// TestPacingConfig 测试节奏控制配置
func TestPacingConfig(t *testing.T) {
	cfg := DefaultPacingConfig()
	cfg.LagThreshold = Duration(250 * time.Millisecond)

	rt := cfg.ToRuntime()
	assert.Equal(t, 0.5, rt.JitterMin)
	assert.Equal(t, 1.5, rt.JitterMax)
	assert.Equal(t, 250*time.Millisecond, rt.LagThreshold)

	cfg.ExtraDelayMax = Duration(-1)
	assert.Error(t, cfg.Validate())

	t.Log("✅ PacingConfig 测试通过")
}

// TestMetricsConfig 测试指标配置
func TestMetricsConfig(t *testing.T) {
	cfg := DefaultMetricsConfig()
	assert.NoError(t, cfg.Validate(), "禁用时不校验")

	cfg.Enabled = true
	assert.NoError(t, cfg.Validate())

	cfg.Path = "metrics"
	assert.Error(t, cfg.Validate())
}

// TestDuration_JSON 测试时长解析
func TestDuration_JSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"字符串", `"500ms"`, 500 * time.Millisecond, false},
		{"纳秒", `1000000000`, time.Second, false},
		{"空字符串", `""`, 0, false},
		{"非法字符串", `"abc"`, 0, true},
		{"非法类型", `true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration())
		})
	}

	data, err := Duration(1500 * time.Millisecond).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(data))
}

// TestFromJSON 测试 JSON 加载
func TestFromJSON(t *testing.T) {
	data := []byte(`{
		"throttle": {"up_limit_kbps": 512, "kill_limit_mb": 1024},
		"pacing": {"lag_threshold": "500ms"}
	}`)

	cfg, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, uint64(512), cfg.Throttle.UpLimitKBps)
	assert.Equal(t, uint64(1024), cfg.Throttle.KillLimitMB)
	assert.Equal(t, uint64(8192), cfg.Throttle.DownLimitKBps, "未出现的字段保持默认值")
	assert.Equal(t, 500*time.Millisecond, cfg.Pacing.LagThreshold.Duration())

	_, err = FromJSON([]byte(`{"throttle":`))
	assert.Error(t, err)

	t.Log("✅ FromJSON 测试通过")
}

// TestLoadFile_RoundTrip 测试文件读写
func TestLoadFile_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Throttle.TypeOfService = 0x10
	cfg.Throttle.ReportInterval = Duration(5 * time.Second)

	data, err := ToJSON(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"report_interval": "5s"`)

	path := filepath.Join(t.TempDir(), "netshaper.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = ToJSON(nil)
	assert.Error(t, err)
}

// TestApplyPreset 测试预设
func TestApplyPreset(t *testing.T) {
	t.Run("unlimited", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Throttle.KillLimitMB = 10
		require.NoError(t, ApplyPreset(cfg, "unlimited"))
		assert.Equal(t, uint64(0), cfg.Throttle.UpLimitKBps)
		assert.Equal(t, uint64(0), cfg.Throttle.DownLimitKBps)
		assert.Equal(t, uint64(0), cfg.Throttle.KillLimitMB)
	})

	t.Run("constrained", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, ApplyPreset(cfg, "constrained"))
		assert.Equal(t, uint64(128), cfg.Throttle.UpLimitKBps)
		assert.Equal(t, 1.0, cfg.Throttle.OverheatWeight)
		assert.Equal(t, 500*time.Millisecond, cfg.Pacing.LagThreshold.Duration())
		assert.NoError(t, cfg.Validate())
	})

	t.Run("default", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Throttle.UpLimitKBps = 1
		require.NoError(t, ApplyPreset(cfg, "default"))
		assert.Equal(t, DefaultThrottleConfig(), cfg.Throttle)
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, ApplyPreset(NewConfig(), "turbo"))
		assert.Error(t, ApplyPreset(nil, "default"))
		assert.NoError(t, ApplyPreset(NewConfig(), ""))
	})

	t.Log("✅ ApplyPreset 测试通过")
}

// TestValidateAndFix 测试自动修复
func TestValidateAndFix(t *testing.T) {
	cfg := NewConfig()
	cfg.Throttle.WindowSize = 0
	cfg.Pacing.JitterMin, cfg.Pacing.JitterMax = 2, 1
	cfg.Pacing.LagThreshold = Duration(-time.Second)

	fixed, err := ValidateAndFix(cfg)
	require.NoError(t, err)
	assert.Equal(t, 10, fixed.Throttle.WindowSize)
	assert.Equal(t, 1.0, fixed.Pacing.JitterMin)
	assert.Equal(t, 2.0, fixed.Pacing.JitterMax)
	assert.Equal(t, Duration(0), fixed.Pacing.LagThreshold)

	fresh, err := ValidateAndFix(nil)
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), fresh)

	assert.Panics(t, func() { MustValidate(nil) })
}

// TestCloneConfig 测试配置拷贝
func TestCloneConfig(t *testing.T) {
	cfg := NewConfig()
	clone := CloneConfig(cfg)
	clone.Throttle.UpLimitKBps = 1

	assert.Equal(t, uint64(2048), cfg.Throttle.UpLimitKBps)
	assert.Nil(t, CloneConfig(nil))
}
