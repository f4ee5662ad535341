package throttle

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	throttleif "github.com/dep2p/go-netshaper/pkg/interfaces/throttle"
)

// ============================================================================
//                              Metrics 测试
// ============================================================================

func TestMetrics_OnSample(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(MetricsNamespace, reg)
	require.NoError(t, err)

	cfg := throttleif.DefaultConfig()
	cfg.UpLimit = 4096
	r, err := NewRegistry(cfg, WithRegistryClock(clock.NewMock()), WithRegistryObserver(m))
	require.NoError(t, err)

	r.Out().HandleTrafficTCP(1000)

	assert.Equal(t, float64(1128), testutil.ToFloat64(m.windowBytes.WithLabelValues("out")))
	assert.Equal(t, float64(1128), testutil.ToFloat64(m.accounted.WithLabelValues("out")))
	assert.Equal(t, float64(4096), testutil.ToFloat64(m.targetSpeed.WithLabelValues("out")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.overheat.WithLabelValues("out")))
}

func TestMetrics_OnPacingSleep(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(MetricsNamespace, reg)
	require.NoError(t, err)

	m.OnPacingSleep("out", 200*time.Millisecond)
	m.OnPacingSleep("out", time.Second)

	assert.Equal(t, 1, testutil.CollectAndCount(m.pacingSleep))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(MetricsNamespace, reg)
	require.NoError(t, err)

	_, err = NewMetrics(MetricsNamespace, reg)
	assert.Error(t, err)
}

func TestMultiObserver(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	obs := throttleif.MultiObserver{a, b}

	obs.OnSample(throttleif.Snapshot{ShortName: "in"})
	obs.OnPacingSleep("out", time.Second)

	assert.Equal(t, 1, a.sampleCount())
	assert.Equal(t, 1, b.sampleCount())
	assert.Len(t, a.sleeps, 1)
	assert.Len(t, b.sleeps, 1)
}
