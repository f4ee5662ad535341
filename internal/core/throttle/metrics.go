package throttle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	throttleif "github.com/dep2p/go-netshaper/pkg/interfaces/throttle"
)

// ============================================================================
//                              Prometheus 观察者
// ============================================================================

// Metrics 将节流器状态导出为 Prometheus 指标
//
// 按节流器短名（out / in / inreq）打标签。
type Metrics struct {
	windowBytes    *prometheus.GaugeVec
	avgSpeed       *prometheus.GaugeVec
	targetSpeed    *prometheus.GaugeVec
	estimatedDelay *prometheus.GaugeVec
	overheat       *prometheus.GaugeVec
	accounted      *prometheus.GaugeVec
	pacingSleep    *prometheus.HistogramVec
}

var _ throttleif.Observer = (*Metrics)(nil)

// NewMetrics 创建并注册指标
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	labels := []string{"throttle"}
	m := &Metrics{
		windowBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throttle_window_bytes",
			Help:      "Bytes accounted in the current sliding window",
		}, labels),
		avgSpeed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throttle_average_speed_bytes",
			Help:      "Average speed over the sliding window in bytes per second",
		}, labels),
		targetSpeed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throttle_target_speed_bytes",
			Help:      "Configured target speed in bytes per second (0 = unlimited)",
		}, labels),
		estimatedDelay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throttle_estimated_delay_seconds",
			Help:      "Full window delay estimate, negative when under target",
		}, labels),
		overheat: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throttle_overheat_seconds",
			Help:      "Current decayed overheat penalty",
		}, labels),
		accounted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throttle_accounted_bytes",
			Help:      "Bytes accounted since start",
		}, labels),
		pacingSleep: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "throttle_pacing_sleep_seconds",
			Help:      "Sleep durations imposed before sends",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
		}, labels),
	}

	err := multierr.Combine(
		reg.Register(m.windowBytes),
		reg.Register(m.avgSpeed),
		reg.Register(m.targetSpeed),
		reg.Register(m.estimatedDelay),
		reg.Register(m.overheat),
		reg.Register(m.accounted),
		reg.Register(m.pacingSleep),
	)
	return m, err
}

// OnSample 实现 Observer
func (m *Metrics) OnSample(s throttleif.Snapshot) {
	m.windowBytes.WithLabelValues(s.ShortName).Set(float64(s.WindowBytes))
	m.avgSpeed.WithLabelValues(s.ShortName).Set(s.AvgSpeed)
	m.targetSpeed.WithLabelValues(s.ShortName).Set(s.TargetSpeed)
	m.estimatedDelay.WithLabelValues(s.ShortName).Set(s.Delay)
	m.overheat.WithLabelValues(s.ShortName).Set(s.Overheat)
	m.accounted.WithLabelValues(s.ShortName).Set(float64(s.TotalBytes))
}

// OnPacingSleep 实现 Observer
func (m *Metrics) OnPacingSleep(shortName string, d time.Duration) {
	m.pacingSleep.WithLabelValues(shortName).Observe(d.Seconds())
}
