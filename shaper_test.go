package netshaper

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/dep2p/go-netshaper/config"
	"github.com/dep2p/go-netshaper/internal/core/throttle"
)

// ════════════════════════════════════════════════════════════════════════════
//                              测试辅助
// ════════════════════════════════════════════════════════════════════════════

type countingObserver struct {
	mu      sync.Mutex
	samples int
	sleeps  int
}

func (c *countingObserver) OnSample(Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples++
}

func (c *countingObserver) OnPacingSleep(string, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps++
}

func (c *countingObserver) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samples, c.sleeps
}

func newTestShaper(t *testing.T, opts ...Option) (*Shaper, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	opts = append([]Option{
		WithClock(mock),
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			mock.Add(d)
			return ctx.Err()
		}),
	}, opts...)

	s, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s, mock
}

// ════════════════════════════════════════════════════════════════════════════
//                              构造
// ════════════════════════════════════════════════════════════════════════════

func TestNew_Defaults(t *testing.T) {
	s, _ := newTestShaper(t)
	require.NotNil(t, s.Registry())
	require.NotNil(t, s.Pacer())

	s.Registry().Out().Do(func(th *throttle.Throttle) {
		assert.Equal(t, uint64(2048*1024), th.TargetSpeed())
	})
	s.Registry().InRequest().Do(func(th *throttle.Throttle) {
		assert.Equal(t, uint64(8192*1024), th.TargetSpeed())
	})
}

func TestNew_OptionErrorsCombined(t *testing.T) {
	_, err := New(
		WithWindowSize(0),
		WithPreset("turbo"),
		WithConfig(nil),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidWindowSize)
	assert.Contains(t, err.Error(), "unknown preset")
	assert.Contains(t, err.Error(), "config is nil")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Throttle.TypeOfService = 1000

	_, err := New(WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestNew_WithConfigIsCopied(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Throttle.UpLimitKBps = 1

	s, _ := newTestShaper(t, WithConfig(cfg), WithUpLimit(3))
	cfg.Throttle.UpLimitKBps = 99

	s.Registry().Out().Do(func(th *throttle.Throttle) {
		assert.Equal(t, uint64(3*1024), th.TargetSpeed())
	})
}

func TestNew_FxOptionPassthrough(t *testing.T) {
	var registry *throttle.Registry
	s, _ := newTestShaper(t, WithFxOption(fx.Populate(&registry)))
	assert.Same(t, s.Registry(), registry)
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

func TestShaper_StartStop(t *testing.T) {
	s, _ := newTestShaper(t)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, s.Stop(ctx), ErrClosed)
	assert.ErrorIs(t, s.Start(ctx), ErrClosed)
	assert.ErrorIs(t, s.BeforeSend(ctx, 10), ErrClosed)

	_, err := s.WrapConn(nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestShaper_StopWithoutStart(t *testing.T) {
	s, _ := newTestShaper(t)
	require.NoError(t, s.Stop(context.Background()))
}

func TestStart_Shortcut(t *testing.T) {
	s, err := Start(context.Background(), WithPreset("unlimited"))
	require.NoError(t, err)
	require.NoError(t, s.Stop(context.Background()))
}

// ════════════════════════════════════════════════════════════════════════════
//                              整形钩子
// ════════════════════════════════════════════════════════════════════════════

func TestShaper_HooksAccountTraffic(t *testing.T) {
	s, _ := newTestShaper(t, WithPreset("unlimited"))
	ctx := context.Background()

	require.NoError(t, s.BeforeSend(ctx, 1000))
	s.AfterReceive(500)
	s.RecordRequest(100)

	out, err := s.Snapshot(CategoryOut)
	require.NoError(t, err)
	assert.Equal(t, uint64(1128), out.TotalBytes)

	in, err := s.Snapshot(CategoryIn)
	require.NoError(t, err)
	assert.Equal(t, uint64(628), in.TotalBytes)

	snaps := s.Snapshots()
	assert.Equal(t, uint64(256), snaps[CategoryInRequest].TotalBytes)

	_, err = s.Snapshot(Category(9))
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestShaper_BeforeSendPaces(t *testing.T) {
	obs := &countingObserver{}
	s, mock := newTestShaper(t, WithUpLimit(1), WithObserver(obs))
	ctx := context.Background()

	start := mock.Now()
	require.NoError(t, s.BeforeSend(ctx, 4096))
	require.NoError(t, s.BeforeSend(ctx, 4096))

	_, sleeps := obs.counts()
	assert.Greater(t, sleeps, 0)
	assert.Greater(t, mock.Since(start), time.Second)
}

func TestShaper_KillLimit(t *testing.T) {
	s, _ := newTestShaper(t, WithPreset("unlimited"), WithKillLimit(1))
	ctx := context.Background()

	require.NoError(t, s.BeforeSend(ctx, 1<<20))
	assert.ErrorIs(t, s.BeforeSend(ctx, 1), ErrKillLimitExceeded)
}

func TestShaper_StopAbortsPendingSend(t *testing.T) {
	// 默认休眠等待模拟时钟定时器，时钟不推进则一直阻塞
	mock := clock.NewMock()
	s, err := New(WithClock(mock), WithUpLimit(1))
	require.NoError(t, err)

	s.Registry().Out().HandleTrafficTCP(1 << 20)

	errCh := make(chan error, 1)
	go func() { errCh <- s.BeforeSend(context.Background(), 100) }()

	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-errCh:
		t.Fatalf("BeforeSend 提前返回: %v", err)
	default:
	}

	require.NoError(t, s.Stop(context.Background()))
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop 未中止节流休眠")
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置入口
// ════════════════════════════════════════════════════════════════════════════

func TestShaper_SetLimits(t *testing.T) {
	s, _ := newTestShaper(t)

	s.SetSendLimit(1000)
	s.SetReceiveLimit(2000)
	s.SetKillLimit(3)

	snaps := s.Snapshots()
	assert.Equal(t, float64(1000), snaps[CategoryOut].TargetSpeed)
	assert.Equal(t, float64(2000), snaps[CategoryIn].TargetSpeed)
	assert.Equal(t, float64(2000), snaps[CategoryInRequest].TargetSpeed)

	s.Registry().In().Do(func(th *throttle.Throttle) {
		assert.Equal(t, uint64(3), th.TargetKill())
	})
}

func TestShaper_TypeOfService(t *testing.T) {
	s, _ := newTestShaper(t, WithTypeOfService(0x08))
	assert.Equal(t, 0x08, s.TypeOfServiceFlag())

	s.SetTypeOfServiceFlag(0x10)
	assert.Equal(t, 0x10, s.TypeOfServiceFlag())
}

func TestShaper_RecommendedRequestSize(t *testing.T) {
	s, _ := newTestShaper(t, WithDownLimit(1))
	assert.Equal(t, uint64(0), s.RecommendedRequestSize())

	s.RecordRequest(100)
	// 1024 - 256 + 128
	assert.Equal(t, uint64(896), s.RecommendedRequestSize())
}

func TestShaper_WrapConn(t *testing.T) {
	s, _ := newTestShaper(t, WithPreset("unlimited"))

	a, b := net.Pipe()
	defer b.Close()

	conn, err := s.WrapConn(a)
	require.NoError(t, err)
	defer conn.Close()

	go func() {
		_, _ = conn.Write([]byte("ping"))
	}()

	buf := make([]byte, 4)
	_, err = io.ReadFull(b, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	require.Eventually(t, func() bool {
		snap, _ := s.Snapshot(CategoryOut)
		return snap.TotalBytes == 256
	}, time.Second, 10*time.Millisecond)

	_, err = s.WrapConn(nil)
	assert.ErrorIs(t, err, ErrNilConn)
}

// ════════════════════════════════════════════════════════════════════════════
//                              指标
// ════════════════════════════════════════════════════════════════════════════

func TestShaper_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, _ := newTestShaper(t, WithMetrics(reg), WithPreset("unlimited"))

	require.NoError(t, s.BeforeSend(context.Background(), 1000))

	count, err := testutil.GatherAndCount(reg, "netshaper_throttle_accounted_bytes")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = New(WithMetrics(nil))
	assert.Error(t, err)
}
