package throttle

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	throttleif "github.com/dep2p/go-netshaper/pkg/interfaces/throttle"
	"github.com/dep2p/go-netshaper/pkg/lib/log"
)

var logger = log.Logger("core/throttle")

// bytesPerMB kill 上限的单位
const bytesPerMB = 1024 * 1024

// ============================================================================
//                              节流器
// ============================================================================

// Throttle 滑动窗口节流器
//
// 持有一个流量窗口和目标速率配置，实现 tick / 记账 / 估计算法。
// 每个流量类别一个实例。非并发安全：跨 goroutine 共享时必须通过 Guard 访问。
type Throttle struct {
	name      string
	shortName string

	windowSize int
	slotSize   float64 // 秒，固定为 1
	history    *Window

	targetSpeed  float64 // 字节/秒，<= 0 表示不限制
	targetKillMB uint64

	startTime      float64
	lastSampleTime float64
	anyPacketYet   bool

	overheat       float64
	overheatTime   float64
	overheatWeight float64

	perPacketOverhead int
	minimalSegment    int
	maxSegment        int

	totalBytes uint64

	clock    clock.Clock
	observer throttleif.Observer

	// 每包日志采样，避免高频记账刷屏
	logSample rate.Sometimes
}

// Option 节流器选项
type Option func(*Throttle)

// WithClock 设置时间源（测试中使用 clock.NewMock）
func WithClock(c clock.Clock) Option {
	return func(t *Throttle) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithObserver 设置观察者
func WithObserver(o throttleif.Observer) Option {
	return func(t *Throttle) {
		if o != nil {
			t.observer = o
		}
	}
}

// WithTargetSpeed 设置初始目标速率（字节/秒）
func WithTargetSpeed(bytesPerSec uint64) Option {
	return func(t *Throttle) {
		t.targetSpeed = float64(bytesPerSec)
	}
}

// WithOverheatWeight 设置过热延迟项权重
func WithOverheatWeight(w float64) Option {
	return func(t *Throttle) {
		t.overheatWeight = w
	}
}

// WithSegments 设置每包开销、记账下限与建议上限（非正值保持默认）
func WithSegments(perPacketOverhead, minimalSegment, maxSegment int) Option {
	return func(t *Throttle) {
		if perPacketOverhead >= 0 {
			t.perPacketOverhead = perPacketOverhead
		}
		if minimalSegment > 0 {
			t.minimalSegment = minimalSegment
		}
		if maxSegment > 0 {
			t.maxSegment = maxSegment
		}
	}
}

// New 创建节流器
//
// windowSize 必须 >= 1，否则返回 ErrInvalidWindowSize。
func New(shortName, name string, windowSize int, opts ...Option) (*Throttle, error) {
	if windowSize < 1 {
		return nil, ErrInvalidWindowSize
	}

	t := &Throttle{
		name:              name,
		shortName:         shortName,
		windowSize:        windowSize,
		slotSize:          1.0,
		history:           NewWindow(windowSize),
		targetSpeed:       throttleif.DefaultTargetSpeed,
		perPacketOverhead: throttleif.DefaultPerPacketOverhead,
		minimalSegment:    throttleif.DefaultMinimalSegment,
		maxSegment:        throttleif.DefaultMaxSegment,
		clock:             clock.New(),
		observer:          throttleif.NopObserver{},
		logSample:         rate.Sometimes{Interval: time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// ==================== 基本信息 ====================

// Name 返回诊断名称
func (t *Throttle) Name() string { return t.name }

// ShortName 返回短名
func (t *Throttle) ShortName() string { return t.shortName }

// WindowSize 返回窗口槽位数
func (t *Throttle) WindowSize() int { return t.windowSize }

// AnyPacketYet 是否已经 tick 过
func (t *Throttle) AnyPacketYet() bool { return t.anyPacketYet }

// History 返回窗口各槽位字节数的副本
func (t *Throttle) History() []uint64 { return t.history.Snapshot() }

// TargetSpeed 返回目标速率（字节/秒）
func (t *Throttle) TargetSpeed() uint64 {
	if t.targetSpeed <= 0 {
		return 0
	}
	return uint64(t.targetSpeed)
}

// TargetKill 返回 kill 上限（MB）
func (t *Throttle) TargetKill() uint64 { return t.targetKillMB }

// TotalBytes 返回累计记账字节数
func (t *Throttle) TotalBytes() uint64 { return t.totalBytes }

// Now 返回节流器时间源的当前时间
func (t *Throttle) Now() time.Time { return t.clock.Now() }

// ==================== 配置 ====================

// SetTargetSpeed 设置目标速率（字节/秒，0 = 不限制）
//
// 从下一次估计开始生效，不回溯历史。
func (t *Throttle) SetTargetSpeed(bytesPerSec uint64) {
	t.targetSpeed = float64(bytesPerSec)
	logger.Info("Setting LIMIT", "throttle", t.shortName, "kbps", bytesPerSec/1024)
}

// SetTargetKill 设置硬性流量上限（MB，0 = 禁用）
func (t *Throttle) SetTargetKill(mb uint64) {
	t.targetKillMB = mb
	logger.Info("Setting KILL", "throttle", t.shortName, "mb", mb)
}

// SetOverheatWeight 设置过热延迟项权重
func (t *Throttle) SetOverheatWeight(w float64) {
	t.overheatWeight = w
}

// KillLimitReached 累计流量是否已达到 kill 上限
func (t *Throttle) KillLimitReached() bool {
	if t.targetKillMB == 0 {
		return false
	}
	return t.totalBytes >= t.targetKillMB*bytesPerMB
}

// ==================== 时间推进 ====================

// Tick 将窗口推进到当前时间
//
// 每经过一个槽位边界旋转一次，用空槽位填补空闲间隔。
// 间隔达到整个窗口时一次性清空，旋转次数有上界。
// 时间倒退时窗口与 lastSampleTime 保持不变。
func (t *Throttle) Tick() {
	now := t.seconds()

	if !t.anyPacketYet {
		t.startTime = now
		t.lastSampleTime = now
		t.anyPacketYet = true
		t.history.Reset()
		return
	}

	if now < t.lastSampleTime {
		return
	}

	gap := t.slotOf(now) - t.slotOf(t.lastSampleTime)
	if gap >= int64(t.windowSize) {
		t.history.Reset()
	} else {
		for i := int64(0); i < gap; i++ {
			t.history.Rotate()
		}
	}
	t.lastSampleTime = now
}

// ==================== 记账 ====================

// HandleTrafficTCP 记录一个 TCP 包
//
// 记账大小 = max(minimalSegment, size + perPacketOverhead)。
func (t *Throttle) HandleTrafficTCP(size int) {
	all := size + t.perPacketOverhead
	if all < t.minimalSegment {
		all = t.minimalSegment
	}
	t.account(all, size)
}

// HandleTrafficExact 按原始大小记录流量
func (t *Throttle) HandleTrafficExact(size int) {
	t.account(size, size)
}

func (t *Throttle) account(packetSize, originalSize int) {
	if packetSize < 0 {
		packetSize = 0
	}

	t.Tick()
	est := t.Estimate(packetSize, 0)
	t.history.Add(uint64(packetSize))
	t.totalBytes += uint64(packetSize)

	t.logSample.Do(func() {
		if !logger.Enabled(log.LevelDebug) {
			return
		}
		logger.Debug("throttle packet",
			"throttle", t.name,
			"packet", packetSize,
			"original", originalSize,
			"avgKiBps", int64(est.AvgSpeed/1024),
			"limitKiBps", int64(t.targetSpeed/1024),
			"history", t.history.Snapshot())
	})

	t.observer.OnSample(t.snapshotWith(est))
}

// ==================== 过热 ====================

// CurrentOverheat 返回线性衰减后的过热值
func (t *Throttle) CurrentOverheat() time.Duration {
	return secondsToDuration(t.currentOverheat())
}

func (t *Throttle) currentOverheat() float64 {
	o := t.overheat - (t.seconds() - t.overheatTime)
	if o < 0 {
		return 0
	}
	return o
}

// SetOverheat 将 lag 累加到过热值上，并重置过热时间戳
//
// 累加的是未衰减的原值；衰减从新的时间戳重新开始计算。
func (t *Throttle) SetOverheat(lag time.Duration) {
	t.overheat += lag.Seconds()
	t.overheatTime = t.seconds()
	logger.Debug("overheat", "throttle", t.shortName, "lag", lag, "overheat", t.overheat)
}

// ==================== 快照 ====================

// Snapshot 返回当前状态快照
//
// 不会 tick；需要最新窗口时先调用 Tick。
func (t *Throttle) Snapshot() throttleif.Snapshot {
	return t.snapshotWith(t.Estimate(0, 0))
}

// Publish 推进窗口并通知观察者
//
// 冷启动的节流器不 tick，只发布零值快照。
func (t *Throttle) Publish() {
	if t.anyPacketYet {
		t.Tick()
	}
	t.observer.OnSample(t.Snapshot())
}

func (t *Throttle) snapshotWith(est Estimate) throttleif.Snapshot {
	return throttleif.Snapshot{
		Name:        t.name,
		ShortName:   t.shortName,
		History:     t.history.Snapshot(),
		WindowBytes: t.history.Total(),
		TotalBytes:  t.totalBytes,
		AvgSpeed:    est.AvgSpeed,
		TargetSpeed: math.Max(t.targetSpeed, 0),
		Delay:       est.Delay,
		Overheat:    t.currentOverheat(),
	}
}

// ==================== 时间工具 ====================

func (t *Throttle) seconds() float64 {
	return float64(t.clock.Now().UnixNano()) / float64(time.Second)
}

func (t *Throttle) slotOf(sec float64) int64 {
	return int64(math.Floor(sec / t.slotSize))
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
