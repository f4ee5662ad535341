package throttle

import (
	"sync"
	"time"

	throttleif "github.com/dep2p/go-netshaper/pkg/interfaces/throttle"
)

// Guard 互斥保护的节流器单元
//
// 每个全局节流器一把锁，不同类别之间互不竞争。
// 一次决策中的 tick 与估计/记账必须在同一个临界区内完成；
// 节流休眠必须在锁外进行（见 pacing 包的“锁内测量、锁外休眠、再测量”协议）。
type Guard struct {
	mu sync.Mutex
	t  *Throttle
}

// NewGuard 用互斥锁包装节流器
func NewGuard(t *Throttle) *Guard {
	return &Guard{t: t}
}

// Do 在锁内执行 fn
//
// fn 不能阻塞，也不能再次调用同一个 Guard。
func (g *Guard) Do(fn func(t *Throttle)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g.t)
}

// SleepTimeAfterTick tick 并返回建议延迟
func (g *Guard) SleepTimeAfterTick(packetSize int) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.SleepTimeAfterTick(packetSize)
}

// HandleTrafficTCP 记录一个 TCP 包
func (g *Guard) HandleTrafficTCP(size int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.t.HandleTrafficTCP(size)
}

// RecommendedSizeAfterTick tick 并返回建议传输大小
func (g *Guard) RecommendedSizeAfterTick() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.RecommendedSizeAfterTick()
}

// KillLimitReached 是否已达到 kill 上限
func (g *Guard) KillLimitReached() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.KillLimitReached()
}

// SetTargetSpeed 设置目标速率
func (g *Guard) SetTargetSpeed(bytesPerSec uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.t.SetTargetSpeed(bytesPerSec)
}

// SetTargetKill 设置 kill 上限
func (g *Guard) SetTargetKill(mb uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.t.SetTargetKill(mb)
}

// SetOverheat 累加过热值
func (g *Guard) SetOverheat(lag time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.t.SetOverheat(lag)
}

// Now 返回节流器时间源的当前时间
func (g *Guard) Now() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.Now()
}

// Snapshot 推进窗口并返回状态快照
//
// 冷启动的节流器不会因为观察而被 tick。
func (g *Guard) Snapshot() throttleif.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.t.AnyPacketYet() {
		g.t.Tick()
	}
	return g.t.Snapshot()
}

// Publish 推进窗口并通知观察者
func (g *Guard) Publish() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.t.Publish()
}
