package throttle

import (
	"math"
	"time"
)

// ============================================================================
//                              估计算法
// ============================================================================

// 多时间跨度策略使用的固定窗口
const (
	// sleepShortWindow 延迟估计的短窗口（槽位）
	sleepShortWindow = 5

	// recommendShortWindow 建议大小的短窗口（槽位）
	recommendShortWindow = 8
)

// 延迟混合权重：偏向“回到目标速率”项，同时计入待发送的包
const (
	weightWithoutPacket = 0.75
	weightWithPacket    = 0.25
)

// Estimate 单个窗口跨度上的估计结果
type Estimate struct {
	// AvgSpeed 窗口平均速率（字节/秒，仅诊断）
	AvgSpeed float64

	// Window 实际使用的窗口长度 W（秒）
	Window float64

	// Delay 建议延迟（秒），负值表示无需节流
	Delay float64

	// Recommended 当前可安全传输的字节数（可能为负）
	Recommended float64
}

// Estimate 计算给定包大小与窗口跨度下的估计值
//
// forceWindow <= 0 表示使用完整窗口。forceWindow 只缩短 W，E 仍为整个窗口之和，
// 因此短跨度上的旧突发同样计入。不修改状态，但读取窗口，需持有锁。
// 冷启动（尚未 tick）返回零值。
func (t *Throttle) Estimate(packetSize int, forceWindow int) Estimate {
	if !t.anyPacketYet {
		return Estimate{}
	}

	effective := t.windowSize
	if forceWindow > 0 && forceWindow < effective {
		effective = forceWindow
	}

	// 当前槽位尚未结束，因此 -1，再加上当前槽位内已经过的时间
	windowLen := float64(effective-1)*t.slotSize +
		(t.lastSampleTime - float64(t.slotOf(t.lastSampleTime))*t.slotSize)

	passed := t.seconds() - t.startTime
	w := math.Max(math.Min(windowLen, passed), t.slotSize)

	e := float64(t.history.Total())
	est := Estimate{
		AvgSpeed: e / w,
		Window:   w,
	}

	m := t.targetSpeed
	if m <= 0 {
		est.Recommended = float64(t.maxSegment)
		return est
	}

	eNow := e + float64(packetSize)
	d1 := (e - m*w) / m
	d2 := (eNow - m*w) / m
	est.Delay = weightWithoutPacket*d1 + weightWithPacket*d2 + t.overheatWeight*t.currentOverheat()

	good := math.Min(3, math.Max(1, float64(effective)/2))
	if w > good {
		est.Recommended = m*w - e
	} else {
		est.Recommended = m - e
	}
	return est
}

// delayWindows 延迟估计使用的三个窗口跨度
func (t *Throttle) delayWindows() [3]int {
	return [3]int{t.windowSize, t.windowSize / 2, sleepShortWindow}
}

// recommendWindows 建议大小使用的三个窗口跨度
func (t *Throttle) recommendWindows() [3]int {
	return [3]int{t.windowSize, t.windowSize / 2, recommendShortWindow}
}

// SleepTime 发送 packetSize 字节前的建议延迟
//
// 取完整窗口、半窗口与 5 槽位窗口三者中的最大延迟，负值截为 0。
func (t *Throttle) SleepTime(packetSize int) time.Duration {
	return secondsToDuration(t.sleepSeconds(packetSize))
}

func (t *Throttle) sleepSeconds(packetSize int) float64 {
	maxDelay := 0.0
	for _, w := range t.delayWindows() {
		if d := t.Estimate(packetSize, w).Delay; d > maxDelay {
			maxDelay = d
		}
	}
	return maxDelay
}

// SleepTimeAfterTick 先 tick 再计算 SleepTime
func (t *Throttle) SleepTimeAfterTick(packetSize int) time.Duration {
	t.Tick()
	return t.SleepTime(packetSize)
}

// RecommendedSizeForWindow 指定窗口跨度下的建议传输大小
//
// 结果加回每包开销并截断到 [0, maxSegment]。冷启动返回 0。
func (t *Throttle) RecommendedSizeForWindow(forceWindow int) uint64 {
	if !t.anyPacketYet {
		return 0
	}
	r := t.Estimate(0, forceWindow).Recommended + float64(t.perPacketOverhead)
	if r < 0 {
		r = 0
	}
	if r > float64(t.maxSegment) {
		r = float64(t.maxSegment)
	}
	return uint64(r)
}

// RecommendedSize 建议传输大小
//
// 取完整窗口、半窗口与 8 槽位窗口三者中的最小值。
func (t *Throttle) RecommendedSize() uint64 {
	windows := t.recommendWindows()
	minSize := t.RecommendedSizeForWindow(windows[0])
	for _, w := range windows[1:] {
		if r := t.RecommendedSizeForWindow(w); r < minSize {
			minSize = r
		}
	}
	return minSize
}

// RecommendedSizeAfterTick 先 tick 再计算 RecommendedSize
func (t *Throttle) RecommendedSizeAfterTick() uint64 {
	t.Tick()
	return t.RecommendedSize()
}
