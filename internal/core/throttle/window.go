package throttle

// ============================================================================
//                              流量窗口
// ============================================================================

// Sample 单个槽位内累计的字节数
type Sample struct {
	Size uint64
}

// Window 固定长度的流量槽位环
//
// 下标 0 为当前（仍在累计的）槽位，下标越大越旧。
// 长度在整个生命周期内不变。非并发安全，调用方需持有所属节流器的锁。
type Window struct {
	samples []Sample
}

// NewWindow 创建 size 个槽位的窗口
func NewWindow(size int) *Window {
	return &Window{samples: make([]Sample, size)}
}

// Len 返回槽位数
func (w *Window) Len() int {
	return len(w.samples)
}

// Rotate 所有槽位向旧的方向移动一位，丢弃最旧槽位，插入新的空槽位
func (w *Window) Rotate() {
	copy(w.samples[1:], w.samples[:len(w.samples)-1])
	w.samples[0] = Sample{}
}

// Add 将字节数累加到当前槽位
func (w *Window) Add(bytes uint64) {
	w.samples[0].Size += bytes
}

// At 返回第 i 个槽位
func (w *Window) At(i int) Sample {
	return w.samples[i]
}

// Total 返回所有槽位之和
func (w *Window) Total() uint64 {
	var total uint64
	for _, s := range w.samples {
		total += s.Size
	}
	return total
}

// Reset 清空所有槽位
func (w *Window) Reset() {
	for i := range w.samples {
		w.samples[i] = Sample{}
	}
}

// Snapshot 返回各槽位字节数的副本
func (w *Window) Snapshot() []uint64 {
	out := make([]uint64, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.Size
	}
	return out
}
