package throttle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
//                              Window 测试
// ============================================================================

func TestWindow_AddAndRotate(t *testing.T) {
	w := NewWindow(4)
	require.Equal(t, 4, w.Len())

	w.Add(100)
	w.Add(50)
	assert.Equal(t, uint64(150), w.At(0).Size)

	w.Rotate()
	w.Add(10)
	assert.Equal(t, []uint64{10, 150, 0, 0}, w.Snapshot())

	w.Rotate()
	w.Rotate()
	w.Rotate()
	assert.Equal(t, []uint64{0, 0, 0, 10}, w.Snapshot(), "最旧槽位被丢弃")
	assert.Equal(t, 4, w.Len(), "长度保持不变")
}

func TestWindow_Total(t *testing.T) {
	w := NewWindow(5)
	for i := 0; i < 5; i++ {
		w.Rotate()
		w.Add(uint64(i + 1))
	}
	// 最新在前：5 4 3 2 1
	assert.Equal(t, uint64(15), w.Total())

	w.Rotate()
	assert.Equal(t, uint64(14), w.Total(), "最旧槽位滑出")
}

func TestWindow_Reset(t *testing.T) {
	w := NewWindow(3)
	w.Add(42)
	w.Rotate()
	w.Add(7)

	w.Reset()
	assert.Equal(t, []uint64{0, 0, 0}, w.Snapshot())
	assert.Equal(t, 3, w.Len())
}

func TestWindow_SnapshotIsCopy(t *testing.T) {
	w := NewWindow(2)
	w.Add(1)

	snap := w.Snapshot()
	snap[0] = 99
	assert.Equal(t, uint64(1), w.At(0).Size)
}

func TestWindow_SingleSlot(t *testing.T) {
	w := NewWindow(1)
	w.Add(5)
	w.Rotate()
	assert.Equal(t, []uint64{0}, w.Snapshot())
}
