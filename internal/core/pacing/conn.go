package pacing

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
//                              节流连接
// ============================================================================

// Conn 带节奏控制的连接
//
// Write 先经过 Pace，写出后按实际字节数记账；Read 之后调用 AfterReceive。
// Close 会取消正在进行的节流休眠。
type Conn struct {
	net.Conn

	pacer  *Pacer
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	lastSendStart time.Time

	sent     atomic.Uint64
	received atomic.Uint64
}

// WrapConn 包装连接
//
// 注册表中的默认 TOS 非 0 时应用到新连接；设置失败只记录日志。
func WrapConn(ctx context.Context, p *Pacer, c net.Conn) (*Conn, error) {
	if c == nil {
		return nil, ErrNilConn
	}
	if p == nil {
		return nil, ErrNilPacer
	}

	if tos := p.registry.TypeOfServiceFlag(); tos != 0 {
		if err := ApplyTypeOfService(c, tos); err != nil {
			logger.Warn("设置 TOS 失败", "remote", c.RemoteAddr(), "tos", tos, "err", err)
		}
	}

	cctx, cancel := context.WithCancel(ctx)
	return &Conn{
		Conn:   c,
		pacer:  p,
		ctx:    cctx,
		cancel: cancel,
	}, nil
}

// Write 节流后写入
//
// 按 len(b) 计算延迟，但只记账实际写出的字节，短写后的重试不会重复计数。
func (c *Conn) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return c.Conn.Write(b)
	}
	if err := c.pacer.Pace(c.ctx, len(b)); err != nil {
		return 0, err
	}

	clk := c.pacer.registry.Clock()
	start := clk.Now()
	c.mu.Lock()
	c.lastSendStart = start
	c.mu.Unlock()

	n, err := c.Conn.Write(b)
	if n > 0 {
		c.sent.Add(uint64(n))
		c.pacer.AccountSent(n)
	}
	c.pacer.ObserveWrite(clk.Since(start))
	return n, err
}

// Read 读取后记账
func (c *Conn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.received.Add(uint64(n))
		c.pacer.AfterReceive(n)
	}
	return n, err
}

// Close 关闭连接并中止节流休眠
func (c *Conn) Close() error {
	c.cancel()
	return c.Conn.Close()
}

// LastSendStart 最近一次发送的开始时间（仅诊断）
func (c *Conn) LastSendStart() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSendStart
}

// BytesSent 该连接累计写入字节数
func (c *Conn) BytesSent() uint64 { return c.sent.Load() }

// BytesReceived 该连接累计读取字节数
func (c *Conn) BytesReceived() uint64 { return c.received.Load() }

// Unwrap 返回底层连接
func (c *Conn) Unwrap() net.Conn { return c.Conn }

var _ net.Conn = (*Conn)(nil)
