package netshaper

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-netshaper/internal/core/pacing"
	"github.com/dep2p/go-netshaper/internal/core/throttle"
	"github.com/dep2p/go-netshaper/pkg/lib/log"
)

var (
	logger   = log.Logger("netshaper")
	fxLogger = log.Logger("netshaper/fx")
)

// startTimeout Fx App 启动/停止超时
const startTimeout = 30 * time.Second

// ════════════════════════════════════════════════════════════════════════════
//                              Shaper
// ════════════════════════════════════════════════════════════════════════════

// Shaper 进程级流量整形入口
//
// 持有三个共享节流器与连接节奏控制器。整形钩子在 New 之后即可使用；
// Start 仅启动周期采样等后台任务。Stop 之后钩子返回 ErrClosed。
type Shaper struct {
	mu      sync.Mutex
	started bool
	closed  bool

	app      *fx.App
	registry *throttle.Registry
	pacer    *pacing.Pacer

	// ctx 在 Stop 时取消，中止所有包装连接上的节流休眠
	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建 Shaper
//
// 所有选项都会执行，错误合并返回。
func New(opts ...Option) (*Shaper, error) {
	o := newOptions()

	var errs error
	for _, opt := range opts {
		errs = multierr.Append(errs, opt(o))
	}
	if errs != nil {
		return nil, fmt.Errorf("apply options: %w", errs)
	}

	s := &Shaper{}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	app, err := buildFxApp(o, s)
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	s.app = app

	return s, nil
}

// Start 快捷启动函数，等价于 New() + Start()
func Start(ctx context.Context, opts ...Option) (*Shaper, error) {
	s, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, fmt.Errorf("start shaper: %w", err)
	}
	return s, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Start 启动后台任务
func (s *Shaper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := s.app.Start(startCtx); err != nil {
		logger.Error("启动失败", "error", err)
		return fmt.Errorf("start failed: %w", err)
	}
	s.started = true
	logger.Info("流量整形已启动")
	return nil
}

// Stop 停止后台任务并中止所有进行中的节流休眠
//
// 未启动时直接关闭。重复调用返回 ErrClosed。
func (s *Shaper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.cancel()

	if !s.started {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := s.app.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop failed: %w", err)
	}
	logger.Info("流量整形已停止")
	return nil
}

func (s *Shaper) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ════════════════════════════════════════════════════════════════════════════
//                              整形钩子
// ════════════════════════════════════════════════════════════════════════════

// BeforeSend 在发送 n 字节前阻塞建议的时长，然后记账
//
// ctx 或 Shaper 被取消时中止等待。
func (s *Shaper) BeforeSend(ctx context.Context, n int) error {
	if s.isClosed() {
		return ErrClosed
	}
	ctx, cancel := mergeContext(ctx, s.ctx)
	defer cancel()
	return s.pacer.BeforeSend(ctx, n)
}

// AfterReceive 记录接收到的 n 字节
func (s *Shaper) AfterReceive(n int) {
	s.pacer.AfterReceive(n)
}

// RecordRequest 记录一次 n 字节的数据请求
func (s *Shaper) RecordRequest(n int) {
	s.pacer.RecordRequest(n)
}

// RecommendedRequestSize 当前建议的数据请求大小（字节）
func (s *Shaper) RecommendedRequestSize() uint64 {
	return s.pacer.RecommendedRequestSize()
}

// WrapConn 包装连接，读写自动节流与记账
func (s *Shaper) WrapConn(c net.Conn) (*pacing.Conn, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	return pacing.WrapConn(s.ctx, s.pacer, c)
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置入口
// ════════════════════════════════════════════════════════════════════════════

// SetSendLimit 设置出站目标速率（字节/秒，0 = 不限制）
func (s *Shaper) SetSendLimit(bytesPerSec uint64) {
	s.registry.SetRateUpLimit(bytesPerSec)
}

// SetReceiveLimit 设置入站与入站请求目标速率（字节/秒，0 = 不限制）
func (s *Shaper) SetReceiveLimit(bytesPerSec uint64) {
	s.registry.SetRateDownLimit(bytesPerSec)
}

// SetKillLimit 设置累计流量硬上限（MB，0 = 禁用）
func (s *Shaper) SetKillLimit(mb uint64) {
	s.registry.SetKillLimit(mb)
}

// SetTypeOfServiceFlag 设置新连接默认 IP TOS 标记
func (s *Shaper) SetTypeOfServiceFlag(tos int) {
	s.registry.SetTypeOfServiceFlag(tos)
}

// TypeOfServiceFlag 返回新连接默认 IP TOS 标记
func (s *Shaper) TypeOfServiceFlag() int {
	return s.registry.TypeOfServiceFlag()
}

// ════════════════════════════════════════════════════════════════════════════
//                              诊断
// ════════════════════════════════════════════════════════════════════════════

// Snapshot 返回指定类别的状态快照
func (s *Shaper) Snapshot(c Category) (Snapshot, error) {
	g, err := s.registry.Lookup(c)
	if err != nil {
		return Snapshot{}, err
	}
	return g.Snapshot(), nil
}

// Snapshots 返回所有类别的状态快照
func (s *Shaper) Snapshots() map[Category]Snapshot {
	return s.registry.Snapshots()
}

// Registry 返回底层节流器注册表
func (s *Shaper) Registry() *throttle.Registry { return s.registry }

// Pacer 返回底层节奏控制器
func (s *Shaper) Pacer() *pacing.Pacer { return s.pacer }

// mergeContext 任一 ctx 结束时结束
func mergeContext(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
