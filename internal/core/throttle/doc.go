// Package throttle 实现基于滑动窗口的流量节流器
//
// throttle 模块跟踪最近若干秒内的流量，提供：
//   - 滑动窗口历史（默认 10 个 1 秒槽位，空闲间隔自动补零）
//   - 发送前建议延迟（多时间跨度取最保守值）
//   - 建议请求大小（多时间跨度取最小值）
//   - 过热惩罚（线性衰减）与可选的 kill 上限
//   - 进程级三个共享节流器（out / in / inreq），各自独立加锁
//
// # 快速开始
//
//	registry, _ := throttle.NewRegistry(throttleif.DefaultConfig())
//
//	// 发送前询问建议延迟（锁外休眠）
//	delay := registry.Out().SleepTimeAfterTick(1024)
//	time.Sleep(delay)
//
//	// 发送完成后记账
//	registry.Out().HandleTrafficTCP(1024)
//
//	// 请求数据前询问建议大小
//	size := registry.InRequest().RecommendedSizeAfterTick()
//
// # 估计算法
//
// 对窗口跨度 N（槽位），目标速率 M，整个窗口的字节数 E（不随 N 变化），待发送 p 字节：
//
//	W  = max(min((N-1) + 当前槽位已过时间, 运行时长), 1)
//	D1 = (E - M*W) / M
//	D2 = (E + p - M*W) / M
//	delay = 0.75*D1 + 0.25*D2 + overheatWeight*overheat
//
// SleepTime 在 {N, N/2, 5} 三个跨度上取最大延迟并截为非负；
// RecommendedSize 在 {N, N/2, 8} 三个跨度上取最小值。
// 目标速率为 0 表示不限制：延迟为 0，建议大小为上限。
//
// # 并发
//
// Throttle 本身非并发安全，跨 goroutine 使用时通过 Guard 访问。
// 每次决策的 tick 与估计/记账在同一个临界区内完成，休眠在锁外进行。
//
// # Fx 模块
//
//	app := fx.New(
//	    throttle.Module(),
//	    fx.Invoke(func(r *throttle.Registry) {
//	        r.SetRateUpLimit(512 * 1024)
//	    }),
//	)
//
// 提供 prometheus.Registerer 时自动导出 netshaper_throttle_* 指标。
package throttle
