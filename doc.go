// Package netshaper 提供 P2P 节点的滑动窗口流量整形
//
// netshaper 跟踪最近若干秒的出站、入站与入站请求流量，
// 在发送前给出建议延迟，在请求数据前给出建议大小，
// 让整个进程的平均速率收敛到配置的目标值。
//
// # 核心概念
//
//   - Throttle: 单个类别的滑动窗口节流器（默认 10 个 1 秒槽位）
//   - Registry: 进程内三个共享节流器（out / in / inreq），各自独立加锁
//   - Pacer: 连接与节流器之间的粘合层，锁内测量、锁外休眠
//
// # 快速开始
//
//	shaper, err := netshaper.New(
//	    netshaper.WithUpLimit(512),   // KiB/s
//	    netshaper.WithDownLimit(2048),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := shaper.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer shaper.Stop(ctx)
//
//	// 方式一：包装连接，读写自动节流与记账
//	conn, _ := shaper.WrapConn(raw)
//
//	// 方式二：手动调用钩子
//	if err := shaper.BeforeSend(ctx, len(buf)); err != nil {
//	    return err
//	}
//	raw.Write(buf)
//	shaper.AfterReceive(n)
//
// # 运行时调整
//
//	shaper.SetSendLimit(256 * 1024)    // 字节/秒
//	shaper.SetReceiveLimit(1024 * 1024) // 同时作用于 in 与 inreq
//	shaper.SetKillLimit(4096)          // MB
//	shaper.SetTypeOfServiceFlag(0x10)  // 新连接生效
//
// 调整从下一次估计开始生效。
//
// # 指标
//
// 通过 WithMetrics 传入 prometheus.Registerer 后导出 netshaper_throttle_* 指标；
// 通过 WithObserver 可接入自定义观察者。
package netshaper
