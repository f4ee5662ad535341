// Package pacing 实现连接级流量节奏控制
//
// pacing 是连接与全局节流器之间的粘合层，本身不持有节流状态：
//   - 发送前：向 out 节流器询问建议延迟，锁外休眠，再次测量，直到延迟归零后记账
//   - 接收后：直接向 in 节流器记账，不做延迟
//   - 请求前：向 inreq 节流器询问建议请求大小
//
// # 测量-休眠-再测量
//
// 每轮只在锁内完成 tick 与 SleepTime 计算，休眠在锁外进行：
//
//	for {
//	    delay := out.SleepTimeAfterTick(n)   // 锁内
//	    if delay <= 0 {
//	        break
//	    }
//	    sleep(jitter(delay))                 // 锁外，可被 ctx 取消
//	}
//	out.HandleTrafficTCP(n)                  // 锁内
//
// 休眠时长 = delay * U[JitterMin, JitterMax] + U[0, ExtraDelayMax]，
// 避免大量连接在同一时刻醒来。
//
// # 连接包装
//
//	conn, _ := pacing.WrapConn(ctx, pacer, raw)
//	conn.Write(buf) // 自动节流并记账
//	conn.Read(buf)  // 自动记账
//
// 新连接使用注册表中的默认 IP TOS 标记。
package pacing
