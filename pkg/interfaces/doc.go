// Package interfaces 定义 netshaper 的公共接口
//
// 一个接口目录对应一个实现目录：
//   - throttle/  - 流量类别、节流器配置、状态快照与观察者（实现: internal/core/throttle）
//
// # 依赖方向
//
//	pkg/interfaces  <-  internal/core/*  <-  netshaper（根包）
//
// interfaces 不依赖任何 internal 包。
package interfaces
