package netshaper

import throttleif "github.com/dep2p/go-netshaper/pkg/interfaces/throttle"

// Category 流量类别
type Category = throttleif.Category

// 流量类别
const (
	CategoryOut       = throttleif.CategoryOut
	CategoryIn        = throttleif.CategoryIn
	CategoryInRequest = throttleif.CategoryInRequest
)

// Snapshot 节流器状态快照
type Snapshot = throttleif.Snapshot

// Observer 节流器观察者
type Observer = throttleif.Observer
