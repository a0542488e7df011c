// Package reconcile keeps the local view of exchange state in sync by
// polling. 交易所永远是真源：每轮拉取整体替换本地快照，绝不增量打补丁。
package reconcile

import (
	"sync"
	"time"

	"tradecore/internal/types"
)

// Hub 是快照的唯一持有者。写入只来自 poller，读取方拿到的是
// 完整副本，不会看到半更新状态。
type Hub struct {
	mu   sync.RWMutex
	snap types.ConsoleSnapshot
}

func NewHub() *Hub {
	return &Hub{snap: types.ConsoleSnapshot{Marks: map[string]float64{}}}
}

// Current 返回最近一次成功对账的快照。
func (h *Hub) Current() types.ConsoleSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

// Replace 整体替换快照。
func (h *Hub) Replace(snap types.ConsoleSnapshot) {
	h.mu.Lock()
	h.snap = snap
	h.mu.Unlock()
}

// SetBannedUntil 只更新限频封禁窗口，其余字段保持上一次成功的值。
func (h *Hub) SetBannedUntil(until time.Time) {
	h.mu.Lock()
	h.snap.Usage.BannedUntil = until
	h.mu.Unlock()
}
