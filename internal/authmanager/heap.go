package authmanager

import (
	"container/heap"
	"time"

	"github.com/duskforge/vaultcache/internal/model"
)

// refreshEntry is one account's scheduled refresh deadline.
type refreshEntry struct {
	id        model.AccountID
	refreshAt time.Time
}

// refreshHeap is a container/heap min-heap ordered by ascending
// refreshAt: the soonest deadline is always at index 0.
type refreshHeap []refreshEntry

func (h refreshHeap) Len() int { return len(h) }

func (h refreshHeap) Less(i, j int) bool { return h[i].refreshAt.Before(h[j].refreshAt) }

func (h refreshHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *refreshHeap) Push(x any) {
	*h = append(*h, x.(refreshEntry))
}

func (h *refreshHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

var _ heap.Interface = (*refreshHeap)(nil)
