package biz

import (
	"context"
	"sync"
	"time"
)

// CounterStore 可替换的计数器存储
// 取代进程内全局限流计数: 单进程/测试用内存实现，多进程部署用共享存储实现
type CounterStore interface {
	// Increment 递增并返回当前计数
	Increment(ctx context.Context, key string) (int64, error)
	// ResetAfter 设定计数在窗口结束后归零
	ResetAfter(ctx context.Context, key string, window time.Duration) error
}

// MemoryCounterStore 内存计数器实现
type MemoryCounterStore struct {
	mu      sync.Mutex
	counts  map[string]int64
	resetAt map[string]time.Time
}

// NewMemoryCounterStore 创建内存计数器
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counts:  make(map[string]int64),
		resetAt: make(map[string]time.Time),
	}
}

func (s *MemoryCounterStore) Increment(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.resetAt[key]; ok && time.Now().After(at) {
		delete(s.counts, key)
		delete(s.resetAt, key)
	}
	s.counts[key]++
	return s.counts[key], nil
}

func (s *MemoryCounterStore) ResetAfter(_ context.Context, key string, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetAt[key] = time.Now().Add(window)
	return nil
}
