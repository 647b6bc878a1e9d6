package data

import (
	"context"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// counterStore 基于 Redis 的计数器实现
// 多实例部署共享限流计数，单测用 biz.MemoryCounterStore
type counterStore struct {
	data *Data
	log  *log.Helper
}

// NewCounterStore 创建计数器存储
func NewCounterStore(data *Data, logger log.Logger) biz.CounterStore {
	return &counterStore{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func counterKey(key string) string {
	return "counter:" + key
}

// Increment 递增并返回当前计数
func (s *counterStore) Increment(ctx context.Context, key string) (int64, error) {
	n, err := s.data.rdb.Incr(ctx, counterKey(key)).Result()
	if err != nil {
		s.log.Errorf("Failed to increment counter %s: %v", key, err)
		return 0, err
	}
	return n, nil
}

// ResetAfter 设定计数在窗口结束后过期
// 只在键尚无 TTL 时设置，保证窗口从首次计数开始算
func (s *counterStore) ResetAfter(ctx context.Context, key string, window time.Duration) error {
	if err := s.data.rdb.ExpireNX(ctx, counterKey(key), window).Err(); err != nil {
		s.log.Errorf("Failed to set counter window for %s: %v", key, err)
		return err
	}
	return nil
}
