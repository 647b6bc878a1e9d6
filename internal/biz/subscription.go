package biz

import (
	"context"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/constants"
)

// Subscription 订阅记录
// 一个租户可以有多条订阅记录（历次续费/取消/迁移），任一时刻只有一条生效
type Subscription struct {
	SubscriptionID         string
	TenantID               string
	PlanID                 string
	ProviderSubscriptionID string // 服务商侧订阅ID，手工创建的订阅可能为空
	Status                 string // trial, active, cancelled, expired, suspended
	StartedAt              time.Time
	EndsAt                 *time.Time
	RenewsAt               *time.Time
	// EnabledFeatures 最近一次状态变更时从套餐拷贝的功能点快照
	// 刻意冗余: 套餐后续被重新编排时，历史行为仍可复现
	EnabledFeatures []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HistoryEntry 订阅历史记录（只追加，绝不改写或删除）
type HistoryEntry struct {
	HistoryID      uint64
	SubscriptionID string
	TenantID       string
	Action         string // event_applied, admin_force_cancel, plan_migrated, backfilled, expired_sweep
	EventType      string // 触发变更的规范化事件类型（管理操作为空）
	OldStatus      string
	NewStatus      string
	Detail         string
	CreatedAt      time.Time
}

// SubscriptionRepo 订阅存储仓库接口
type SubscriptionRepo interface {
	// GetByProviderSubscriptionID 按租户+服务商订阅ID查询，未找到返回 nil, nil
	GetByProviderSubscriptionID(ctx context.Context, tenantID, providerSubscriptionID string) (*Subscription, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Subscription, error)
	ListByPlan(ctx context.Context, planID string) ([]*Subscription, error)
	Save(ctx context.Context, sub *Subscription) error
	// ListOverdue 已过 ends_at 但状态仍为 trial/active 的订阅（定时清扫用）
	ListOverdue(ctx context.Context, now time.Time) ([]*Subscription, error)
}

// SubscriptionHistoryRepo 订阅历史仓库接口
type SubscriptionHistoryRepo interface {
	Append(ctx context.Context, entry *HistoryEntry) error
	ListByTenant(ctx context.Context, tenantID string, page, pageSize int) ([]*HistoryEntry, int, error)
}

// Transaction 事务执行接口
type Transaction interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}

// NextStatus 状态迁移表: (当前状态, 事件类型) -> 新状态
// 纯函数，不信任事件里的 status_hint；每种事件重复投递都是安全的，
// 终态事件重复到达时状态不变（历史仍然追加），天然满足 at-least-once 投递
// currentStatus 为空串表示尚无订阅记录
func NextStatus(currentStatus, eventType string) string {
	switch eventType {
	case constants.EventActivated, constants.EventRenewed:
		// 服务商可能在宽限期后直接发 renewed，此时同样拉回 active
		return constants.StatusActive
	case constants.EventCancelled:
		return constants.StatusCancelled
	case constants.EventExpired:
		return constants.StatusExpired
	case constants.EventSuspended:
		return constants.StatusSuspended
	case constants.EventPurchased:
		// 已付费的订阅再次 purchased 保持 active；
		// cancelled/expired/suspended 的重新购买回到 trial（win-back 流程）
		if currentStatus == constants.StatusActive {
			return constants.StatusActive
		}
		return constants.StatusTrial
	}
	return currentStatus
}

// EffectiveSubscription 生效订阅规则
// 在租户的全部订阅中选出当前生效的一条:
//  1. 状态为 active 或 trial 且最近被变更的
//  2. 否则取最近被变更的（无论状态）
//  3. 没有任何订阅时返回 nil
// 每次对账都从头计算，绝不增量维护
func EffectiveSubscription(subs []*Subscription) *Subscription {
	var live, latest *Subscription
	for _, s := range subs {
		if latest == nil || moreRecent(s, latest) {
			latest = s
		}
		if s.Status == constants.StatusActive || s.Status == constants.StatusTrial {
			if live == nil || moreRecent(s, live) {
				live = s
			}
		}
	}
	if live != nil {
		return live
	}
	return latest
}

// moreRecent 按 updated_at 比较，相同时按 subscription_id 保证确定性
func moreRecent(a, b *Subscription) bool {
	if a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.SubscriptionID > b.SubscriptionID
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}
