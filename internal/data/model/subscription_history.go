package model

import "time"

// SubscriptionHistory 订阅历史模型（只追加，绝不改写或删除）
type SubscriptionHistory struct {
	HistoryID      uint64    `gorm:"primaryKey;column:history_id;autoIncrement"`
	SubscriptionID string    `gorm:"column:subscription_id;type:varchar(36);not null;index:idx_subscription_id"`
	TenantID       string    `gorm:"column:tenant_id;type:varchar(36);not null;index:idx_tenant_id"`
	Action         string    `gorm:"column:action;type:varchar(32);not null"` // event_applied, admin_force_cancel, plan_migrated, backfilled, expired_sweep
	EventType      string    `gorm:"column:event_type;type:varchar(16)"`      // 管理操作为空
	OldStatus      string    `gorm:"column:old_status;type:varchar(16)"`
	NewStatus      string    `gorm:"column:new_status;type:varchar(16)"`
	Detail         string    `gorm:"column:detail;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at;index"`
}

func (SubscriptionHistory) TableName() string { return "subscription_history" }
