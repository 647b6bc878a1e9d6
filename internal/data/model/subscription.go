package model

import "time"

// Subscription 订阅模型
// 同一租户允许多条记录（历次续费/取消/迁移）；updated_at 是生效订阅规则的排序键
// (tenant_id, provider_subscription_id) 唯一: 同一服务商订阅在并发投递下也只会落一行，
// 手工创建的订阅该列为 NULL，不受唯一约束限制
type Subscription struct {
	SubscriptionID         string     `gorm:"primaryKey;column:subscription_id;type:varchar(36)"`
	TenantID               string     `gorm:"column:tenant_id;type:varchar(36);not null;index:idx_tenant_id;uniqueIndex:uk_tenant_provider_sub,priority:1"`
	PlanID                 string     `gorm:"column:plan_id;type:varchar(36);not null;index:idx_plan_id"`
	ProviderSubscriptionID *string    `gorm:"column:provider_subscription_id;type:varchar(128);uniqueIndex:uk_tenant_provider_sub,priority:2"`
	Status                 string     `gorm:"column:status;type:varchar(16);not null"`                                     // trial, active, cancelled, expired, suspended
	StartedAt              time.Time  `gorm:"column:started_at"`
	EndsAt                 *time.Time `gorm:"column:ends_at"`
	RenewsAt               *time.Time `gorm:"column:renews_at"`
	EnabledFeatures        string     `gorm:"column:enabled_features;type:text"` // JSON 数组，状态变更时从套餐拷贝的快照
	CreatedAt              time.Time  `gorm:"column:created_at"`
	UpdatedAt              time.Time  `gorm:"column:updated_at"`
}

func (Subscription) TableName() string { return "subscription" }
