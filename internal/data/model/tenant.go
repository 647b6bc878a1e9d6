package model

import "time"

// Tenant 租户模型
// cache_* 列是嵌在租户资料上的订阅摘要（非权威数据），只由 Reconciler 写入
type Tenant struct {
	TenantID string `gorm:"primaryKey;column:tenant_id;type:varchar(36)"`
	Email    string `gorm:"column:email;type:varchar(191);not null;uniqueIndex:uk_email"`
	Name     string `gorm:"column:name"`

	CacheSubscriptionID string `gorm:"column:cache_subscription_id;type:varchar(36)"`
	CachePlanID         string `gorm:"column:cache_plan_id;type:varchar(36)"`
	CachePlanName       string `gorm:"column:cache_plan_name"`
	CacheProviderCode   string `gorm:"column:cache_provider_code;type:varchar(64)"`
	CacheStatus         string `gorm:"column:cache_status;type:varchar(16)"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Tenant) TableName() string { return "tenant" }
