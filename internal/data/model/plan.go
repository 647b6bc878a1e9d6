package model

import "time"

// Plan 套餐模型（目录对本服务只读，由管理后台维护）
type Plan struct {
	PlanID          string    `gorm:"primaryKey;column:plan_id;type:varchar(36)"`
	ProviderCode    string    `gorm:"column:provider_code;type:varchar(64);not null;uniqueIndex:uk_provider_code"` // 计费服务商侧套餐编码
	Name            string    `gorm:"column:name"`
	Features        string    `gorm:"column:features;type:text"` // JSON 数组（有序功能点列表）
	Price           float64   `gorm:"column:price;type:decimal(10,2)"`
	Currency        string    `gorm:"column:currency;type:varchar(10);default:'USD'"`
	BillingInterval string    `gorm:"column:billing_interval;type:varchar(10)"` // monthly, yearly
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Plan) TableName() string { return "plan" }
