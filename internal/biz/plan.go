package biz

import "context"

// Plan 订阅套餐（套餐目录对本服务只读）
type Plan struct {
	PlanID          string
	ProviderCode    string // 计费服务商侧的套餐编码
	Name            string
	Features        []string // 有序的功能点列表
	Price           float64
	Currency        string
	BillingInterval string // monthly, yearly
}

// PlanRepo 套餐目录仓库接口
type PlanRepo interface {
	GetPlan(ctx context.Context, planID string) (*Plan, error)
	// GetPlanByProviderCode 按服务商套餐编码查询，未找到返回 nil, nil
	GetPlanByProviderCode(ctx context.Context, providerCode string) (*Plan, error)
	ListPlans(ctx context.Context) ([]*Plan, error)
}
