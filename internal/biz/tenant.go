package biz

import (
	"context"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
)

// TenantCache 租户资料上的订阅摘要（非权威数据，只由 Reconciler 写入）
type TenantCache struct {
	SubscriptionID string
	PlanID         string
	PlanName       string
	ProviderCode   string
	Status         string
}

// IsEmpty 缓存是否为空（租户没有任何订阅时缓存为空）
func (c TenantCache) IsEmpty() bool {
	return c == TenantCache{}
}

// Tenant 租户（账号/商家）
// 租户的创建由外部用户目录负责，本服务只读租户、只写缓存列
type Tenant struct {
	TenantID  string
	Email     string
	Name      string
	Cache     TenantCache
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TenantRepo 租户目录仓库接口（防腐层，底层是应用的用户目录）
type TenantRepo interface {
	// GetByID 按租户ID查询，未找到返回 nil, nil
	GetByID(ctx context.Context, tenantID string) (*Tenant, error)
	// GetByEmail 按邮箱查询，未找到返回 nil, nil
	GetByEmail(ctx context.Context, email string) (*Tenant, error)
	// UpdateCache 覆写租户缓存列（只允许 Reconciler 调用）
	UpdateCache(ctx context.Context, tenantID string, cache TenantCache) error
	// ListTenantIDs 所有租户ID（批量对账用）
	ListTenantIDs(ctx context.Context) ([]string, error)
	// ListTenantIDsWithoutSubscription 没有任何订阅记录的租户ID（回填用）
	ListTenantIDsWithoutSubscription(ctx context.Context) ([]string, error)
}

// TenantUsecase 租户授权查询
// 应用其余部分的授权检查全部走这里，只读缓存，绝不直接读订阅存储
type TenantUsecase struct {
	tenantRepo TenantRepo
	planRepo   PlanRepo
	log        *log.Helper
}

// NewTenantUsecase 创建租户授权查询用例
func NewTenantUsecase(tenantRepo TenantRepo, planRepo PlanRepo, logger log.Logger) *TenantUsecase {
	return &TenantUsecase{
		tenantRepo: tenantRepo,
		planRepo:   planRepo,
		log:        log.NewHelper(logger),
	}
}

// HasFeature 判断租户当前是否具备某个功能点
// 只依据 TenantCache 的状态和套餐，trial/active 之外一律视为无权限
func (uc *TenantUsecase) HasFeature(ctx context.Context, tenantID, featureID string) (bool, error) {
	tenant, err := uc.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if tenant == nil || tenant.Cache.IsEmpty() {
		return false, nil
	}

	if tenant.Cache.Status != constants.StatusActive && tenant.Cache.Status != constants.StatusTrial {
		return false, nil
	}

	plan, err := uc.planRepo.GetPlan(ctx, tenant.Cache.PlanID)
	if err != nil {
		return false, err
	}
	if plan == nil {
		uc.log.Warnf("Tenant %s cache references missing plan %s", tenantID, tenant.Cache.PlanID)
		return false, nil
	}

	for _, f := range plan.Features {
		if f == featureID {
			return true, nil
		}
	}
	return false, nil
}
