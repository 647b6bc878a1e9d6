package data

import (
	"context"
	"errors"

	"kaiyue_tech/subscription-sync-service/internal/biz"
	"kaiyue_tech/subscription-sync-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// tenantRepo 租户目录仓库实现
// 租户表由外部用户目录维护，本服务只读资料、只写 cache_* 列
type tenantRepo struct {
	data *Data
	log  *log.Helper
}

// NewTenantRepo 创建租户目录仓库
func NewTenantRepo(data *Data, logger log.Logger) biz.TenantRepo {
	return &tenantRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetByID 按租户ID查询
func (r *tenantRepo) GetByID(ctx context.Context, tenantID string) (*biz.Tenant, error) {
	var m model.Tenant
	err := r.data.DB(ctx).Where("tenant_id = ?", tenantID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get tenant %s: %v", tenantID, err)
		return nil, err
	}
	return toBizTenant(&m), nil
}

// GetByEmail 按邮箱查询（webhook 事件用 buyer_email 定位租户）
func (r *tenantRepo) GetByEmail(ctx context.Context, email string) (*biz.Tenant, error) {
	var m model.Tenant
	err := r.data.DB(ctx).Where("email = ?", email).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get tenant by email: %v", err)
		return nil, err
	}
	return toBizTenant(&m), nil
}

// UpdateCache 覆写租户缓存列
// 空缓存同样落库（租户没有任何订阅时全部清空），所以用 Updates map 而不是结构体
func (r *tenantRepo) UpdateCache(ctx context.Context, tenantID string, cache biz.TenantCache) error {
	err := r.data.DB(ctx).Model(&model.Tenant{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"cache_subscription_id": cache.SubscriptionID,
			"cache_plan_id":         cache.PlanID,
			"cache_plan_name":       cache.PlanName,
			"cache_provider_code":   cache.ProviderCode,
			"cache_status":          cache.Status,
		}).Error
	if err != nil {
		r.log.Errorf("Failed to update cache for tenant %s: %v", tenantID, err)
		return err
	}
	return nil
}

// ListTenantIDs 全部租户ID
func (r *tenantRepo) ListTenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.data.DB(ctx).Model(&model.Tenant{}).
		Order("tenant_id ASC").
		Pluck("tenant_id", &ids).Error; err != nil {
		r.log.Errorf("Failed to list tenant ids: %v", err)
		return nil, err
	}
	return ids, nil
}

// ListTenantIDsWithoutSubscription 没有任何订阅记录的租户ID
func (r *tenantRepo) ListTenantIDsWithoutSubscription(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.data.DB(ctx).Model(&model.Tenant{}).
		Where("NOT EXISTS (?)", r.data.DB(ctx).Model(&model.Subscription{}).
			Select("1").
			Where("subscription.tenant_id = tenant.tenant_id")).
		Order("tenant_id ASC").
		Pluck("tenant_id", &ids).Error; err != nil {
		r.log.Errorf("Failed to list tenants without subscription: %v", err)
		return nil, err
	}
	return ids, nil
}

func toBizTenant(m *model.Tenant) *biz.Tenant {
	return &biz.Tenant{
		TenantID: m.TenantID,
		Email:    m.Email,
		Name:     m.Name,
		Cache: biz.TenantCache{
			SubscriptionID: m.CacheSubscriptionID,
			PlanID:         m.CachePlanID,
			PlanName:       m.CachePlanName,
			ProviderCode:   m.CacheProviderCode,
			Status:         m.CacheStatus,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
