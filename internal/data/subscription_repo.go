package data

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/biz"
	"kaiyue_tech/subscription-sync-service/internal/constants"
	"kaiyue_tech/subscription-sync-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// subscriptionRepo 订阅仓库实现
type subscriptionRepo struct {
	data *Data
	log  *log.Helper
}

// NewSubscriptionRepo 创建订阅仓库
func NewSubscriptionRepo(data *Data, logger log.Logger) biz.SubscriptionRepo {
	return &subscriptionRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetByProviderSubscriptionID 按租户+服务商订阅ID查询
func (r *subscriptionRepo) GetByProviderSubscriptionID(ctx context.Context, tenantID, providerSubscriptionID string) (*biz.Subscription, error) {
	if providerSubscriptionID == "" {
		return nil, nil
	}
	var m model.Subscription
	err := r.data.DB(ctx).
		Where("tenant_id = ? AND provider_subscription_id = ?", tenantID, providerSubscriptionID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get subscription for tenant %s: %v", tenantID, err)
		return nil, err
	}
	return r.toBiz(&m), nil
}

// ListByTenant 租户的全部订阅记录
func (r *subscriptionRepo) ListByTenant(ctx context.Context, tenantID string) ([]*biz.Subscription, error) {
	var models []model.Subscription
	if err := r.data.DB(ctx).
		Where("tenant_id = ?", tenantID).
		Order("updated_at DESC, subscription_id DESC").
		Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list subscriptions for tenant %s: %v", tenantID, err)
		return nil, err
	}
	return r.toBizList(models), nil
}

// ListByPlan 某个套餐下的全部订阅记录（批量迁移用）
func (r *subscriptionRepo) ListByPlan(ctx context.Context, planID string) ([]*biz.Subscription, error) {
	var models []model.Subscription
	if err := r.data.DB(ctx).
		Where("plan_id = ?", planID).
		Order("tenant_id ASC, updated_at DESC").
		Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list subscriptions for plan %s: %v", planID, err)
		return nil, err
	}
	return r.toBizList(models), nil
}

// Save 保存订阅（新建或覆写）
// 并发创建同一 (tenant_id, provider_subscription_id) 时，唯一索引让后到者失败，
// 该错误对调用方是瞬时冲突，整个 ApplyEvent 重试即可命中已存在的行
func (r *subscriptionRepo) Save(ctx context.Context, sub *biz.Subscription) error {
	features, err := json.Marshal(sub.EnabledFeatures)
	if err != nil {
		return err
	}
	var providerSubID *string
	if sub.ProviderSubscriptionID != "" {
		providerSubID = &sub.ProviderSubscriptionID
	}
	m := &model.Subscription{
		SubscriptionID:         sub.SubscriptionID,
		TenantID:               sub.TenantID,
		PlanID:                 sub.PlanID,
		ProviderSubscriptionID: providerSubID,
		Status:                 sub.Status,
		StartedAt:              sub.StartedAt,
		EndsAt:                 sub.EndsAt,
		RenewsAt:               sub.RenewsAt,
		EnabledFeatures:        string(features),
		CreatedAt:              sub.CreatedAt,
		UpdatedAt:              sub.UpdatedAt,
	}
	if err := r.data.DB(ctx).Save(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			r.log.Warnf("Concurrent create detected for tenant %s provider sub %s, caller should retry", sub.TenantID, sub.ProviderSubscriptionID)
			return err
		}
		r.log.Errorf("Failed to save subscription %s for tenant %s: %v", sub.SubscriptionID, sub.TenantID, err)
		return err
	}
	return nil
}

// ListOverdue 已过 ends_at 但状态仍为 trial/active 的订阅
func (r *subscriptionRepo) ListOverdue(ctx context.Context, now time.Time) ([]*biz.Subscription, error) {
	var models []model.Subscription
	if err := r.data.DB(ctx).
		Where("ends_at IS NOT NULL AND ends_at < ? AND status IN ?",
			now, []string{constants.StatusTrial, constants.StatusActive}).
		Order("ends_at ASC").
		Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list overdue subscriptions: %v", err)
		return nil, err
	}
	return r.toBizList(models), nil
}

func (r *subscriptionRepo) toBizList(models []model.Subscription) []*biz.Subscription {
	subs := make([]*biz.Subscription, len(models))
	for i := range models {
		subs[i] = r.toBiz(&models[i])
	}
	return subs
}

func (r *subscriptionRepo) toBiz(m *model.Subscription) *biz.Subscription {
	var features []string
	if m.EnabledFeatures != "" {
		if err := json.Unmarshal([]byte(m.EnabledFeatures), &features); err != nil {
			r.log.Warnf("Failed to decode features of subscription %s: %v", m.SubscriptionID, err)
		}
	}
	providerSubID := ""
	if m.ProviderSubscriptionID != nil {
		providerSubID = *m.ProviderSubscriptionID
	}
	return &biz.Subscription{
		SubscriptionID:         m.SubscriptionID,
		TenantID:               m.TenantID,
		PlanID:                 m.PlanID,
		ProviderSubscriptionID: providerSubID,
		Status:                 m.Status,
		StartedAt:              m.StartedAt,
		EndsAt:                 m.EndsAt,
		RenewsAt:               m.RenewsAt,
		EnabledFeatures:        features,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}
