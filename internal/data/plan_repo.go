package data

import (
	"context"
	"encoding/json"
	"errors"

	"kaiyue_tech/subscription-sync-service/internal/biz"
	"kaiyue_tech/subscription-sync-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// planRepo 套餐目录仓库实现
type planRepo struct {
	data *Data
	log  *log.Helper
}

// NewPlanRepo 创建套餐目录仓库
func NewPlanRepo(data *Data, logger log.Logger) biz.PlanRepo {
	return &planRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetPlan 按套餐ID查询
func (r *planRepo) GetPlan(ctx context.Context, planID string) (*biz.Plan, error) {
	var m model.Plan
	err := r.data.DB(ctx).Where("plan_id = ?", planID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get plan %s: %v", planID, err)
		return nil, err
	}
	return r.toBiz(&m), nil
}

// GetPlanByProviderCode 按服务商套餐编码查询
func (r *planRepo) GetPlanByProviderCode(ctx context.Context, providerCode string) (*biz.Plan, error) {
	var m model.Plan
	err := r.data.DB(ctx).Where("provider_code = ?", providerCode).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get plan by provider code %s: %v", providerCode, err)
		return nil, err
	}
	return r.toBiz(&m), nil
}

// ListPlans 全部套餐
func (r *planRepo) ListPlans(ctx context.Context) ([]*biz.Plan, error) {
	var models []model.Plan
	if err := r.data.DB(ctx).Order("plan_id ASC").Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list plans: %v", err)
		return nil, err
	}
	plans := make([]*biz.Plan, len(models))
	for i := range models {
		plans[i] = r.toBiz(&models[i])
	}
	return plans, nil
}

func (r *planRepo) toBiz(m *model.Plan) *biz.Plan {
	var features []string
	if m.Features != "" {
		if err := json.Unmarshal([]byte(m.Features), &features); err != nil {
			r.log.Warnf("Failed to decode features of plan %s: %v", m.PlanID, err)
		}
	}
	return &biz.Plan{
		PlanID:          m.PlanID,
		ProviderCode:    m.ProviderCode,
		Name:            m.Name,
		Features:        features,
		Price:           m.Price,
		Currency:        m.Currency,
		BillingInterval: m.BillingInterval,
	}
}
