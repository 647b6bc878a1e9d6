package data

import (
	"context"

	"kaiyue_tech/subscription-sync-service/internal/biz"
	"kaiyue_tech/subscription-sync-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
)

// subscriptionHistoryRepo 订阅历史仓库实现
type subscriptionHistoryRepo struct {
	data *Data
	log  *log.Helper
}

// NewSubscriptionHistoryRepo 创建订阅历史仓库
func NewSubscriptionHistoryRepo(data *Data, logger log.Logger) biz.SubscriptionHistoryRepo {
	return &subscriptionHistoryRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Append 追加一条历史记录（只追加，没有更新和删除路径）
func (r *subscriptionHistoryRepo) Append(ctx context.Context, entry *biz.HistoryEntry) error {
	m := &model.SubscriptionHistory{
		SubscriptionID: entry.SubscriptionID,
		TenantID:       entry.TenantID,
		Action:         entry.Action,
		EventType:      entry.EventType,
		OldStatus:      entry.OldStatus,
		NewStatus:      entry.NewStatus,
		Detail:         entry.Detail,
		CreatedAt:      entry.CreatedAt,
	}
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to append history for subscription %s: %v", entry.SubscriptionID, err)
		return err
	}
	entry.HistoryID = m.HistoryID
	return nil
}

// ListByTenant 按租户分页查询历史，时间倒序
func (r *subscriptionHistoryRepo) ListByTenant(ctx context.Context, tenantID string, page, pageSize int) ([]*biz.HistoryEntry, int, error) {
	var total int64
	if err := r.data.DB(ctx).Model(&model.SubscriptionHistory{}).
		Where("tenant_id = ?", tenantID).
		Count(&total).Error; err != nil {
		r.log.Errorf("Failed to count history for tenant %s: %v", tenantID, err)
		return nil, 0, err
	}

	var models []model.SubscriptionHistory
	offset := (page - 1) * pageSize
	if err := r.data.DB(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, history_id DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list history for tenant %s: %v", tenantID, err)
		return nil, 0, err
	}

	entries := make([]*biz.HistoryEntry, len(models))
	for i, m := range models {
		entries[i] = &biz.HistoryEntry{
			HistoryID:      m.HistoryID,
			SubscriptionID: m.SubscriptionID,
			TenantID:       m.TenantID,
			Action:         m.Action,
			EventType:      m.EventType,
			OldStatus:      m.OldStatus,
			NewStatus:      m.NewStatus,
			Detail:         m.Detail,
			CreatedAt:      m.CreatedAt,
		}
	}
	return entries, int(total), nil
}
