package data

import (
	"context"

	"kaiyue_tech/subscription-sync-service/internal/biz"
	"kaiyue_tech/subscription-sync-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
)

// webhookRecordRepo webhook 投递审计仓库实现
type webhookRecordRepo struct {
	data *Data
	log  *log.Helper
}

// NewWebhookRecordRepo 创建 webhook 审计仓库
func NewWebhookRecordRepo(data *Data, logger log.Logger) biz.WebhookRecordRepo {
	return &webhookRecordRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Record 落一条审计记录
// 审计失败不影响主流程，调用方按 best-effort 处理返回值
func (r *webhookRecordRepo) Record(ctx context.Context, rec *biz.WebhookRecord) error {
	m := &model.WebhookEvent{
		EventType:       rec.EventType,
		BodySize:        rec.BodySize,
		SignatureValid:  rec.SignatureValid,
		ProcessingError: rec.ProcessingError,
		CreatedAt:       rec.CreatedAt,
	}
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to record webhook event: %v", err)
		return err
	}
	return nil
}
