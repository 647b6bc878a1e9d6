package model

import "time"

// WebhookEvent webhook 投递审计模型
// 只存元信息（body 大小而非内容），供运维排查投递情况；处理流程不回读
type WebhookEvent struct {
	WebhookEventID  uint64    `gorm:"primaryKey;column:webhook_event_id;autoIncrement"`
	EventType       string    `gorm:"column:event_type;type:varchar(16);index"`
	BodySize        int       `gorm:"column:body_size"`
	SignatureValid  bool      `gorm:"column:signature_valid;default:false;index"`
	ProcessingError string    `gorm:"column:processing_error;type:text"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

func (WebhookEvent) TableName() string { return "webhook_event" }
