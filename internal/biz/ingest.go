package biz

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/conf"
	"kaiyue_tech/subscription-sync-service/internal/constants"
	"kaiyue_tech/subscription-sync-service/internal/errors"
)

// CanonicalEvent 规范化计费事件
// 在边界处由原始服务商载荷解析而来，下游只消费这个强类型事件，
// 事件本身不落库，其效果体现在订阅的 history 中
type CanonicalEvent struct {
	Type                   string     `json:"event_type"`
	ProviderSubscriptionID string     `json:"provider_subscription_id"`
	PlanProviderCode       string     `json:"plan_code"`
	BuyerEmail             string     `json:"buyer_email"`
	StatusHint             string     `json:"status_hint"`
	TrialEndsAt            *time.Time `json:"trial_ends_at,omitempty"`
	NextChargeAt           *time.Time `json:"next_charge_at,omitempty"`
	ReceivedAt             time.Time  `json:"-"`
}

// WebhookRecord webhook 投递审计记录
// 只记录元信息（body 大小而非内容），处理流程从不回读它
type WebhookRecord struct {
	EventType       string
	BodySize        int
	SignatureValid  bool
	ProcessingError string
	CreatedAt       time.Time
}

// WebhookRecordRepo webhook 审计仓库接口
type WebhookRecordRepo interface {
	Record(ctx context.Context, rec *WebhookRecord) error
}

// SignatureValid 校验签名是否与原始 body 字节匹配
// 必须针对原始字节计算，不能反序列化再重排——浮点/键序差异会毁掉合法签名
func SignatureValid(rawBody []byte, signatureHeader, secret string) bool {
	if signatureHeader == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	// 兼容 "sha256=<hex>" 前缀形式
	got := strings.TrimPrefix(strings.TrimSpace(signatureHeader), "sha256=")
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(got)))
}

// VerifySignature 按配置的模式校验签名
// strict: 签名缺失或不匹配直接拒绝
// relaxed: 放行（沙箱联调用），由调用方负责告警日志；生产配置无法到达该模式，
// conf.Validate 在启动时即拦截
func VerifySignature(rawBody []byte, signatureHeader, secret, mode string) error {
	if mode == conf.SignatureModeRelaxed {
		return nil
	}
	if !SignatureValid(rawBody, signatureHeader, secret) {
		return errors.ErrSignatureInvalid()
	}
	return nil
}

// ParseEvent 解析原始载荷为规范化事件
// 解析失败只暴露 body 大小，绝不记录原始内容
func ParseEvent(rawBody []byte) (*CanonicalEvent, error) {
	var ev CanonicalEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return nil, errors.ErrPayloadUnparseable(len(rawBody))
	}

	ev.Type = strings.ToLower(strings.TrimSpace(ev.Type))
	ev.BuyerEmail = strings.ToLower(strings.TrimSpace(ev.BuyerEmail))
	ev.PlanProviderCode = strings.TrimSpace(ev.PlanProviderCode)
	ev.ProviderSubscriptionID = strings.TrimSpace(ev.ProviderSubscriptionID)
	ev.StatusHint = strings.ToLower(strings.TrimSpace(ev.StatusHint))

	if !constants.EventTypes[ev.Type] {
		return nil, errors.ErrPayloadUnparseable(len(rawBody))
	}
	if ev.BuyerEmail == "" || ev.PlanProviderCode == "" || ev.ProviderSubscriptionID == "" {
		return nil, errors.ErrPayloadUnparseable(len(rawBody))
	}

	ev.ReceivedAt = time.Now().UTC()
	return &ev, nil
}
