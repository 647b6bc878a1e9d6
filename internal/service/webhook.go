package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/biz"
	"kaiyue_tech/subscription-sync-service/internal/conf"
	"kaiyue_tech/subscription-sync-service/internal/constants"
	serrors "kaiyue_tech/subscription-sync-service/internal/errors"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// WebhookReply webhook 处理结果
type WebhookReply struct {
	Status         string `json:"status"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	PlanID         string `json:"plan_id,omitempty"`
	TenantStatus   string `json:"tenant_status,omitempty"`
}

// SimulateEventRequest 诊断接口请求（跳过签名，直接注入一条规范化事件）
type SimulateEventRequest struct {
	EventType              string     `json:"event_type"`
	ProviderSubscriptionID string     `json:"provider_subscription_id"`
	PlanCode               string     `json:"plan_code"`
	BuyerEmail             string     `json:"buyer_email"`
	StatusHint             string     `json:"status_hint"`
	TrialEndsAt            *time.Time `json:"trial_ends_at,omitempty"`
	NextChargeAt           *time.Time `json:"next_charge_at,omitempty"`
}

// WebhookService 计费服务商 webhook 入口
type WebhookService struct {
	reconciler *biz.ReconcilerUsecase
	recordRepo biz.WebhookRecordRepo
	counter    biz.CounterStore
	conf       *conf.Bootstrap
	log        *log.Helper
}

// NewWebhookService 创建 webhook 服务
func NewWebhookService(
	reconciler *biz.ReconcilerUsecase,
	recordRepo biz.WebhookRecordRepo,
	counter biz.CounterStore,
	c *conf.Bootstrap,
	logger log.Logger,
) *WebhookService {
	return &WebhookService{
		reconciler: reconciler,
		recordRepo: recordRepo,
		counter:    counter,
		conf:       c,
		log:        log.NewHelper(logger),
	}
}

// HandleBillingWebhook 处理一次 webhook 投递
// 签名必须针对原始 body 字节校验；对外只返回粗粒度错误类别，
// 日志里只出现 body 大小，绝不出现载荷内容
func (s *WebhookService) HandleBillingWebhook(ctx context.Context, rawBody []byte, signatureHeader string) (*WebhookReply, error) {
	mode := s.conf.Billing.SignatureMode
	sigValid := biz.SignatureValid(rawBody, signatureHeader, s.conf.Billing.WebhookSecret)

	// 1. 签名校验
	if err := biz.VerifySignature(rawBody, signatureHeader, s.conf.Billing.WebhookSecret, mode); err != nil {
		s.log.Warnf("Webhook rejected: invalid signature, body_size=%d", len(rawBody))
		s.audit(ctx, "", len(rawBody), false, serrors.ReasonSignatureInvalid)
		return nil, err
	}
	if mode == conf.SignatureModeRelaxed && !sigValid {
		s.log.Warnf("Webhook signature missing or invalid, accepted in relaxed mode, body_size=%d", len(rawBody))
	}

	// 2. 解析为规范化事件
	ev, err := biz.ParseEvent(rawBody)
	if err != nil {
		s.log.Warnf("Webhook rejected: unparseable payload, body_size=%d", len(rawBody))
		s.audit(ctx, "", len(rawBody), sigValid, serrors.ReasonPayloadUnparseable)
		return nil, err
	}

	// 3. 应用事件
	cache, err := s.reconciler.ApplyEvent(ctx, ev)
	if err != nil {
		s.audit(ctx, ev.Type, len(rawBody), sigValid, kerrors.Reason(err))
		return nil, coarseError(err)
	}

	s.audit(ctx, ev.Type, len(rawBody), sigValid, "")
	return &WebhookReply{
		Status:         "applied",
		SubscriptionID: cache.SubscriptionID,
		PlanID:         cache.PlanID,
		TenantStatus:   cache.Status,
	}, nil
}

// SimulateBillingEvent 诊断接口: 无签名注入一条事件
// 生产环境禁用；按进程外共享计数器限流，避免被当作免签名的后门刷量
func (s *WebhookService) SimulateBillingEvent(ctx context.Context, req *SimulateEventRequest) (*WebhookReply, error) {
	if s.conf.Env == conf.EnvProduction {
		return nil, kerrors.Forbidden("SIMULATE_DISABLED", "event simulation is disabled in production")
	}

	if err := s.checkSimulateRate(ctx); err != nil {
		return nil, err
	}

	// 三参数简写不带服务商订阅ID时派生一个稳定的合成ID，
	// 同一 email+planCode 的连续模拟命中同一条订阅记录，可以演练完整的状态序列
	providerSubID := req.ProviderSubscriptionID
	if providerSubID == "" {
		providerSubID = syntheticProviderSubID(req.BuyerEmail, req.PlanCode)
	}

	ev := &biz.CanonicalEvent{
		Type:                   req.EventType,
		ProviderSubscriptionID: providerSubID,
		PlanProviderCode:       req.PlanCode,
		BuyerEmail:             req.BuyerEmail,
		StatusHint:             req.StatusHint,
		TrialEndsAt:            req.TrialEndsAt,
		NextChargeAt:           req.NextChargeAt,
		ReceivedAt:             time.Now().UTC(),
	}
	if !constants.EventTypes[ev.Type] {
		return nil, kerrors.BadRequest("INVALID_EVENT_TYPE", "unknown event type "+ev.Type)
	}

	cache, err := s.reconciler.ApplyEvent(ctx, ev)
	if err != nil {
		return nil, coarseError(err)
	}
	return &WebhookReply{
		Status:         "applied",
		SubscriptionID: cache.SubscriptionID,
		PlanID:         cache.PlanID,
		TenantStatus:   cache.Status,
	}, nil
}

func (s *WebhookService) checkSimulateRate(ctx context.Context) error {
	limit := s.conf.Billing.SimulateRateLimit
	if limit <= 0 {
		limit = constants.DefaultSimulateRateLimit
	}
	window := constants.DefaultSimulateRateWindow
	if s.conf.Billing.SimulateRateWindow != "" {
		if d, err := time.ParseDuration(s.conf.Billing.SimulateRateWindow); err == nil && d > 0 {
			window = d
		}
	}

	n, err := s.counter.Increment(ctx, "simulate_billing_event")
	if err != nil {
		// 计数器故障时放行，诊断接口可用性优先
		s.log.Warnf("Simulate rate counter unavailable: %v", err)
		return nil
	}
	if n == 1 {
		if err := s.counter.ResetAfter(ctx, "simulate_billing_event", window); err != nil {
			s.log.Warnf("Failed to arm simulate rate window: %v", err)
		}
	}
	if n > int64(limit) {
		return kerrors.New(429, "RATE_LIMITED", "simulate rate limit exceeded, retry later")
	}
	return nil
}

// syntheticProviderSubID 由 email+planCode 派生的确定性订阅ID
func syntheticProviderSubID(email, planCode string) string {
	sum := sha256.Sum256([]byte("simulate|" + email + "|" + planCode))
	return "sim-" + hex.EncodeToString(sum[:8])
}

// audit 落一条投递审计记录，失败只告警不影响主流程
func (s *WebhookService) audit(ctx context.Context, eventType string, bodySize int, sigValid bool, reason string) {
	rec := &biz.WebhookRecord{
		EventType:       eventType,
		BodySize:        bodySize,
		SignatureValid:  sigValid,
		ProcessingError: reason,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.recordRepo.Record(ctx, rec); err != nil {
		s.log.Warnf("Failed to record webhook audit entry: %v", err)
	}
}

// coarseError 把内部错误折叠为对服务商暴露的粗粒度类别
// 已归类的 reason 原样返回，其余一律按存储故障处理（瞬时，可重试）
func coarseError(err error) error {
	switch kerrors.Reason(err) {
	case serrors.ReasonSignatureInvalid,
		serrors.ReasonPayloadUnparseable,
		serrors.ReasonUnknownTenant,
		serrors.ReasonUnknownPlan,
		serrors.ReasonStoreWriteFailed,
		serrors.ReasonReconcileFailed:
		return err
	}
	return serrors.ErrStoreWriteFailed(err)
}
