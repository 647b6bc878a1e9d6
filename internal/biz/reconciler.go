package biz

import (
	"context"
	"fmt"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/constants"
	"kaiyue_tech/subscription-sync-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// ReconcilerUsecase 状态对账业务逻辑
// 唯一允许写租户缓存的组件；webhook、管理端点、批量任务都只写订阅存储，
// 然后调用 Reconcile 重算缓存
type ReconcilerUsecase struct {
	planRepo    PlanRepo
	subRepo     SubscriptionRepo
	historyRepo SubscriptionHistoryRepo
	tenantRepo  TenantRepo
	tx          Transaction
	log         *log.Helper
}

// NewReconcilerUsecase 创建对账用例
func NewReconcilerUsecase(
	planRepo PlanRepo,
	subRepo SubscriptionRepo,
	historyRepo SubscriptionHistoryRepo,
	tenantRepo TenantRepo,
	tx Transaction,
	logger log.Logger,
) *ReconcilerUsecase {
	return &ReconcilerUsecase{
		planRepo:    planRepo,
		subRepo:     subRepo,
		historyRepo: historyRepo,
		tenantRepo:  tenantRepo,
		tx:          tx,
		log:         log.NewHelper(logger),
	}
}

// ApplyEvent 应用一条规范化计费事件
// 幂等: 相同事件重复应用不会让状态产生第二次变化，历史照常追加
// 整个调用要么完整提交要么什么都不写（UnknownTenant/UnknownPlan 不产生任何写入）
func (uc *ReconcilerUsecase) ApplyEvent(ctx context.Context, ev *CanonicalEvent) (*TenantCache, error) {
	uc.log.Infof("ApplyEvent: type=%s, providerSubID=%s, planCode=%s", ev.Type, ev.ProviderSubscriptionID, ev.PlanProviderCode)

	// 1. 按邮箱解析租户（租户开通是外部协作方的职责，这里绝不创建）
	tenant, err := uc.tenantRepo.GetByEmail(ctx, ev.BuyerEmail)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		uc.log.Warnf("ApplyEvent: no tenant for buyer email %s", ev.BuyerEmail)
		return nil, errors.ErrUnknownTenant(ev.BuyerEmail)
	}

	// 2. 按服务商编码解析套餐；失败则整个事件拒绝，不产生任何写入
	plan, err := uc.planRepo.GetPlanByProviderCode(ctx, ev.PlanProviderCode)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		uc.log.Warnf("ApplyEvent: no plan for provider code %s", ev.PlanProviderCode)
		return nil, errors.ErrUnknownPlan(ev.PlanProviderCode)
	}

	// 3. 解析或创建该服务商订阅ID对应的订阅记录
	sub, err := uc.subRepo.GetByProviderSubscriptionID(ctx, tenant.TenantID, ev.ProviderSubscriptionID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	created := false
	if sub == nil {
		created = true
		sub = &Subscription{
			SubscriptionID:         uuid.New().String(),
			TenantID:               tenant.TenantID,
			ProviderSubscriptionID: ev.ProviderSubscriptionID,
			StartedAt:              ev.ReceivedAt,
			CreatedAt:              now,
		}
		// status_hint 只在首次创建时作为迁移表的起点参考，之后一律忽略
		if constants.Statuses[ev.StatusHint] {
			sub.Status = ev.StatusHint
		}
	}

	// 4. 通过迁移表计算新状态（(当前状态, 事件类型) 的纯函数）
	oldStatus := sub.Status
	newStatus := NextStatus(oldStatus, ev.Type)

	sub.Status = newStatus
	sub.PlanID = plan.PlanID
	sub.EnabledFeatures = append([]string(nil), plan.Features...)
	sub.UpdatedAt = now

	switch {
	case ev.Type == constants.EventRenewed && ev.NextChargeAt != nil:
		sub.RenewsAt = ev.NextChargeAt
	case newStatus == constants.StatusTrial && ev.TrialEndsAt != nil:
		sub.EndsAt = ev.TrialEndsAt
	case newStatus == constants.StatusCancelled || newStatus == constants.StatusExpired:
		endsAt := ev.ReceivedAt
		sub.EndsAt = &endsAt
	}

	// 5. 追加历史并持久化订阅（同一事务，避免历史与状态脱节）
	entry := &HistoryEntry{
		SubscriptionID: sub.SubscriptionID,
		TenantID:       tenant.TenantID,
		Action:         constants.ActionEventApplied,
		EventType:      ev.Type,
		OldStatus:      oldStatus,
		NewStatus:      newStatus,
		Detail: fmt.Sprintf("provider_subscription_id=%s plan_code=%s status_hint=%s created=%v received_at=%s",
			ev.ProviderSubscriptionID, ev.PlanProviderCode, ev.StatusHint, created, ev.ReceivedAt.Format(time.RFC3339)),
		CreatedAt: now,
	}
	err = uc.tx.Exec(ctx, func(ctx context.Context) error {
		if err := uc.subRepo.Save(ctx, sub); err != nil {
			return err
		}
		return uc.historyRepo.Append(ctx, entry)
	})
	if err != nil {
		uc.log.Errorf("ApplyEvent: store write failed for tenant %s: %v", tenant.TenantID, err)
		return nil, errors.ErrStoreWriteFailed(err)
	}

	uc.log.Infof("ApplyEvent: subscription %s %s -> %s (tenant %s)", sub.SubscriptionID, displayStatus(oldStatus), newStatus, tenant.TenantID)

	// 6. 重算租户缓存；失败时订阅写入已落盘，只需重试 Reconcile
	cache, err := uc.Reconcile(ctx, tenant.TenantID)
	if err != nil {
		return nil, errors.ErrReconcileFailed(err)
	}
	return cache, nil
}

// Reconcile 重算租户缓存
// 永远从该租户的全量订阅记录从头计算生效订阅，而不是增量修补缓存，
// 因此并发/乱序的 ApplyEvent 只要各自跟一次 Reconcile 就会收敛到同一缓存值，
// 热路径无需分布式锁
func (uc *ReconcilerUsecase) Reconcile(ctx context.Context, tenantID string) (*TenantCache, error) {
	tenant, err := uc.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, errors.ErrUnknownTenant(tenantID)
	}

	subs, err := uc.subRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	cache, err := uc.projection(ctx, EffectiveSubscription(subs))
	if err != nil {
		return nil, err
	}

	// 与当前值相同就不写，降低并发重算下的写竞争
	if cache != tenant.Cache {
		if err := uc.tenantRepo.UpdateCache(ctx, tenantID, cache); err != nil {
			uc.log.Errorf("Reconcile: failed to update cache for tenant %s: %v", tenantID, err)
			return nil, err
		}
		uc.log.Infof("Reconcile: tenant %s cache -> {sub=%s plan=%s status=%s}", tenantID, cache.SubscriptionID, cache.PlanID, cache.Status)
	}
	return &cache, nil
}

// projection 从生效订阅构建缓存投影，无生效订阅时为空缓存
func (uc *ReconcilerUsecase) projection(ctx context.Context, eff *Subscription) (TenantCache, error) {
	if eff == nil {
		return TenantCache{}, nil
	}
	cache := TenantCache{
		SubscriptionID: eff.SubscriptionID,
		PlanID:         eff.PlanID,
		Status:         eff.Status,
	}
	plan, err := uc.planRepo.GetPlan(ctx, eff.PlanID)
	if err != nil {
		return TenantCache{}, err
	}
	if plan != nil {
		cache.PlanName = plan.Name
		cache.ProviderCode = plan.ProviderCode
	} else {
		uc.log.Warnf("projection: subscription %s references missing plan %s", eff.SubscriptionID, eff.PlanID)
	}
	return cache, nil
}

// ListTenantSubscriptions 返回租户全部订阅记录（管理端点展示用）
func (uc *ReconcilerUsecase) ListTenantSubscriptions(ctx context.Context, tenantID string) ([]*Subscription, error) {
	return uc.subRepo.ListByTenant(ctx, tenantID)
}

// ResolveTenant 按ID或邮箱解析租户（管理端点入参二选一）
func (uc *ReconcilerUsecase) ResolveTenant(ctx context.Context, tenantID, email string) (*Tenant, error) {
	if tenantID != "" {
		return uc.tenantRepo.GetByID(ctx, tenantID)
	}
	if email != "" {
		return uc.tenantRepo.GetByEmail(ctx, email)
	}
	return nil, nil
}

func displayStatus(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
