package biz

import (
	"context"
	"fmt"
	"sort"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/constants"
	"kaiyue_tech/subscription-sync-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/google/uuid"
)

// TenantOpResult 批量操作的单租户结果
type TenantOpResult struct {
	TenantID string
	Status   string // success, error, skipped
	Message  string
}

// BulkReport 批量操作汇总
type BulkReport struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Results   []*TenantOpResult
}

func (r *BulkReport) add(res *TenantOpResult) {
	r.Results = append(r.Results, res)
	switch res.Status {
	case constants.BulkResultSuccess:
		r.Succeeded++
	case constants.BulkResultError:
		r.Failed++
	case constants.BulkResultSkipped:
		r.Skipped++
	}
}

// MigrationChange 套餐迁移的单条变更（dry run 返回的预演 diff）
type MigrationChange struct {
	TenantID       string
	SubscriptionID string
	FromPlanID     string
	ToPlanID       string
	Status         string // 迁移绝不改动状态，这里仅回显当前值
}

// AdminUsecase 管理覆盖操作
// 每个操作都是三步: 直接改订阅存储（绕过迁移表）→ 追加历史 → 调用 Reconcile；
// 永远不直接写租户缓存
type AdminUsecase struct {
	planRepo    PlanRepo
	subRepo     SubscriptionRepo
	historyRepo SubscriptionHistoryRepo
	tenantRepo  TenantRepo
	reconciler  *ReconcilerUsecase
	rs          *redsync.Redsync
	tx          Transaction
	log         *log.Helper
	// lockTenant 批量操作的单租户锁；返回 ok=false 表示该租户正在被处理
	lockTenant func(ctx context.Context, tenantID string) (release func(), ok bool)
}

// NewAdminUsecase 创建管理覆盖用例
func NewAdminUsecase(
	planRepo PlanRepo,
	subRepo SubscriptionRepo,
	historyRepo SubscriptionHistoryRepo,
	tenantRepo TenantRepo,
	reconciler *ReconcilerUsecase,
	rs *redsync.Redsync,
	tx Transaction,
	logger log.Logger,
) *AdminUsecase {
	uc := &AdminUsecase{
		planRepo:    planRepo,
		subRepo:     subRepo,
		historyRepo: historyRepo,
		tenantRepo:  tenantRepo,
		reconciler:  reconciler,
		rs:          rs,
		tx:          tx,
		log:         log.NewHelper(logger),
	}
	uc.lockTenant = uc.redsyncTenantLock
	return uc
}

// redsyncTenantLock 用分布式锁避免同一租户的批量操作互相踩踏；未接 Redis 的部署不加锁
func (uc *AdminUsecase) redsyncTenantLock(ctx context.Context, tenantID string) (func(), bool) {
	if uc.rs == nil {
		return func() {}, true
	}
	mutex := uc.rs.NewMutex(
		fmt.Sprintf("admin_bulk_lock:tenant:%s", tenantID),
		redsync.WithExpiry(constants.BulkTenantLockExpiration),
		redsync.WithTries(constants.BulkTenantLockRetries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, false
	}
	return func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			uc.log.Warnf("Failed to unlock tenant %s: %v", tenantID, err)
		}
	}, true
}

// ForceCancel 强制取消租户的全部未终结订阅
// 绕过迁移表直接置为 cancelled，然后重算缓存
func (uc *AdminUsecase) ForceCancel(ctx context.Context, tenantID, operator string) (*TenantCache, error) {
	uc.log.Infof("ForceCancel: tenantID=%s, operator=%s", tenantID, operator)

	subs, err := uc.subRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = uc.tx.Exec(ctx, func(ctx context.Context) error {
		for _, sub := range subs {
			if sub.Status == constants.StatusCancelled || sub.Status == constants.StatusExpired {
				continue
			}
			oldStatus := sub.Status
			sub.Status = constants.StatusCancelled
			sub.EndsAt = &now
			sub.UpdatedAt = now
			if err := uc.subRepo.Save(ctx, sub); err != nil {
				return err
			}
			entry := &HistoryEntry{
				SubscriptionID: sub.SubscriptionID,
				TenantID:       tenantID,
				Action:         constants.ActionAdminForceCancel,
				OldStatus:      oldStatus,
				NewStatus:      constants.StatusCancelled,
				Detail:         fmt.Sprintf("forced by operator %s", operator),
				CreatedAt:      now,
			}
			if err := uc.historyRepo.Append(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		uc.log.Errorf("ForceCancel: store write failed for tenant %s: %v", tenantID, err)
		return nil, errors.ErrStoreWriteFailed(err)
	}

	cache, err := uc.reconciler.Reconcile(ctx, tenantID)
	if err != nil {
		return nil, errors.ErrReconcileFailed(err)
	}
	return cache, nil
}

// MigratePlan 把源套餐上的全部订阅迁移到目标套餐
// 只换 plan_id 和功能点快照，绝不改状态——并发 webhook 改掉的状态原样保留。
// 逐租户独立处理，单租户失败不影响其余租户；dryRun 只计算 diff 不提交
func (uc *AdminUsecase) MigratePlan(ctx context.Context, sourcePlanCode, targetPlanCode string, dryRun bool) (*BulkReport, []*MigrationChange, error) {
	uc.log.Infof("MigratePlan: source=%s, target=%s, dryRun=%v", sourcePlanCode, targetPlanCode, dryRun)

	// 1. 解析源/目标套餐
	source, err := uc.planRepo.GetPlanByProviderCode(ctx, sourcePlanCode)
	if err != nil {
		return nil, nil, err
	}
	if source == nil {
		return nil, nil, errors.ErrUnknownPlan(sourcePlanCode)
	}
	target, err := uc.planRepo.GetPlanByProviderCode(ctx, targetPlanCode)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return nil, nil, errors.ErrUnknownPlan(targetPlanCode)
	}

	// 2. 找出源套餐上的全部订阅，按租户分组
	subs, err := uc.subRepo.ListByPlan(ctx, source.PlanID)
	if err != nil {
		return nil, nil, err
	}
	byTenant := make(map[string][]*Subscription)
	for _, s := range subs {
		byTenant[s.TenantID] = append(byTenant[s.TenantID], s)
	}
	tenantIDs := make([]string, 0, len(byTenant))
	for id := range byTenant {
		tenantIDs = append(tenantIDs, id)
	}
	sort.Strings(tenantIDs)

	report := &BulkReport{Total: len(tenantIDs)}
	var changes []*MigrationChange

	// 3. 逐租户迁移
	for _, tenantID := range tenantIDs {
		for _, sub := range byTenant[tenantID] {
			changes = append(changes, &MigrationChange{
				TenantID:       tenantID,
				SubscriptionID: sub.SubscriptionID,
				FromPlanID:     source.PlanID,
				ToPlanID:       target.PlanID,
				Status:         sub.Status,
			})
		}

		if dryRun {
			report.add(&TenantOpResult{TenantID: tenantID, Status: constants.BulkResultSuccess, Message: "dry run - not executed"})
			continue
		}

		res := uc.migrateTenant(ctx, tenantID, byTenant[tenantID], target)
		report.add(res)
	}

	uc.log.Infof("MigratePlan completed: total=%d, success=%d, failed=%d, skipped=%d", report.Total, report.Succeeded, report.Failed, report.Skipped)
	return report, changes, nil
}

// migrateTenant 迁移单个租户的订阅（持有该租户的分布式锁）
func (uc *AdminUsecase) migrateTenant(ctx context.Context, tenantID string, subs []*Subscription, target *Plan) *TenantOpResult {
	release, ok := uc.lockTenant(ctx, tenantID)
	if !ok {
		uc.log.Infof("MigratePlan: skipping tenant %s, lock busy", tenantID)
		return &TenantOpResult{TenantID: tenantID, Status: constants.BulkResultSkipped, Message: "lock busy or already processing"}
	}
	defer release()

	now := time.Now().UTC()
	err := uc.tx.Exec(ctx, func(ctx context.Context) error {
		for _, sub := range subs {
			fromPlanID := sub.PlanID
			sub.PlanID = target.PlanID
			sub.EnabledFeatures = append([]string(nil), target.Features...)
			sub.UpdatedAt = now
			if err := uc.subRepo.Save(ctx, sub); err != nil {
				return err
			}
			entry := &HistoryEntry{
				SubscriptionID: sub.SubscriptionID,
				TenantID:       tenantID,
				Action:         constants.ActionPlanMigrated,
				OldStatus:      sub.Status,
				NewStatus:      sub.Status,
				Detail:         fmt.Sprintf("plan %s -> %s (%s)", fromPlanID, target.PlanID, target.ProviderCode),
				CreatedAt:      now,
			}
			if err := uc.historyRepo.Append(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		uc.log.Errorf("MigratePlan: tenant %s failed: %v", tenantID, err)
		return &TenantOpResult{TenantID: tenantID, Status: constants.BulkResultError, Message: err.Error()}
	}

	if _, err := uc.reconciler.Reconcile(ctx, tenantID); err != nil {
		uc.log.Errorf("MigratePlan: reconcile failed for tenant %s: %v", tenantID, err)
		return &TenantOpResult{TenantID: tenantID, Status: constants.BulkResultError, Message: "migrated but reconcile failed: " + err.Error()}
	}
	return &TenantOpResult{TenantID: tenantID, Status: constants.BulkResultSuccess, Message: "migrated"}
}

// BackfillSubscriptions 为没有任何订阅记录的租户回填默认订阅
func (uc *AdminUsecase) BackfillSubscriptions(ctx context.Context, defaultPlanCode, defaultStatus string, dryRun bool) (*BulkReport, error) {
	uc.log.Infof("BackfillSubscriptions: planCode=%s, status=%s, dryRun=%v", defaultPlanCode, defaultStatus, dryRun)

	plan, err := uc.planRepo.GetPlanByProviderCode(ctx, defaultPlanCode)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, errors.ErrUnknownPlan(defaultPlanCode)
	}
	if defaultStatus == "" {
		defaultStatus = constants.StatusTrial
	}
	if !constants.Statuses[defaultStatus] {
		return nil, fmt.Errorf("invalid default status %q", defaultStatus)
	}

	tenantIDs, err := uc.tenantRepo.ListTenantIDsWithoutSubscription(ctx)
	if err != nil {
		return nil, err
	}

	report := &BulkReport{Total: len(tenantIDs)}
	for _, tenantID := range tenantIDs {
		if dryRun {
			report.add(&TenantOpResult{TenantID: tenantID, Status: constants.BulkResultSuccess, Message: "dry run - not executed"})
			continue
		}
		report.add(uc.backfillTenant(ctx, tenantID, plan, defaultStatus))
	}

	uc.log.Infof("BackfillSubscriptions completed: total=%d, success=%d, failed=%d", report.Total, report.Succeeded, report.Failed)
	return report, nil
}

// backfillTenant 回填单个租户（持有该租户的分布式锁，避免和并发 webhook 抢创建）
func (uc *AdminUsecase) backfillTenant(ctx context.Context, tenantID string, plan *Plan, status string) *TenantOpResult {
	release, ok := uc.lockTenant(ctx, tenantID)
	if !ok {
		uc.log.Infof("BackfillSubscriptions: skipping tenant %s, lock busy", tenantID)
		return &TenantOpResult{TenantID: tenantID, Status: constants.BulkResultSkipped, Message: "lock busy or already processing"}
	}
	defer release()

	// 拿到锁后复查: 并发 webhook 可能已经创建了订阅，此时回填应让位
	existing, err := uc.subRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return &TenantOpResult{TenantID: tenantID, Status: constants.BulkResultError, Message: err.Error()}
	}
	if len(existing) > 0 {
		return &TenantOpResult{TenantID: tenantID, Status: constants.BulkResultSkipped, Message: "subscription appeared concurrently"}
	}

	now := time.Now().UTC()
	sub := &Subscription{
		SubscriptionID:  uuid.New().String(),
		TenantID:        tenantID,
		PlanID:          plan.PlanID,
		Status:          status,
		StartedAt:       now,
		EnabledFeatures: append([]string(nil), plan.Features...),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	entry := &HistoryEntry{
		SubscriptionID: sub.SubscriptionID,
		TenantID:       tenantID,
		Action:         constants.ActionBackfilled,
		NewStatus:      status,
		Detail:         fmt.Sprintf("backfilled default subscription, plan_code=%s", plan.ProviderCode),
		CreatedAt:      now,
	}
	err = uc.tx.Exec(ctx, func(ctx context.Context) error {
		if err := uc.subRepo.Save(ctx, sub); err != nil {
			return err
		}
		return uc.historyRepo.Append(ctx, entry)
	})
	if err != nil {
		uc.log.Errorf("BackfillSubscriptions: tenant %s failed: %v", tenantID, err)
		return &TenantOpResult{TenantID: tenantID, Status: constants.BulkResultError, Message: err.Error()}
	}
	if _, err := uc.reconciler.Reconcile(ctx, tenantID); err != nil {
		return &TenantOpResult{TenantID: tenantID, Status: constants.BulkResultError, Message: "backfilled but reconcile failed: " + err.Error()}
	}
	return &TenantOpResult{TenantID: tenantID, Status: constants.BulkResultSuccess, Message: "backfilled"}
}

// ListTenantHistory 分页查询租户的订阅历史
func (uc *AdminUsecase) ListTenantHistory(ctx context.Context, tenantID string, page, pageSize int) ([]*HistoryEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}
	return uc.historyRepo.ListByTenant(ctx, tenantID, page, pageSize)
}

// ResyncAll 全量重算所有租户的缓存
// 缓存可能陈旧时的兜底工具（ReconcileFailed 之后、手工修库之后）
func (uc *AdminUsecase) ResyncAll(ctx context.Context) (*BulkReport, error) {
	uc.log.Infof("ResyncAll: starting full cache resync")

	tenantIDs, err := uc.tenantRepo.ListTenantIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &BulkReport{Total: len(tenantIDs)}
	for _, tenantID := range tenantIDs {
		if _, err := uc.reconciler.Reconcile(ctx, tenantID); err != nil {
			uc.log.Errorf("ResyncAll: tenant %s failed: %v", tenantID, err)
			report.add(&TenantOpResult{TenantID: tenantID, Status: constants.BulkResultError, Message: err.Error()})
			continue
		}
		report.add(&TenantOpResult{TenantID: tenantID, Status: constants.BulkResultSuccess, Message: "reconciled"})
	}

	uc.log.Infof("ResyncAll completed: total=%d, success=%d, failed=%d", report.Total, report.Succeeded, report.Failed)
	return report, nil
}

// ExpireOverdueSubscriptions 把已过 ends_at 的 trial/active 订阅置为 expired
// 定时任务调用；逐条处理并为每条追加历史，然后重算所属租户缓存
func (uc *AdminUsecase) ExpireOverdueSubscriptions(ctx context.Context) (int, []string, error) {
	now := time.Now().UTC()
	subs, err := uc.subRepo.ListOverdue(ctx, now)
	if err != nil {
		return 0, nil, err
	}
	if len(subs) == 0 {
		return 0, []string{}, nil
	}

	touched := make(map[string]bool)
	count := 0
	for _, sub := range subs {
		oldStatus := sub.Status
		sub.Status = constants.StatusExpired
		sub.UpdatedAt = now
		entry := &HistoryEntry{
			SubscriptionID: sub.SubscriptionID,
			TenantID:       sub.TenantID,
			Action:         constants.ActionExpiredSweep,
			OldStatus:      oldStatus,
			NewStatus:      constants.StatusExpired,
			Detail:         fmt.Sprintf("ends_at %s passed", sub.EndsAt.Format(time.RFC3339)),
			CreatedAt:      now,
		}
		err := uc.tx.Exec(ctx, func(ctx context.Context) error {
			if err := uc.subRepo.Save(ctx, sub); err != nil {
				return err
			}
			return uc.historyRepo.Append(ctx, entry)
		})
		if err != nil {
			uc.log.Errorf("ExpireOverdueSubscriptions: subscription %s failed: %v", sub.SubscriptionID, err)
			continue
		}
		count++
		touched[sub.TenantID] = true
	}

	tenantIDs := make([]string, 0, len(touched))
	for tenantID := range touched {
		tenantIDs = append(tenantIDs, tenantID)
		if _, err := uc.reconciler.Reconcile(ctx, tenantID); err != nil {
			uc.log.Errorf("ExpireOverdueSubscriptions: reconcile failed for tenant %s: %v", tenantID, err)
		}
	}
	sort.Strings(tenantIDs)

	uc.log.Infof("ExpireOverdueSubscriptions: expired %d subscriptions across %d tenants", count, len(tenantIDs))
	return count, tenantIDs, nil
}
