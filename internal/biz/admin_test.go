package biz

import (
	"context"
	"testing"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/constants"
	serrors "kaiyue_tech/subscription-sync-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdmin(store *fakeStore) *AdminUsecase {
	reconciler := newTestReconciler(store)
	return NewAdminUsecase(store, store, &fakeHistoryRepo{store: store}, store, reconciler, nil, store, log.DefaultLogger)
}

func TestForceCancel(t *testing.T) {
	store := seedStore()
	now := time.Now().UTC()
	store.addSub(&Subscription{
		SubscriptionID: "s1", TenantID: "t1", PlanID: "plan-pro",
		Status: constants.StatusActive, UpdatedAt: now,
	})
	store.addSub(&Subscription{
		SubscriptionID: "s2", TenantID: "t1", PlanID: "plan-basic",
		Status: constants.StatusExpired, UpdatedAt: now.Add(-time.Hour),
	})
	uc := newTestAdmin(store)

	cache, err := uc.ForceCancel(context.Background(), "t1", "ops-wang")
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCancelled, cache.Status)

	subs, _ := store.ListByTenant(context.Background(), "t1")
	for _, s := range subs {
		if s.SubscriptionID == "s1" {
			assert.Equal(t, constants.StatusCancelled, s.Status)
			require.NotNil(t, s.EndsAt)
		}
		if s.SubscriptionID == "s2" {
			// 已终结的订阅不再重复取消
			assert.Equal(t, constants.StatusExpired, s.Status)
		}
	}

	require.Len(t, store.history, 1)
	assert.Equal(t, constants.ActionAdminForceCancel, store.history[0].Action)
	assert.Contains(t, store.history[0].Detail, "ops-wang")
}

func TestMigratePlanDryRun(t *testing.T) {
	store := seedStore()
	store.addSub(&Subscription{
		SubscriptionID: "s1", TenantID: "t1", PlanID: "plan-pro",
		Status: constants.StatusActive, EnabledFeatures: []string{"ticketing", "analytics"},
	})
	uc := newTestAdmin(store)

	report, changes, err := uc.MigratePlan(context.Background(), "pro-monthly", "basic-monthly", true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Succeeded)

	require.Len(t, changes, 1)
	assert.Equal(t, "plan-pro", changes[0].FromPlanID)
	assert.Equal(t, "plan-basic", changes[0].ToPlanID)
	assert.Equal(t, constants.StatusActive, changes[0].Status)

	// dry run 不产生任何写入
	subs, _ := store.ListByTenant(context.Background(), "t1")
	assert.Equal(t, "plan-pro", subs[0].PlanID)
	assert.Empty(t, store.history)
	assert.Zero(t, store.cacheWrites)
}

func TestMigratePlanKeepsStatus(t *testing.T) {
	store := seedStore()
	store.addSub(&Subscription{
		SubscriptionID: "s1", TenantID: "t1", PlanID: "plan-pro",
		Status: constants.StatusSuspended, EnabledFeatures: []string{"ticketing", "analytics"},
	})
	uc := newTestAdmin(store)

	report, _, err := uc.MigratePlan(context.Background(), "pro-monthly", "basic-monthly", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	subs, _ := store.ListByTenant(context.Background(), "t1")
	require.Len(t, subs, 1)
	assert.Equal(t, "plan-basic", subs[0].PlanID)
	// 状态原样保留，只换套餐和功能点快照
	assert.Equal(t, constants.StatusSuspended, subs[0].Status)
	assert.Equal(t, []string{"ticketing"}, subs[0].EnabledFeatures)

	require.Len(t, store.history, 1)
	assert.Equal(t, constants.ActionPlanMigrated, store.history[0].Action)
	assert.Equal(t, store.history[0].OldStatus, store.history[0].NewStatus)
}

func TestMigratePlanTenantIsolation(t *testing.T) {
	store := seedStore()
	store.addSub(&Subscription{
		SubscriptionID: "s1", TenantID: "t1", PlanID: "plan-pro",
		Status: constants.StatusActive,
	})
	store.addSub(&Subscription{
		SubscriptionID: "s2", TenantID: "t2", PlanID: "plan-pro",
		Status: constants.StatusActive,
	})
	store.failSaveTenants["t1"] = true
	uc := newTestAdmin(store)

	report, _, err := uc.MigratePlan(context.Background(), "pro-monthly", "basic-monthly", false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	// 失败租户不影响其余租户
	subs, _ := store.ListByTenant(context.Background(), "t2")
	assert.Equal(t, "plan-basic", subs[0].PlanID)
	subs, _ = store.ListByTenant(context.Background(), "t1")
	assert.Equal(t, "plan-pro", subs[0].PlanID)
}

func TestMigratePlanUnknownPlan(t *testing.T) {
	store := seedStore()
	uc := newTestAdmin(store)

	_, _, err := uc.MigratePlan(context.Background(), "pro-monthly", "enterprise-yearly", false)
	require.Error(t, err)
	assert.True(t, serrors.IsReason(err, serrors.ReasonUnknownPlan))
}

func TestBackfillSubscriptions(t *testing.T) {
	store := seedStore()
	store.addSub(&Subscription{
		SubscriptionID: "s1", TenantID: "t1", PlanID: "plan-pro",
		Status: constants.StatusActive,
	})
	uc := newTestAdmin(store)
	ctx := context.Background()

	t.Run("dry run", func(t *testing.T) {
		report, err := uc.BackfillSubscriptions(ctx, "basic-monthly", "", true)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Total)
		subs, _ := store.ListByTenant(ctx, "t2")
		assert.Empty(t, subs)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := uc.BackfillSubscriptions(ctx, "basic-monthly", "pending", false)
		assert.Error(t, err)
	})

	t.Run("real run", func(t *testing.T) {
		report, err := uc.BackfillSubscriptions(ctx, "basic-monthly", "", false)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Succeeded)

		// 只有没有订阅的租户被回填，默认 trial
		subs, _ := store.ListByTenant(ctx, "t2")
		require.Len(t, subs, 1)
		assert.Equal(t, constants.StatusTrial, subs[0].Status)
		assert.Equal(t, "plan-basic", subs[0].PlanID)

		tenant, _ := store.GetByID(ctx, "t2")
		assert.Equal(t, constants.StatusTrial, tenant.Cache.Status)

		// t1 原有订阅不受影响
		subs, _ = store.ListByTenant(ctx, "t1")
		assert.Len(t, subs, 1)
	})
}

// 拿不到租户锁时批量操作跳过该租户，不产生任何写入
func TestBulkOpsSkipTenantWhenLockBusy(t *testing.T) {
	store := seedStore()
	store.addSub(&Subscription{
		SubscriptionID: "s1", TenantID: "t1", PlanID: "plan-pro",
		Status: constants.StatusActive,
	})
	uc := newTestAdmin(store)
	uc.lockTenant = func(ctx context.Context, tenantID string) (func(), bool) {
		return nil, false
	}
	ctx := context.Background()

	report, _, err := uc.MigratePlan(ctx, "pro-monthly", "basic-monthly", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Succeeded)
	subs, _ := store.ListByTenant(ctx, "t1")
	assert.Equal(t, "plan-pro", subs[0].PlanID)

	report, err = uc.BackfillSubscriptions(ctx, "basic-monthly", "", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	subs, _ = store.ListByTenant(ctx, "t2")
	assert.Empty(t, subs)
	assert.Empty(t, store.history)
	assert.Zero(t, store.cacheWrites)
}

// 锁拿到了但并发 webhook 抢先建出了订阅，回填让位
func TestBackfillYieldsWhenSubscriptionAppears(t *testing.T) {
	store := seedStore()
	store.addSub(&Subscription{
		SubscriptionID: "s1", TenantID: "t1", PlanID: "plan-pro",
		Status: constants.StatusActive,
	})
	uc := newTestAdmin(store)
	uc.lockTenant = func(ctx context.Context, tenantID string) (func(), bool) {
		// 候选名单是在加锁前筛出来的；锁内模拟 webhook 赶在复查前落了一条订阅
		store.addSub(&Subscription{
			SubscriptionID: "race", TenantID: tenantID, PlanID: "plan-pro",
			Status: constants.StatusTrial, ProviderSubscriptionID: "psub-race",
		})
		return func() {}, true
	}
	ctx := context.Background()

	report, err := uc.BackfillSubscriptions(ctx, "basic-monthly", "", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Succeeded)

	// t2 只有 webhook 建的那条，没有回填的第二条
	subs, _ := store.ListByTenant(ctx, "t2")
	require.Len(t, subs, 1)
	assert.Equal(t, "psub-race", subs[0].ProviderSubscriptionID)
}

func TestResyncAll(t *testing.T) {
	store := seedStore()
	store.addSub(&Subscription{
		SubscriptionID: "s1", TenantID: "t1", PlanID: "plan-pro",
		Status: constants.StatusActive, UpdatedAt: time.Now().UTC(),
	})
	// t1 缓存陈旧，t2 缓存应保持为空
	store.tenants[0].Cache = TenantCache{SubscriptionID: "stale", Status: constants.StatusExpired}
	uc := newTestAdmin(store)

	report, err := uc.ResyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Succeeded)

	tenant, _ := store.GetByID(context.Background(), "t1")
	assert.Equal(t, "s1", tenant.Cache.SubscriptionID)
	assert.Equal(t, constants.StatusActive, tenant.Cache.Status)

	tenant, _ = store.GetByID(context.Background(), "t2")
	assert.True(t, tenant.Cache.IsEmpty())
}

func TestExpireOverdueSubscriptions(t *testing.T) {
	store := seedStore()
	past := time.Now().UTC().Add(-24 * time.Hour)
	future := time.Now().UTC().Add(24 * time.Hour)
	store.addSub(&Subscription{
		SubscriptionID: "s1", TenantID: "t1", PlanID: "plan-pro",
		Status: constants.StatusTrial, EndsAt: &past,
	})
	store.addSub(&Subscription{
		SubscriptionID: "s2", TenantID: "t2", PlanID: "plan-pro",
		Status: constants.StatusActive, EndsAt: &future,
	})
	uc := newTestAdmin(store)

	count, tenantIDs, err := uc.ExpireOverdueSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"t1"}, tenantIDs)

	subs, _ := store.ListByTenant(context.Background(), "t1")
	assert.Equal(t, constants.StatusExpired, subs[0].Status)
	tenant, _ := store.GetByID(context.Background(), "t1")
	assert.Equal(t, constants.StatusExpired, tenant.Cache.Status)

	// 未到期的订阅不受影响
	subs, _ = store.ListByTenant(context.Background(), "t2")
	assert.Equal(t, constants.StatusActive, subs[0].Status)

	require.Len(t, store.history, 1)
	assert.Equal(t, constants.ActionExpiredSweep, store.history[0].Action)
}

func TestListTenantHistoryPaging(t *testing.T) {
	store := seedStore()
	uc := newTestAdmin(store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, &HistoryEntry{TenantID: "t1", Action: constants.ActionEventApplied}))
	}

	entries, total, err := uc.ListTenantHistory(ctx, "t1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, entries, 2)

	entries, _, err = uc.ListTenantHistory(ctx, "t1", 3, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// 非法分页参数回落到默认值
	entries, _, err = uc.ListTenantHistory(ctx, "t1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}
