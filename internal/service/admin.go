package service

import (
	"context"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/auth"
	"kaiyue_tech/subscription-sync-service/internal/biz"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// TenantCacheView 租户缓存视图
type TenantCacheView struct {
	SubscriptionID string `json:"subscription_id,omitempty"`
	PlanID         string `json:"plan_id,omitempty"`
	PlanName       string `json:"plan_name,omitempty"`
	ProviderCode   string `json:"provider_code,omitempty"`
	Status         string `json:"status,omitempty"`
}

// SubscriptionView 订阅记录视图
type SubscriptionView struct {
	SubscriptionID         string     `json:"subscription_id"`
	PlanID                 string     `json:"plan_id"`
	ProviderSubscriptionID string     `json:"provider_subscription_id,omitempty"`
	Status                 string     `json:"status"`
	StartedAt              time.Time  `json:"started_at"`
	EndsAt                 *time.Time `json:"ends_at,omitempty"`
	RenewsAt               *time.Time `json:"renews_at,omitempty"`
	EnabledFeatures        []string   `json:"enabled_features,omitempty"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// HistoryEntryView 历史记录视图
type HistoryEntryView struct {
	HistoryID      uint64    `json:"history_id"`
	SubscriptionID string    `json:"subscription_id"`
	Action         string    `json:"action"`
	EventType      string    `json:"event_type,omitempty"`
	OldStatus      string    `json:"old_status,omitempty"`
	NewStatus      string    `json:"new_status,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReconcileTenantRequest 手工对账请求（tenant_id 和 email 二选一）
type ReconcileTenantRequest struct {
	TenantID    string `json:"tenant_id"`
	Email       string `json:"email"`
	ForceCancel bool   `json:"force_cancel"`
}

// ReconcileTenantReply 手工对账结果
type ReconcileTenantReply struct {
	TenantID      string              `json:"tenant_id"`
	CacheBefore   *TenantCacheView    `json:"cache_before"`
	CacheAfter    *TenantCacheView    `json:"cache_after"`
	Subscriptions []*SubscriptionView `json:"subscriptions"`
}

// MigratePlanRequest 套餐迁移请求
type MigratePlanRequest struct {
	SourcePlanCode string `json:"source_plan_code"`
	TargetPlanCode string `json:"target_plan_code"`
	DryRun         bool   `json:"dry_run"`
}

// MigrationChangeView 迁移 diff 视图
type MigrationChangeView struct {
	TenantID       string `json:"tenant_id"`
	SubscriptionID string `json:"subscription_id"`
	FromPlanID     string `json:"from_plan_id"`
	ToPlanID       string `json:"to_plan_id"`
	Status         string `json:"status"`
}

// BulkReportView 批量操作汇总视图
type BulkReportView struct {
	Total     int                  `json:"total"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Skipped   int                  `json:"skipped"`
	Results   []*TenantOpResultView `json:"results"`
}

// TenantOpResultView 批量操作单租户结果视图
type TenantOpResultView struct {
	TenantID string `json:"tenant_id"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// MigratePlanReply 套餐迁移结果
type MigratePlanReply struct {
	DryRun  bool                   `json:"dry_run"`
	Report  *BulkReportView        `json:"report"`
	Changes []*MigrationChangeView `json:"changes"`
}

// BackfillRequest 回填请求
type BackfillRequest struct {
	DefaultPlanCode string `json:"default_plan_code"`
	DefaultStatus   string `json:"default_status"`
	DryRun          bool   `json:"dry_run"`
}

// BackfillReply 回填结果
type BackfillReply struct {
	DryRun bool            `json:"dry_run"`
	Report *BulkReportView `json:"report"`
}

// ResyncReply 全量重算结果
type ResyncReply struct {
	Report *BulkReportView `json:"report"`
}

// HasFeatureReply 功能点查询结果
type HasFeatureReply struct {
	TenantID  string `json:"tenant_id"`
	FeatureID string `json:"feature_id"`
	Enabled   bool   `json:"enabled"`
}

// TenantHistoryReply 租户历史分页结果
type TenantHistoryReply struct {
	TenantID string              `json:"tenant_id"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Entries  []*HistoryEntryView `json:"entries"`
}

// AdminService 管理覆盖端点
// 内部运维工具，全部操作要求 admin 角色
type AdminService struct {
	admin      *biz.AdminUsecase
	reconciler *biz.ReconcilerUsecase
	tenant     *biz.TenantUsecase
	log        *log.Helper
}

// NewAdminService 创建管理服务
func NewAdminService(
	admin *biz.AdminUsecase,
	reconciler *biz.ReconcilerUsecase,
	tenant *biz.TenantUsecase,
	logger log.Logger,
) *AdminService {
	return &AdminService{
		admin:      admin,
		reconciler: reconciler,
		tenant:     tenant,
		log:        log.NewHelper(logger),
	}
}

// ReconcileTenant 手工触发单租户对账，可选强制取消
// 返回对账前后的缓存和全部订阅记录，供运维核对
func (s *AdminService) ReconcileTenant(ctx context.Context, req *ReconcileTenantRequest) (*ReconcileTenantReply, error) {
	if err := auth.CheckAdmin(ctx); err != nil {
		return nil, err
	}
	if req.TenantID == "" && req.Email == "" {
		return nil, kerrors.BadRequest("INVALID_ARGUMENT", "tenant_id or email is required")
	}

	tenant, err := s.reconciler.ResolveTenant(ctx, req.TenantID, req.Email)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, kerrors.NotFound("UNKNOWN_TENANT", "tenant not found")
	}

	before := cacheView(tenant.Cache)

	var after *biz.TenantCache
	if req.ForceCancel {
		operator, _ := auth.GetOperatorFromContext(ctx)
		after, err = s.admin.ForceCancel(ctx, tenant.TenantID, operator)
	} else {
		after, err = s.reconciler.Reconcile(ctx, tenant.TenantID)
	}
	if err != nil {
		return nil, err
	}

	subs, err := s.reconciler.ListTenantSubscriptions(ctx, tenant.TenantID)
	if err != nil {
		return nil, err
	}

	return &ReconcileTenantReply{
		TenantID:      tenant.TenantID,
		CacheBefore:   before,
		CacheAfter:    cacheView(*after),
		Subscriptions: subscriptionViews(subs),
	}, nil
}

// MigratePlan 批量迁移套餐
func (s *AdminService) MigratePlan(ctx context.Context, req *MigratePlanRequest) (*MigratePlanReply, error) {
	if err := auth.CheckAdmin(ctx); err != nil {
		return nil, err
	}
	if req.SourcePlanCode == "" || req.TargetPlanCode == "" {
		return nil, kerrors.BadRequest("INVALID_ARGUMENT", "source_plan_code and target_plan_code are required")
	}
	if req.SourcePlanCode == req.TargetPlanCode {
		return nil, kerrors.BadRequest("INVALID_ARGUMENT", "source and target plan must differ")
	}

	report, changes, err := s.admin.MigratePlan(ctx, req.SourcePlanCode, req.TargetPlanCode, req.DryRun)
	if err != nil {
		return nil, err
	}

	changeViews := make([]*MigrationChangeView, len(changes))
	for i, c := range changes {
		changeViews[i] = &MigrationChangeView{
			TenantID:       c.TenantID,
			SubscriptionID: c.SubscriptionID,
			FromPlanID:     c.FromPlanID,
			ToPlanID:       c.ToPlanID,
			Status:         c.Status,
		}
	}
	return &MigratePlanReply{
		DryRun:  req.DryRun,
		Report:  reportView(report),
		Changes: changeViews,
	}, nil
}

// BackfillSubscriptions 为没有订阅的租户回填默认订阅
func (s *AdminService) BackfillSubscriptions(ctx context.Context, req *BackfillRequest) (*BackfillReply, error) {
	if err := auth.CheckAdmin(ctx); err != nil {
		return nil, err
	}
	if req.DefaultPlanCode == "" {
		return nil, kerrors.BadRequest("INVALID_ARGUMENT", "default_plan_code is required")
	}

	report, err := s.admin.BackfillSubscriptions(ctx, req.DefaultPlanCode, req.DefaultStatus, req.DryRun)
	if err != nil {
		return nil, err
	}
	return &BackfillReply{DryRun: req.DryRun, Report: reportView(report)}, nil
}

// ResyncAll 全量重算所有租户缓存
func (s *AdminService) ResyncAll(ctx context.Context) (*ResyncReply, error) {
	if err := auth.CheckAdmin(ctx); err != nil {
		return nil, err
	}
	report, err := s.admin.ResyncAll(ctx)
	if err != nil {
		return nil, err
	}
	return &ResyncReply{Report: reportView(report)}, nil
}

// HasFeature 查询租户当前是否具备某个功能点（只读缓存）
func (s *AdminService) HasFeature(ctx context.Context, tenantID, featureID string) (*HasFeatureReply, error) {
	if err := auth.CheckAdmin(ctx); err != nil {
		return nil, err
	}
	if tenantID == "" || featureID == "" {
		return nil, kerrors.BadRequest("INVALID_ARGUMENT", "tenant_id and feature_id are required")
	}
	enabled, err := s.tenant.HasFeature(ctx, tenantID, featureID)
	if err != nil {
		return nil, err
	}
	return &HasFeatureReply{TenantID: tenantID, FeatureID: featureID, Enabled: enabled}, nil
}

// TenantHistory 分页查询租户订阅历史
func (s *AdminService) TenantHistory(ctx context.Context, tenantID string, page, pageSize int) (*TenantHistoryReply, error) {
	if err := auth.CheckAdmin(ctx); err != nil {
		return nil, err
	}
	if tenantID == "" {
		return nil, kerrors.BadRequest("INVALID_ARGUMENT", "tenant_id is required")
	}
	entries, total, err := s.admin.ListTenantHistory(ctx, tenantID, page, pageSize)
	if err != nil {
		return nil, err
	}

	views := make([]*HistoryEntryView, len(entries))
	for i, e := range entries {
		views[i] = &HistoryEntryView{
			HistoryID:      e.HistoryID,
			SubscriptionID: e.SubscriptionID,
			Action:         e.Action,
			EventType:      e.EventType,
			OldStatus:      e.OldStatus,
			NewStatus:      e.NewStatus,
			Detail:         e.Detail,
			CreatedAt:      e.CreatedAt,
		}
	}
	return &TenantHistoryReply{
		TenantID: tenantID,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Entries:  views,
	}, nil
}

func cacheView(c biz.TenantCache) *TenantCacheView {
	return &TenantCacheView{
		SubscriptionID: c.SubscriptionID,
		PlanID:         c.PlanID,
		PlanName:       c.PlanName,
		ProviderCode:   c.ProviderCode,
		Status:         c.Status,
	}
}

func subscriptionViews(subs []*biz.Subscription) []*SubscriptionView {
	views := make([]*SubscriptionView, len(subs))
	for i, sub := range subs {
		views[i] = &SubscriptionView{
			SubscriptionID:         sub.SubscriptionID,
			PlanID:                 sub.PlanID,
			ProviderSubscriptionID: sub.ProviderSubscriptionID,
			Status:                 sub.Status,
			StartedAt:              sub.StartedAt,
			EndsAt:                 sub.EndsAt,
			RenewsAt:               sub.RenewsAt,
			EnabledFeatures:        sub.EnabledFeatures,
			UpdatedAt:              sub.UpdatedAt,
		}
	}
	return views
}

func reportView(r *biz.BulkReport) *BulkReportView {
	results := make([]*TenantOpResultView, len(r.Results))
	for i, res := range r.Results {
		results[i] = &TenantOpResultView{
			TenantID: res.TenantID,
			Status:   res.Status,
			Message:  res.Message,
		}
	}
	return &BulkReportView{
		Total:     r.Total,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Skipped:   r.Skipped,
		Results:   results,
	}
}
