package constants

import "time"

// 订阅状态
const (
	StatusTrial     = "trial"
	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
	StatusSuspended = "suspended"
)

// Statuses 所有合法的订阅状态
var Statuses = map[string]bool{
	StatusTrial:     true,
	StatusActive:    true,
	StatusCancelled: true,
	StatusExpired:   true,
	StatusSuspended: true,
}

// 规范化事件类型（来自计费服务商 webhook）
const (
	EventPurchased = "purchased"
	EventActivated = "activated"
	EventRenewed   = "renewed"
	EventCancelled = "cancelled"
	EventExpired   = "expired"
	EventSuspended = "suspended"
)

// EventTypes 所有合法的事件类型
var EventTypes = map[string]bool{
	EventPurchased: true,
	EventActivated: true,
	EventRenewed:   true,
	EventCancelled: true,
	EventExpired:   true,
	EventSuspended: true,
}

// 历史记录操作类型
const (
	ActionEventApplied     = "event_applied"
	ActionAdminForceCancel = "admin_force_cancel"
	ActionPlanMigrated     = "plan_migrated"
	ActionBackfilled       = "backfilled"
	ActionExpiredSweep     = "expired_sweep"
)

// 批量处理单租户结果状态
const (
	BulkResultSuccess = "success"
	BulkResultError   = "error"
	BulkResultSkipped = "skipped"
)

// 分页相关常量
const (
	// DefaultPageSize 默认分页大小
	DefaultPageSize = 10
	// MaxPageSize 最大分页大小
	MaxPageSize = 100
)

// 分布式锁相关常量
const (
	// BulkTenantLockExpiration 批量处理单租户锁过期时间
	BulkTenantLockExpiration = 2 * time.Minute
	// BulkTenantLockRetries 批量处理单租户锁重试次数（失败说明正在处理）
	BulkTenantLockRetries = 1
)

// 诊断接口限流默认值
const (
	// DefaultSimulateRateLimit 窗口内最大请求数
	DefaultSimulateRateLimit = 30
	// DefaultSimulateRateWindow 限流窗口
	DefaultSimulateRateWindow = time.Minute
)

// 签名头
const (
	// SignatureHeader webhook 签名头
	SignatureHeader = "X-Webhook-Signature"
	// AdminTokenHeader 管理端点访问令牌头
	AdminTokenHeader = "X-Admin-Token"
)
