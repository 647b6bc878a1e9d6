package errors

import (
	"strconv"

	"github.com/go-kratos/kratos/v2/errors"
)

// 订阅同步服务错误 reason 定义
// webhook 端点只向服务商返回这些粗粒度类别，内部存储错误不外泄
const (
	// ReasonSignatureInvalid 签名校验失败（拒绝，不可重试）
	ReasonSignatureInvalid = "SIGNATURE_INVALID"
	// ReasonPayloadUnparseable 载荷无法解析（拒绝，不可重试）
	ReasonPayloadUnparseable = "PAYLOAD_UNPARSEABLE"
	// ReasonUnknownTenant 租户不存在（拒绝单个事件）
	ReasonUnknownTenant = "UNKNOWN_TENANT"
	// ReasonUnknownPlan 套餐编码不存在（拒绝单个事件，不产生任何写入）
	ReasonUnknownPlan = "UNKNOWN_PLAN"
	// ReasonStoreWriteFailed 存储写入失败（瞬时，整个 ApplyEvent 可安全重试）
	ReasonStoreWriteFailed = "STORE_WRITE_FAILED"
	// ReasonReconcileFailed 缓存重算失败（瞬时，订阅写入已落盘，可单独重试 Reconcile）
	ReasonReconcileFailed = "RECONCILE_FAILED"
)

// ErrSignatureInvalid 签名校验失败
func ErrSignatureInvalid() *errors.Error {
	return errors.Unauthorized(ReasonSignatureInvalid, "webhook signature verification failed")
}

// ErrPayloadUnparseable 载荷无法解析
// 按约定只记录原始 body 大小，绝不记录内容（可能包含凭证）
func ErrPayloadUnparseable(bodySize int) *errors.Error {
	return errors.BadRequest(ReasonPayloadUnparseable, "webhook payload could not be parsed").
		WithMetadata(map[string]string{"body_size": strconv.Itoa(bodySize)})
}

// ErrUnknownTenant 租户不存在
func ErrUnknownTenant(email string) *errors.Error {
	return errors.NotFound(ReasonUnknownTenant, "no tenant found for buyer email "+email)
}

// ErrUnknownPlan 套餐编码不存在
func ErrUnknownPlan(providerCode string) *errors.Error {
	return errors.NotFound(ReasonUnknownPlan, "no plan found for provider code "+providerCode)
}

// ErrStoreWriteFailed 存储写入失败
func ErrStoreWriteFailed(cause error) *errors.Error {
	return errors.InternalServer(ReasonStoreWriteFailed, "subscription store write failed").WithCause(cause)
}

// ErrReconcileFailed 缓存重算失败
// 注意: 订阅写入此时已经落盘，调用方应视为 "subscription updated, cache may be stale"
// 并单独重试 Reconcile，而不是回滚订阅写入
func ErrReconcileFailed(cause error) *errors.Error {
	return errors.InternalServer(ReasonReconcileFailed, "tenant cache reconcile failed, subscription write is durable").WithCause(cause)
}

// IsReason 判断错误的 reason
func IsReason(err error, reason string) bool {
	return errors.Reason(err) == reason
}
