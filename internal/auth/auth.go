package auth

import (
	"context"

	"github.com/go-kratos/kratos/v2/errors"
)

// 定义 context key
type contextKey string

const (
	// OperatorIDKey 操作员ID的context key
	OperatorIDKey contextKey = "operator_id"
	// OperatorRoleKey 操作员角色的context key
	OperatorRoleKey contextKey = "operator_role"
)

// Role 操作员角色
type Role string

const (
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// WithOperator 向 context 写入操作员身份（由管理端点的鉴权过滤器调用）
func WithOperator(ctx context.Context, operatorID string, role Role) context.Context {
	ctx = context.WithValue(ctx, OperatorIDKey, operatorID)
	return context.WithValue(ctx, OperatorRoleKey, role)
}

// GetOperatorFromContext 从context中获取操作员ID
func GetOperatorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(OperatorIDKey).(string)
	return id, ok
}

// GetRoleFromContext 从context中获取操作员角色
func GetRoleFromContext(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(OperatorRoleKey).(Role)
	return role, ok
}

// IsAdmin 判断当前操作员是否为管理员
func IsAdmin(ctx context.Context) bool {
	role, ok := GetRoleFromContext(ctx)
	return ok && role == RoleAdmin
}

// CheckAdmin 检查当前调用方是否具备管理员权限
// 所有手工对账/迁移/回填端点都是内部运维工具，只对管理员开放
func CheckAdmin(ctx context.Context) error {
	if _, ok := GetOperatorFromContext(ctx); !ok {
		return errors.Unauthorized("UNAUTHORIZED", "authentication required")
	}
	if !IsAdmin(ctx) {
		return errors.Forbidden("FORBIDDEN", "permission denied: admin role required")
	}
	return nil
}
