package server

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"strconv"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/auth"
	"kaiyue_tech/subscription-sync-service/internal/conf"
	"kaiyue_tech/subscription-sync-service/internal/constants"
	"kaiyue_tech/subscription-sync-service/internal/service"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Bootstrap, webhook *service.WebhookService, admin *service.AdminService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
		http.ErrorEncoder(customErrorEncoder),
	}
	if c.Server.Http.Addr != "" {
		opts = append(opts, http.Address(c.Server.Http.Addr))
	}
	if c.Server.Http.Timeout != "" {
		if d, err := time.ParseDuration(c.Server.Http.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		}
	}
	srv := http.NewServer(opts...)

	registerWebhookRoutes(srv, webhook)
	registerAdminRoutes(srv, admin, c)

	// 注册健康检查端点
	srv.Route("/").GET("/health", func(ctx http.Context) error {
		return ctx.Result(200, map[string]string{"status": "ok", "service": "subscription-sync-service"})
	})

	return srv
}

// registerWebhookRoutes 注册 webhook 路由
// webhook 不走 DTO 绑定: 签名必须针对原始 body 字节校验，所以手工读 body
func registerWebhookRoutes(srv *http.Server, svc *service.WebhookService) {
	r := srv.Route("/v1/webhook")

	r.POST("/billing", func(ctx http.Context) error {
		rawBody, err := io.ReadAll(ctx.Request().Body)
		if err != nil {
			return kerrors.BadRequest("PAYLOAD_UNPARSEABLE", "failed to read request body")
		}
		signature := ctx.Header().Get(constants.SignatureHeader)

		reply, err := svc.HandleBillingWebhook(ctx.Request().Context(), rawBody, signature)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	// 诊断接口: 用 query 参数合成一条事件，跳过签名（生产环境禁用）
	r.GET("/billing/simulate", func(ctx http.Context) error {
		q := ctx.Query()
		req := &service.SimulateEventRequest{
			EventType:              q.Get("eventType"),
			ProviderSubscriptionID: q.Get("providerSubscriptionId"),
			PlanCode:               q.Get("planCode"),
			BuyerEmail:             q.Get("email"),
			StatusHint:             q.Get("statusHint"),
		}
		reply, err := svc.SimulateBillingEvent(ctx.Request().Context(), req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

// registerAdminRoutes 注册管理路由
// 管理端点靠 X-Admin-Token 鉴权，令牌由网关/运维配置下发
func registerAdminRoutes(srv *http.Server, svc *service.AdminService, c *conf.Bootstrap) {
	r := srv.Route("/v1/admin")

	r.POST("/reconcile", func(ctx http.Context) error {
		authed, err := adminContext(ctx, c)
		if err != nil {
			return err
		}
		var req service.ReconcileTenantRequest
		if err := ctx.Bind(&req); err != nil {
			return kerrors.BadRequest("INVALID_ARGUMENT", "invalid request body")
		}
		reply, err := svc.ReconcileTenant(authed, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/migrate-plan", func(ctx http.Context) error {
		authed, err := adminContext(ctx, c)
		if err != nil {
			return err
		}
		var req service.MigratePlanRequest
		if err := ctx.Bind(&req); err != nil {
			return kerrors.BadRequest("INVALID_ARGUMENT", "invalid request body")
		}
		reply, err := svc.MigratePlan(authed, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/backfill-subscriptions", func(ctx http.Context) error {
		authed, err := adminContext(ctx, c)
		if err != nil {
			return err
		}
		var req service.BackfillRequest
		if err := ctx.Bind(&req); err != nil {
			return kerrors.BadRequest("INVALID_ARGUMENT", "invalid request body")
		}
		reply, err := svc.BackfillSubscriptions(authed, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/resync", func(ctx http.Context) error {
		authed, err := adminContext(ctx, c)
		if err != nil {
			return err
		}
		reply, err := svc.ResyncAll(authed)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/tenants/{tenantId}/features/{featureId}", func(ctx http.Context) error {
		authed, err := adminContext(ctx, c)
		if err != nil {
			return err
		}
		vars := ctx.Vars()
		reply, err := svc.HasFeature(authed, vars.Get("tenantId"), vars.Get("featureId"))
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/tenants/{tenantId}/history", func(ctx http.Context) error {
		authed, err := adminContext(ctx, c)
		if err != nil {
			return err
		}
		q := ctx.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		pageSize, _ := strconv.Atoi(q.Get("pageSize"))
		reply, err := svc.TenantHistory(authed, ctx.Vars().Get("tenantId"), page, pageSize)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

// adminContext 校验管理令牌并在 context 里写入操作员身份
func adminContext(ctx http.Context, c *conf.Bootstrap) (context.Context, error) {
	token := ctx.Header().Get(constants.AdminTokenHeader)
	if c.Server.AdminToken == "" || token == "" || token != c.Server.AdminToken {
		return nil, kerrors.Unauthorized("UNAUTHORIZED", "admin token required")
	}
	operator := ctx.Header().Get("X-Operator-Id")
	if operator == "" {
		operator = "admin"
	}
	return auth.WithOperator(ctx.Request().Context(), operator, auth.RoleAdmin), nil
}

func customErrorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	status := stdhttp.StatusInternalServerError
	response := map[string]interface{}{
		"code":    status,
		"message": "internal server error",
	}

	if se != nil {
		status = mapErrorStatus(int(se.Code))
		response["code"] = se.Code
		response["reason"] = se.Reason
		response["message"] = se.Message
		if len(se.Metadata) > 0 {
			response["metadata"] = se.Metadata
		}
	} else if err != nil {
		response["message"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func mapErrorStatus(code int) int {
	if code >= 100 && code < 600 {
		return code
	}
	return stdhttp.StatusInternalServerError
}
