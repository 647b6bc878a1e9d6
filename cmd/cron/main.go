package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/conf"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	if err := bc.Validate(); err != nil {
		panic(err)
	}

	// 初始化应用
	app, cleanup, err := wireApp(&bc)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	// 1. 过期清扫 - 每天凌晨 2 点执行
	// 把已过 ends_at 的 trial/active 订阅置为 expired 并重算所属租户缓存
	_, err = cronScheduler.AddFunc("0 0 2 * * *", func() {
		log.Println("[CRON] Starting overdue subscription sweep...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		count, tenantIDs, err := app.adminUsecase.ExpireOverdueSubscriptions(ctx)
		if err != nil {
			log.Printf("[CRON] Error sweeping overdue subscriptions: %v", err)
		} else {
			log.Printf("[CRON] Expired %d subscriptions across %d tenants", count, len(tenantIDs))
			log.Println("[CRON] Finished overdue subscription sweep")
		}
	})
	if err != nil {
		log.Printf("Failed to add overdue sweep job: %v", err)
	}

	// 2. 缓存全量重算 - 每天凌晨 3 点半执行
	// 兜底修复可能陈旧的租户缓存（ReconcileFailed 残留、手工修库等）
	_, err = cronScheduler.AddFunc("0 30 3 * * *", func() {
		log.Println("[CRON] Starting full tenant cache resync...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		report, err := app.adminUsecase.ResyncAll(ctx)
		if err != nil {
			log.Printf("[CRON] Error resyncing tenant caches: %v", err)
			return
		}
		log.Printf("[CRON] Resync completed: total=%d, success=%d, failed=%d",
			report.Total, report.Succeeded, report.Failed)
		for _, res := range report.Results {
			if res.Status != "success" {
				log.Printf("[CRON] Resync failed: tenant=%s, error=%s", res.TenantID, res.Message)
			}
		}
		log.Println("[CRON] Finished full tenant cache resync")
	})
	if err != nil {
		log.Printf("Failed to add cache resync job: %v", err)
	}

	// 启动定时任务
	cronScheduler.Start()
	log.Println("========================================")
	log.Println("Cron jobs started successfully")
	log.Println("Scheduled jobs:")
	log.Println("  - Overdue sweep:   Every day at 02:00")
	log.Println("  - Cache resync:    Every day at 03:30")
	log.Println("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		log.Println("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		log.Println("Cron jobs forced to stop after timeout")
	}
}
