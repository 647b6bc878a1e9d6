package conf

import (
	"fmt"
)

type Bootstrap struct {
	Env     string   `yaml:"env" json:"env"`
	Server  *Server  `yaml:"server" json:"server"`
	Data    *Data    `yaml:"data" json:"data"`
	Billing *Billing `yaml:"billing" json:"billing"`
	Log     *Log     `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
	// AdminToken 管理端点的访问令牌（由网关或运维配置下发）
	AdminToken string `yaml:"admin_token" json:"admin_token"`
}

type Data struct {
	Database struct {
		Driver          string `yaml:"driver" json:"driver"`
		Source          string `yaml:"source" json:"source"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	} `yaml:"database" json:"database"`
	Redis struct {
		Addr         string `yaml:"addr" json:"addr"`
		Password     string `yaml:"password" json:"password"`
		Db           int32  `yaml:"db" json:"db"`
		ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
		DialTimeout  string `yaml:"dial_timeout" json:"dial_timeout"`
		PoolSize     int32  `yaml:"pool_size" json:"pool_size"`
		MinIdleConns int32  `yaml:"min_idle_conns" json:"min_idle_conns"`
	} `yaml:"redis" json:"redis"`
}

// Billing 计费服务商 webhook 配置
type Billing struct {
	// WebhookSecret webhook 签名密钥（HMAC-SHA256）
	WebhookSecret string `yaml:"webhook_secret" json:"webhook_secret"`
	// SignatureMode 签名校验模式: strict 或 relaxed
	// relaxed 仅用于沙箱联调，生产环境禁止
	SignatureMode string `yaml:"signature_mode" json:"signature_mode"`
	// SimulateRateLimit 诊断接口限流: 窗口内最大请求数
	SimulateRateLimit int `yaml:"simulate_rate_limit" json:"simulate_rate_limit"`
	// SimulateRateWindow 诊断接口限流窗口
	SimulateRateWindow string `yaml:"simulate_rate_window" json:"simulate_rate_window"`
}

type Log struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

const (
	EnvProduction = "production"

	SignatureModeStrict  = "strict"
	SignatureModeRelaxed = "relaxed"
)

// Validate validates the configuration
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Data == nil {
		return fmt.Errorf("data configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	if b.Billing == nil {
		return fmt.Errorf("billing configuration is required")
	}
	switch b.Billing.SignatureMode {
	case SignatureModeStrict, SignatureModeRelaxed:
	case "":
		// 默认 strict
		b.Billing.SignatureMode = SignatureModeStrict
	default:
		return fmt.Errorf("billing.signature_mode must be strict or relaxed, got %q", b.Billing.SignatureMode)
	}
	// relaxed 模式不允许出现在生产配置中
	if b.Env == EnvProduction && b.Billing.SignatureMode != SignatureModeStrict {
		return fmt.Errorf("billing.signature_mode must be strict when env is production")
	}
	if b.Billing.SignatureMode == SignatureModeStrict && b.Billing.WebhookSecret == "" {
		return fmt.Errorf("billing.webhook_secret is required in strict mode")
	}
	if b.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	return nil
}
