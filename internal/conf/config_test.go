package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBootstrap() *Bootstrap {
	b := &Bootstrap{
		Env:     "development",
		Server:  &Server{},
		Data:    &Data{},
		Billing: &Billing{WebhookSecret: "s3cret", SignatureMode: SignatureModeStrict},
		Log:     &Log{Level: "info"},
	}
	b.Server.Http.Addr = "0.0.0.0:8000"
	b.Data.Database.Source = "root:root@tcp(127.0.0.1:3306)/test"
	return b
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validBootstrap().Validate())
}

func TestValidateDefaultsToStrict(t *testing.T) {
	b := validBootstrap()
	b.Billing.SignatureMode = ""
	require.NoError(t, b.Validate())
	assert.Equal(t, SignatureModeStrict, b.Billing.SignatureMode)
}

// relaxed 签名模式绝不允许出现在生产配置中
func TestValidateRejectsRelaxedInProduction(t *testing.T) {
	b := validBootstrap()
	b.Env = EnvProduction
	b.Billing.SignatureMode = SignatureModeRelaxed
	err := b.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict")
}

func TestValidateRelaxedAllowedOutsideProduction(t *testing.T) {
	b := validBootstrap()
	b.Env = "staging"
	b.Billing.SignatureMode = SignatureModeRelaxed
	assert.NoError(t, b.Validate())
}

func TestValidateRequiresSecretInStrictMode(t *testing.T) {
	b := validBootstrap()
	b.Billing.WebhookSecret = ""
	assert.Error(t, b.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	b := validBootstrap()
	b.Billing.SignatureMode = "lenient"
	assert.Error(t, b.Validate())
}

func TestValidateMissingSections(t *testing.T) {
	b := validBootstrap()
	b.Billing = nil
	assert.Error(t, b.Validate())

	b = validBootstrap()
	b.Server.Http.Addr = ""
	assert.Error(t, b.Validate())

	b = validBootstrap()
	b.Data.Database.Source = ""
	assert.Error(t, b.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
env: staging
server:
  http:
    addr: 0.0.0.0:8000
    timeout: 30s
  admin_token: tok
data:
  database:
    source: "root:root@tcp(127.0.0.1:3306)/test"
  redis:
    addr: 127.0.0.1:6379
billing:
  webhook_secret: s3cret
  signature_mode: strict
log:
  level: info
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.Equal(t, "staging", c.Env)
	assert.Equal(t, "tok", c.Server.AdminToken)
	assert.Equal(t, "127.0.0.1:6379", c.Data.Redis.Addr)
	assert.Equal(t, SignatureModeStrict, c.Billing.SignatureMode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
