package config_test

import (
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
modules:
  otp:
    secret: from-file
    expiry_minutes: 10
    enabled: true
app:
  server:
    cors: "http://a.test, ,http://b.test"
storage:
  blob: aGVsbG8=
`

func TestViper_Defaults(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.GetMinute("modules.otp.expiry_minutes"))
	assert.Equal(t, 60*time.Second, cfg.GetSecond("modules.otp.resend_cooldown_seconds"))
	assert.Equal(t, 5, cfg.GetInt("modules.otp.max_attempts"))
	assert.Equal(t, 30*24*time.Hour, cfg.GetDay("modules.otp.audit_retention_days"))
	assert.Empty(t, cfg.GetString("modules.otp.secret"))
}

func TestViper_FileValues(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.GetString("modules.otp.secret"))
	assert.Equal(t, 10*time.Minute, cfg.GetMinute("modules.otp.expiry_minutes"))
	assert.True(t, cfg.GetBool("modules.otp.enabled"))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.GetArray("app.server.cors"))
	assert.Equal(t, []byte("hello"), cfg.GetBinary("storage.blob"))
	assert.Nil(t, cfg.GetArray("missing.key"))
}

func TestViper_EnvOverridesFile(t *testing.T) {
	t.Setenv("OTP_SECRET", "from-env")
	t.Setenv("OTP_EXPIRY_MINUTES", "3")
	t.Setenv("OTP_RESEND_COOLDOWN", "30")
	t.Setenv("MAX_OTP_ATTEMPTS", "2")

	cfg, err := config.NewViperFromBytes("yaml", []byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.GetString("modules.otp.secret"))
	assert.Equal(t, 3*time.Minute, cfg.GetMinute("modules.otp.expiry_minutes"))
	assert.Equal(t, 30*time.Second, cfg.GetSecond("modules.otp.resend_cooldown_seconds"))
	assert.Equal(t, 2, cfg.GetInt("modules.otp.max_attempts"))
}

func TestNewViperFromBytes_RequiresType(t *testing.T) {
	_, err := config.NewViperFromBytes(" ", nil)
	assert.Error(t, err)
}

func TestNewViper_EmptyPath(t *testing.T) {
	t.Setenv("OTP_SECRET", "env-only")

	cfg, err := config.NewViper("")
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.GetString("modules.otp.secret"))
	assert.NoError(t, cfg.Close())
}
