package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envAliases binds the documented environment variables to their config keys.
// They take precedence over the file.
var envAliases = map[string]string{
	"modules.otp.secret":                  "OTP_SECRET",
	"modules.otp.expiry_minutes":          "OTP_EXPIRY_MINUTES",
	"modules.otp.resend_cooldown_seconds": "OTP_RESEND_COOLDOWN",
	"modules.otp.max_attempts":            "MAX_OTP_ATTEMPTS",
	"database.url":                        "DATABASE_URL",
	"redis.url":                           "REDIS_URL",
	"jwt.secret":                          "JWT_SECRET",
}

var defaults = map[string]any{
	"modules.otp.expiry_minutes":                  5,
	"modules.otp.resend_cooldown_seconds":         60,
	"modules.otp.max_attempts":                    5,
	"modules.otp.audit_retention_days":            30,
	"modules.otp.cleanup_retention_minutes":       0,
	"app.server.http.address":                     ":8080",
	"app.server.http.read_timeout_seconds":        10,
	"app.server.http.write_timeout_seconds":       10,
	"app.server.http.idle_timeout_seconds":        60,
	"app.server.max_goroutine":                    100,
	"app.server.throttle.requests_per_minute":     30,
	"app.server.throttle.burst":                   10,
	"app.name":                                    "otpgate",
	"app.server.http.read_header_timeout_seconds": 5,
	"instrument.log_mask_fields":                  "otp,code,devcode,authorization",
	"instrument.log_partial_mask_fields":          "identity",
	"database.auto_migrate":                       true,
	"modules.notification.consumer_names":         "otp_delivery_notification",
	"modules.notification.consumer_concurrency":   10,
}

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

// NewViper loads the config file at pathFile and watches it for changes.
// An empty pathFile yields a config built from defaults and environment only.
func NewViper(pathFile string) (*Viper, error) {
	v := newBase()
	if pathFile == "" {
		return &Viper{v: v}, nil
	}

	filename := path.Base(pathFile)
	v.AddConfigPath(path.Dir(pathFile))
	v.SetConfigName(strings.TrimSuffix(filename, path.Ext(filename)))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			slog.Error("config reload failed", "path", pathFile, "error", err)
			return
		}
		slog.Info("config success reloaded", "path", pathFile)
	})
	v.WatchConfig()

	return &Viper{v: v}, nil
}

// NewViperFromBytes loads configuration from memory. configType is any format
// Viper understands ("yaml", "json", "toml").
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errors.New("config type is required")
	}

	v := newBase()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

func newBase() *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	for key, env := range envAliases {
		//nolint:errcheck // only fails on an empty key
		v.BindEnv(key, env)
	}
	return v
}

func (vc *Viper) GetBool(key string) bool       { return vc.v.GetBool(key) }
func (vc *Viper) GetString(key string) string   { return vc.v.GetString(key) }
func (vc *Viper) GetInt(key string) int         { return vc.v.GetInt(key) }
func (vc *Viper) GetInt32(key string) int32     { return vc.v.GetInt32(key) }
func (vc *Viper) GetUint16(key string) uint16   { return uint16(vc.v.GetUint(key)) }
func (vc *Viper) GetFloat64(key string) float64 { return vc.v.GetFloat64(key) }

func (vc *Viper) GetSecond(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Second
}

func (vc *Viper) GetMinute(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Minute
}

func (vc *Viper) GetDay(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * 24 * time.Hour
}

func (vc *Viper) GetBinary(key string) []byte {
	data, err := base64.StdEncoding.DecodeString(vc.v.GetString(key))
	if err != nil {
		return nil
	}
	return data
}

func (vc *Viper) GetArray(key string) []string {
	var out []string
	for _, part := range strings.Split(vc.v.GetString(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Close implements io.Closer. Viper holds no resources.
func (vc *Viper) Close() error {
	return nil
}
