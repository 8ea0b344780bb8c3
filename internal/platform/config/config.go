package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/courier-shift/internal/core/shift"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr     = ":8080"
	defaultRedisChannel = "shift-events"
	defaultLogLevel     = "info"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Shift    ShiftConfig    `yaml:"shift"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig は gRPC / HTTP サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr         string   `yaml:"listen_addr"`
	HTTPAddr           string   `yaml:"http_addr"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// ShiftConfig はシフト疲労管理のしきい値です。未指定の項目は既定値を使用します。
type ShiftConfig struct {
	BreakAfterHours           *float64 `yaml:"break_after_hours"`
	BreakDurationMinutes      *float64 `yaml:"break_duration_minutes"`
	MaxShiftHours             *float64 `yaml:"max_shift_hours"`
	HardRestHoursAfterBlock   *float64 `yaml:"hard_rest_hours_after_block"`
	MinRestBetweenShiftsHours *float64 `yaml:"min_rest_between_shifts_hours"`
	MinShiftHoursBeforeCanEnd *float64 `yaml:"min_shift_hours_before_can_end"`
	TimeAccelerationFactor    *float64 `yaml:"time_acceleration_factor"`
	SoonLeadMinutes           *int     `yaml:"soon_lead_minutes"`
}

// AuthConfig は JWT 検証に関する設定です。
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RedisConfig はシフトイベント通知に使う Redis の設定です。
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// LookupFunc は環境変数の参照関数です。os.LookupEnv と同じシグネチャです。
type LookupFunc func(key string) (string, bool)

// Load は指定されたパスから設定ファイルを読み込み、環境変数で上書きします。
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv は環境変数の参照関数を指定して設定を読み込みます。
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if lookup != nil {
		if err := cfg.applyEnv(lookup); err != nil {
			return nil, err
		}
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	floats := []struct {
		key  string
		dest **float64
	}{
		{"BREAK_AFTER_HOURS", &c.Shift.BreakAfterHours},
		{"BREAK_DURATION_MINUTES", &c.Shift.BreakDurationMinutes},
		{"MAX_SHIFT_HOURS", &c.Shift.MaxShiftHours},
		{"HARD_REST_HOURS_AFTER_BLOCK", &c.Shift.HardRestHoursAfterBlock},
		{"MIN_REST_BETWEEN_SHIFTS_HOURS", &c.Shift.MinRestBetweenShiftsHours},
		{"MIN_SHIFT_HOURS_BEFORE_CAN_END", &c.Shift.MinShiftHoursBeforeCanEnd},
		{"TIME_ACCELERATION_FACTOR", &c.Shift.TimeAccelerationFactor},
	}
	for _, f := range floats {
		raw, ok := lookup(f.key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("config: env %s: %w", f.key, err)
		}
		*f.dest = &v
	}

	if raw, ok := lookup("SOON_LEAD_MINUTES"); ok && strings.TrimSpace(raw) != "" {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("config: env SOON_LEAD_MINUTES: %w", err)
		}
		c.Shift.SoonLeadMinutes = &v
	}

	if raw, ok := lookup("JWT_SECRET"); ok && raw != "" {
		c.Auth.JWTSecret = raw
	}
	if raw, ok := lookup("REDIS_ADDR"); ok && raw != "" {
		c.Redis.Addr = raw
	}

	return nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = defaultHTTPAddr
	}

	db := &c.Database
	if err := db.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Shift.Rules().Validate(); err != nil {
		return fmt.Errorf("config: shift: %w", err)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret must be set")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr must be set when redis is enabled")
		}
		if _, _, err := net.SplitHostPort(c.Redis.Addr); err != nil {
			return fmt.Errorf("config: redis.addr: %w", err)
		}
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = defaultRedisChannel
	}

	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

// Rules は設定値を既定値に重ねた shift.Rules を返します。
func (s ShiftConfig) Rules() shift.Rules {
	rules := shift.DefaultRules()
	overrideFloat(&rules.BreakAfterHours, s.BreakAfterHours)
	overrideFloat(&rules.BreakDurationMinutes, s.BreakDurationMinutes)
	overrideFloat(&rules.MaxShiftHours, s.MaxShiftHours)
	overrideFloat(&rules.HardRestHoursAfterBlock, s.HardRestHoursAfterBlock)
	overrideFloat(&rules.MinRestBetweenShiftsHours, s.MinRestBetweenShiftsHours)
	overrideFloat(&rules.MinShiftHoursBeforeCanEnd, s.MinShiftHoursBeforeCanEnd)
	overrideFloat(&rules.TimeAccelerationFactor, s.TimeAccelerationFactor)
	if s.SoonLeadMinutes != nil {
		rules.SoonLeadMinutes = *s.SoonLeadMinutes
	}
	return rules
}

func overrideFloat(dest *float64, value *float64) {
	if value != nil {
		*dest = *value
	}
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
