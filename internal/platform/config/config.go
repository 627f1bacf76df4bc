package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultGraceDays    = 5
	defaultValidityDays = 365
	defaultSweepEvery   = time.Hour
	defaultTriggerEvery = time.Minute
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Integration IntegrationConfig `yaml:"integration"`
	Sweep       SweepConfig       `yaml:"sweep"`
	Auth        AuthConfig        `yaml:"auth"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig は gRPC サーバーとメトリクス公開に関する設定です。
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
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

// IntegrationConfig はインテグレーション予約の業務ルールです。
type IntegrationConfig struct {
	AllowedSchedulingWeekdays      []string `yaml:"allowed_scheduling_weekdays"`
	AttendanceGraceDays            int      `yaml:"attendance_grace_days"`
	DefaultExamValidityDays        int      `yaml:"default_exam_validity_days"`
	DefaultIntegrationValidityDays int      `yaml:"default_integration_validity_days"`
}

// SweepConfig は期限切れスイープの実行間隔です。
type SweepConfig struct {
	Interval              time.Duration `yaml:"-"`
	MinTriggerInterval    time.Duration `yaml:"-"`
	IntervalRaw           string        `yaml:"interval"`
	MinTriggerIntervalRaw string        `yaml:"min_trigger_interval"`
}

// AuthConfig はベアラートークン検証の設定です。
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// LogConfig はログ出力の設定です。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Integration.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Sweep.validateAndNormalize(); err != nil {
		return err
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret must be set")
	}
	if err := c.Log.validateAndNormalize(); err != nil {
		return err
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

func (i *IntegrationConfig) validateAndNormalize() error {
	if len(i.AllowedSchedulingWeekdays) == 0 {
		i.AllowedSchedulingWeekdays = []string{"TUE", "THU"}
	}
	for idx, day := range i.AllowedSchedulingWeekdays {
		i.AllowedSchedulingWeekdays[idx] = strings.ToUpper(strings.TrimSpace(day))
	}
	if i.AttendanceGraceDays < 0 {
		return fmt.Errorf("config: integration.attendance_grace_days must not be negative")
	}
	if i.AttendanceGraceDays == 0 {
		i.AttendanceGraceDays = defaultGraceDays
	}
	if i.DefaultExamValidityDays < 0 || i.DefaultIntegrationValidityDays < 0 {
		return fmt.Errorf("config: integration validity days must not be negative")
	}
	if i.DefaultExamValidityDays == 0 {
		i.DefaultExamValidityDays = defaultValidityDays
	}
	if i.DefaultIntegrationValidityDays == 0 {
		i.DefaultIntegrationValidityDays = defaultValidityDays
	}
	return nil
}

func (s *SweepConfig) validateAndNormalize() error {
	interval, err := parseDurationAllowEmpty(s.IntervalRaw)
	if err != nil {
		return fmt.Errorf("config: sweep.interval: %w", err)
	}
	if interval == 0 {
		interval = defaultSweepEvery
	}
	s.Interval = interval

	trigger, err := parseDurationAllowEmpty(s.MinTriggerIntervalRaw)
	if err != nil {
		return fmt.Errorf("config: sweep.min_trigger_interval: %w", err)
	}
	if trigger == 0 {
		trigger = defaultTriggerEvery
	}
	s.MinTriggerInterval = trigger
	return nil
}

func (l *LogConfig) validateAndNormalize() error {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	switch l.Level {
	case "":
		l.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is not supported", l.Level)
	}

	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	switch l.Format {
	case "":
		l.Format = "json"
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is not supported", l.Format)
	}
	return nil
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

// DSN は pgx 用の接続文字列を返します。ユーザー名とパスワードは URL エスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
