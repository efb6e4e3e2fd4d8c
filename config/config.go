package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Business BusinessConfig `yaml:"business"`
	Calendar CalendarConfig `yaml:"calendar"`
	Maps     MapsConfig     `yaml:"maps"`
	Mail     MailConfig     `yaml:"mail"`
	OneTap   OneTapConfig   `yaml:"one_tap"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address         string   `yaml:"address"`
	Port            string   `yaml:"port" envconfig:"PORT"`
	PublicBaseURL   string   `yaml:"public_base_url" envconfig:"PUBLIC_BASE_URL"`
	FrontendBaseURL string   `yaml:"frontend_base_url" envconfig:"FRONTEND_BASE_URL"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// ListenAddr prefers an explicit address; PORT alone maps to all interfaces.
func (h HTTPConfig) ListenAddr() string {
	if h.Address != "" {
		return h.Address
	}
	return ":" + h.Port
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Name           string `yaml:"name"`
	SSLMode        string `yaml:"ssl_mode"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func (d DatabaseConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingTopic       string   `yaml:"booking_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BusinessConfig struct {
	Name                string  `yaml:"name"`
	Timezone            string  `yaml:"timezone" envconfig:"BUSINESS_TZ"`
	Hours               string  `yaml:"hours" envconfig:"BUSINESS_HOURS"`
	HomeAddress         string  `yaml:"home_address" envconfig:"BUSINESS_HOME_ADDR"`
	MaxTravelMiles      float64 `yaml:"max_travel_miles" envconfig:"MAX_TRAVEL_MILES"`
	DefaultDriveBuffer  int     `yaml:"default_drive_buffer_minutes" envconfig:"DEFAULT_DRIVE_BUFFER_MIN"`
	SlotStepMinutes     int     `yaml:"slot_step_minutes"`
	DefaultPkgMinutes   int     `yaml:"default_pkg_minutes"`
	location            *time.Location
}

// Location is resolved by Validate.
func (b BusinessConfig) Location() *time.Location {
	if b.location == nil {
		return time.UTC
	}
	return b.location
}

func (b BusinessConfig) SlotStep() time.Duration {
	return time.Duration(b.SlotStepMinutes) * time.Minute
}

type CalendarConfig struct {
	ID                 string `yaml:"id" envconfig:"GOOGLE_CALENDAR_ID"`
	ServiceAccountJSON string `yaml:"service_account_json" envconfig:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	ImpersonateEmail   string `yaml:"impersonate_email" envconfig:"GOOGLE_IMPERSONATE_EMAIL"`
	OAuthClientID      string `yaml:"oauth_client_id" envconfig:"GOOGLE_OAUTH_CLIENT_ID"`
	OAuthClientSecret  string `yaml:"oauth_client_secret" envconfig:"GOOGLE_OAUTH_CLIENT_SECRET"`
	OAuthRefreshToken  string `yaml:"oauth_refresh_token" envconfig:"GOOGLE_OAUTH_REFRESH_TOKEN"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
}

func (c CalendarConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type MapsConfig struct {
	APIKey          string `yaml:"api_key" envconfig:"GOOGLE_MAPS_API_KEY"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

func (m MapsConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

func (m MapsConfig) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLSeconds) * time.Second
}

type MailConfig struct {
	Host       string `yaml:"host" envconfig:"SMTP_HOST"`
	Port       int    `yaml:"port" envconfig:"SMTP_PORT"`
	Secure     bool   `yaml:"secure" envconfig:"SMTP_SECURE"`
	User       string `yaml:"user" envconfig:"SMTP_USER"`
	Password   string `yaml:"password" envconfig:"SMTP_PASS"`
	FromEmail  string `yaml:"from_email" envconfig:"MAIL_FROM_EMAIL"`
	FromName   string `yaml:"from_name" envconfig:"MAIL_FROM_NAME"`
	AdminEmail string `yaml:"admin_email" envconfig:"ADMIN_EMAIL"`
}

type OneTapConfig struct {
	Secret   string `yaml:"secret" envconfig:"ONE_TAP_SECRET"`
	TTLHours int    `yaml:"ttl_hours"`
}

func (o OneTapConfig) TTL() time.Duration {
	return time.Duration(o.TTLHours) * time.Hour
}

type BookingConfig struct {
	CodePrefix            string `yaml:"code_prefix"`
	LockTTLSeconds        int    `yaml:"lock_ttl_seconds"`
	LockWaitSeconds       int    `yaml:"lock_wait_seconds"`
	RequestedStaleMinutes int    `yaml:"requested_stale_minutes"`
}

type WorkerConfig struct {
	ReconcileSweepMinutes int `yaml:"reconcile_sweep_minutes"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

// LoadConfig reads the yaml file, applies environment overrides and defaults,
// then validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" && c.HTTP.Port == "" {
		c.HTTP.Port = "8081"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9091"
	}
	if c.Database.TimeoutSeconds == 0 {
		c.Database.TimeoutSeconds = 5
	}
	if c.Business.Name == "" {
		c.Business.Name = "Visual Craft"
	}
	if c.Business.Timezone == "" {
		c.Business.Timezone = "America/New_York"
	}
	if c.Business.Hours == "" {
		c.Business.Hours = "Tue:09:00-17:00,Wed:09:00-17:00,Thu:09:00-17:00,Fri:09:00-17:00"
	}
	if c.Business.MaxTravelMiles == 0 {
		c.Business.MaxTravelMiles = 60
	}
	if c.Business.DefaultDriveBuffer == 0 {
		c.Business.DefaultDriveBuffer = 20
	}
	if c.Business.SlotStepMinutes == 0 {
		c.Business.SlotStepMinutes = 30
	}
	if c.Business.DefaultPkgMinutes == 0 {
		c.Business.DefaultPkgMinutes = 60
	}
	if c.Calendar.ID == "" {
		c.Calendar.ID = "primary"
	}
	if c.Calendar.TimeoutSeconds == 0 {
		c.Calendar.TimeoutSeconds = 10
	}
	if c.Maps.TimeoutSeconds == 0 {
		c.Maps.TimeoutSeconds = 5
	}
	if c.Maps.CacheTTLSeconds == 0 {
		c.Maps.CacheTTLSeconds = 900
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 465
	}
	if c.OneTap.TTLHours == 0 {
		c.OneTap.TTLHours = 7 * 24
	}
	if c.Booking.CodePrefix == "" {
		c.Booking.CodePrefix = "VCP"
	}
	if c.Booking.LockTTLSeconds == 0 {
		c.Booking.LockTTLSeconds = 30
	}
	if c.Booking.LockWaitSeconds == 0 {
		c.Booking.LockWaitSeconds = 5
	}
	if c.Booking.RequestedStaleMinutes == 0 {
		c.Booking.RequestedStaleMinutes = 15
	}
	if c.Worker.ReconcileSweepMinutes == 0 {
		c.Worker.ReconcileSweepMinutes = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate resolves the business time zone and rejects values the
// availability engine cannot work with.
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return fmt.Errorf("invalid business timezone %q: %w", c.Business.Timezone, err)
	}
	c.Business.location = loc

	var errs []error
	if c.Business.MaxTravelMiles < 0 {
		errs = append(errs, errors.New("business.max_travel_miles must not be negative"))
	}
	if c.Business.DefaultDriveBuffer < 0 {
		errs = append(errs, errors.New("business.default_drive_buffer_minutes must not be negative"))
	}
	if c.Business.SlotStepMinutes <= 0 {
		errs = append(errs, errors.New("business.slot_step_minutes must be positive"))
	}
	if c.Booking.LockTTLSeconds <= c.Calendar.TimeoutSeconds {
		errs = append(errs, errors.New("booking.lock_ttl_seconds must exceed calendar.timeout_seconds"))
	}
	if strings.TrimSpace(c.OneTap.Secret) == "" {
		errs = append(errs, errors.New("one_tap.secret is required"))
	}
	return errors.Join(errs...)
}
