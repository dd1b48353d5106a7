package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	// Provider is the partner identifier stored on idempotency records.
	Provider string `yaml:"provider"`
}

// ChannexConfig configures the outbound channel manager client.
type ChannexConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

// WebhookConfig bounds inbound webhook handling.
type WebhookConfig struct {
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ProcessTimeout  time.Duration `yaml:"process_timeout"`
	ConnectionCache time.Duration `yaml:"connection_cache"`
}

// DispatcherConfig tunes the outbox dispatcher.
type DispatcherConfig struct {
	Workers                  int           `yaml:"workers"`
	PollInterval             time.Duration `yaml:"poll_interval"`
	BatchSize                int           `yaml:"batch_size"`
	LeaseTimeout             time.Duration `yaml:"lease_timeout"`
	RequestTimeout           time.Duration `yaml:"request_timeout"`
	MaxAttempts              int           `yaml:"max_attempts"`
	BaseBackoff              time.Duration `yaml:"base_backoff"`
	MaxBackoff               time.Duration `yaml:"max_backoff"`
	MaxPayloadBytes          int           `yaml:"max_payload_bytes"`
	SyncDays                 int           `yaml:"sync_days"`
	ConnectionErrorThreshold int           `yaml:"connection_error_threshold"`
	ListenNotify             bool          `yaml:"listen_notify"`
}

// RateLimitConfig configures the per-property token buckets.
type RateLimitConfig struct {
	Capacity        float64       `yaml:"capacity"`
	RefillPerSecond float64       `yaml:"refill_per_second"`
	BasePause       time.Duration `yaml:"base_pause"`
	MaxPause        time.Duration `yaml:"max_pause"`
}

// ReplayConfig configures re-processing of stored webhook events.
type ReplayConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	StaleAfter  time.Duration `yaml:"stale_after"`
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// BookingConfig holds the acceptance window for inbound reservations.
type BookingConfig struct {
	MaxAdvanceDays  int             `yaml:"max_advance_days"`
	MaxStayNights   int             `yaml:"max_stay_nights"`
	MaxNightlyPrice decimal.Decimal `yaml:"max_nightly_price"`
	DefaultCurrency string          `yaml:"default_currency"`
}

// SetDefaults fills every zero value with the production default.
func (c *Config) SetDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "channel-sync"
	}
	if c.Service.Provider == "" {
		c.Service.Provider = "channex"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.SlowThreshold == 0 {
		c.Database.SlowThreshold = 200 * time.Millisecond
	}
	if c.Database.ConnectAttempts == 0 {
		c.Database.ConnectAttempts = 5
	}
	if c.Database.ConnectBackoff == 0 {
		c.Database.ConnectBackoff = 2 * time.Second
	}
	if c.Server.HTTP.Port == 0 {
		c.Server.HTTP.Port = 8080
	}
	if c.Server.GRPC.Port == 0 {
		c.Server.GRPC.Port = 9090
	}
	if c.Channex.BaseURL == "" {
		c.Channex.BaseURL = "https://staging.channex.io/api/v1"
	}
	if c.Channex.UserAgent == "" {
		c.Channex.UserAgent = "mnam-channel-sync/1.0"
	}
	c.Webhook.setDefaults()
	c.Dispatcher.setDefaults()
	c.RateLimit.setDefaults()
	c.Replay.setDefaults()
	c.Booking.setDefaults()
}

func (w *WebhookConfig) setDefaults() {
	if w.MaxBodyBytes == 0 {
		w.MaxBodyBytes = 256 * 1024
	}
	if w.ProcessTimeout == 0 {
		w.ProcessTimeout = 10 * time.Second
	}
	if w.ConnectionCache == 0 {
		w.ConnectionCache = time.Minute
	}
}

func (d *DispatcherConfig) setDefaults() {
	if d.Workers == 0 {
		d.Workers = 4
	}
	if d.PollInterval == 0 {
		d.PollInterval = 5 * time.Second
	}
	if d.BatchSize == 0 {
		d.BatchSize = 50
	}
	if d.LeaseTimeout == 0 {
		d.LeaseTimeout = 5 * time.Minute
	}
	if d.RequestTimeout == 0 {
		d.RequestTimeout = 30 * time.Second
	}
	if d.MaxAttempts == 0 {
		d.MaxAttempts = 5
	}
	if d.BaseBackoff == 0 {
		d.BaseBackoff = time.Minute
	}
	if d.MaxBackoff == 0 {
		d.MaxBackoff = time.Hour
	}
	if d.MaxPayloadBytes == 0 {
		d.MaxPayloadBytes = 10 * 1024 * 1024
	}
	if d.SyncDays == 0 {
		d.SyncDays = 365
	}
	if d.ConnectionErrorThreshold == 0 {
		d.ConnectionErrorThreshold = 5
	}
}

func (r *RateLimitConfig) setDefaults() {
	if r.Capacity == 0 {
		r.Capacity = 10
	}
	if r.RefillPerSecond == 0 {
		r.RefillPerSecond = 10.0 / 60.0
	}
	if r.BasePause == 0 {
		r.BasePause = time.Minute
	}
	if r.MaxPause == 0 {
		r.MaxPause = 10 * time.Minute
	}
}

func (r *ReplayConfig) setDefaults() {
	if r.Interval == 0 {
		r.Interval = time.Minute
	}
	if r.StaleAfter == 0 {
		r.StaleAfter = 5 * time.Minute
	}
	if r.BatchSize == 0 {
		r.BatchSize = 20
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
}

func (b *BookingConfig) setDefaults() {
	if b.MaxAdvanceDays == 0 {
		b.MaxAdvanceDays = 730
	}
	if b.MaxStayNights == 0 {
		b.MaxStayNights = 365
	}
	if b.MaxNightlyPrice.IsZero() {
		b.MaxNightlyPrice = decimal.NewFromInt(1_000_000)
	}
	if b.DefaultCurrency == "" {
		b.DefaultCurrency = "SAR"
	}
}
