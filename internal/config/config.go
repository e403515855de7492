package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const (
	EmailTransportHTTP = "http"
	EmailTransportSMTP = "smtp"

	RateLimiterRedis = "redis"
	RateLimiterLocal = "local"
)

type Config struct {
	DatabaseDSN   string `env:"DATABASE_DSN,required=true"`
	RedisURL      string `env:"REDIS_URL,required=true"`
	CronSecret    string `env:"CRON_SECRET,required=true"`
	AdminAPIToken string `env:"ADMIN_API_TOKEN,required=true"`

	NewsletterFrom string `env:"NEWSLETTER_FROM,required=true"`
	SiteURL        string `env:"SITE_URL,required=true"`

	EmailTransport string `env:"EMAIL_TRANSPORT,default=http"`
	EmailAPIURL    string `env:"EMAIL_API_URL,default=https://api.resend.com/emails"`
	EmailAPIKey    string `env:"EMAIL_API_KEY"`
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT,default=587"`
	SMTPUsername   string `env:"SMTP_USERNAME"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`

	NewsletterDailyLimit   int    `env:"NEWSLETTER_DAILY_LIMIT,default=100"`
	SendRateLimitPerSec    int    `env:"SEND_RATE_LIMIT_PER_SEC,default=5"`
	SendRateLimiter        string `env:"SEND_RATE_LIMITER,default=redis"`
	DispatchLockTTLSeconds int    `env:"DISPATCH_LOCK_TTL_SECONDS,default=900"`
	AuditRetentionDays     int    `env:"AUDIT_RETENTION_DAYS,default=90"`

	// DispatchIntervalMinutes enables the in-process trigger when > 0.
	DispatchIntervalMinutes int `env:"DISPATCH_INTERVAL_MINUTES,default=0"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.EmailTransport = strings.ToLower(strings.TrimSpace(cfg.EmailTransport))
	cfg.SendRateLimiter = strings.ToLower(strings.TrimSpace(cfg.SendRateLimiter))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.EmailTransport {
	case EmailTransportHTTP:
		if strings.TrimSpace(c.EmailAPIKey) == "" {
			return fmt.Errorf("EMAIL_API_KEY is required when EMAIL_TRANSPORT=%s", EmailTransportHTTP)
		}
	case EmailTransportSMTP:
		if strings.TrimSpace(c.SMTPHost) == "" {
			return fmt.Errorf("SMTP_HOST is required when EMAIL_TRANSPORT=%s", EmailTransportSMTP)
		}
	default:
		return fmt.Errorf("unsupported EMAIL_TRANSPORT %q", c.EmailTransport)
	}

	switch c.SendRateLimiter {
	case RateLimiterRedis, RateLimiterLocal:
	default:
		return fmt.Errorf("unsupported SEND_RATE_LIMITER %q", c.SendRateLimiter)
	}

	if c.NewsletterDailyLimit < 0 {
		return fmt.Errorf("NEWSLETTER_DAILY_LIMIT must be >= 0")
	}
	if c.SendRateLimitPerSec <= 0 {
		return fmt.Errorf("SEND_RATE_LIMIT_PER_SEC must be > 0")
	}
	if c.DispatchLockTTLSeconds <= 0 {
		return fmt.Errorf("DISPATCH_LOCK_TTL_SECONDS must be > 0")
	}
	if c.AuditRetentionDays <= 0 {
		return fmt.Errorf("AUDIT_RETENTION_DAYS must be > 0")
	}
	if c.DispatchIntervalMinutes < 0 {
		return fmt.Errorf("DISPATCH_INTERVAL_MINUTES must be >= 0")
	}
	return nil
}

func (c *Config) DispatchLockTTL() time.Duration {
	return time.Duration(c.DispatchLockTTLSeconds) * time.Second
}

// DispatchInterval is zero when the in-process trigger is disabled.
func (c *Config) DispatchInterval() time.Duration {
	return time.Duration(c.DispatchIntervalMinutes) * time.Minute
}
