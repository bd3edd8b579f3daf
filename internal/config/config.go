package config

import (
	"time"

	"github.com/Skotchmaster/order_lifecycle/internal/audit"
	"github.com/Skotchmaster/order_lifecycle/internal/notify"
	"github.com/Skotchmaster/order_lifecycle/pkg/config"
)

type ServiceConfig struct {
	config.Config

	NotifyTopic string

	ESURL      string
	ESUser     string
	ESPassword string
	AuditIndex string

	CarrierBaseURL string
	CarrierToken   string
	CarrierTimeout time.Duration

	WebhookSecret     string
	WebhookHMACSecret string

	ReturnWindowDays int
}

// FromEnv reads the service settings without enforcing required values.
func FromEnv() ServiceConfig {
	return ServiceConfig{
		Config: config.Load(),

		NotifyTopic: config.EnvDefault("NOTIFY_TOPIC", notify.DefaultTopic),

		ESURL:      config.EnvDefault("ES_URL", ""),
		ESUser:     config.EnvDefault("ES_USER", ""),
		ESPassword: config.EnvDefault("ES_PASSWORD", ""),
		AuditIndex: config.EnvDefault("AUDIT_INDEX", audit.DefaultIndex),

		CarrierBaseURL: config.EnvDefault("CARRIER_BASE_URL", ""),
		CarrierToken:   config.EnvDefault("CARRIER_TOKEN", ""),
		CarrierTimeout: config.EnvDuration("CARRIER_TIMEOUT", 10*time.Second),

		WebhookSecret:     config.EnvDefault("CARRIER_WEBHOOK_SECRET", ""),
		WebhookHMACSecret: config.EnvDefault("CARRIER_WEBHOOK_HMAC_SECRET", ""),

		ReturnWindowDays: config.EnvIntDefault("RETURN_WINDOW_DAYS", 7),
	}
}

func Load() ServiceConfig {
	config.LoadDotEnv()
	cfg := FromEnv()

	config.MustHave(map[string]string{
		"DATABASE_URL":                cfg.DatabaseURL,
		"JWT_SECRET":                  string(cfg.JWTAccessSecret),
		"CARRIER_BASE_URL":            cfg.CarrierBaseURL,
		"CARRIER_WEBHOOK_SECRET":      cfg.WebhookSecret,
		"CARRIER_WEBHOOK_HMAC_SECRET": cfg.WebhookHMACSecret,
	})

	return cfg
}
