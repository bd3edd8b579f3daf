package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"NOTIFY_TOPIC", "AUDIT_INDEX", "CARRIER_TIMEOUT", "RETURN_WINDOW_DAYS", "ES_URL"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	assert.Equal(t, "order_item_events", cfg.NotifyTopic)
	assert.Equal(t, "order_item_transitions", cfg.AuditIndex)
	assert.Equal(t, 10*time.Second, cfg.CarrierTimeout)
	assert.Equal(t, 7, cfg.ReturnWindowDays)
	assert.Empty(t, cfg.ESURL)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite::memory:")
	t.Setenv("CARRIER_TIMEOUT", "3s")
	t.Setenv("RETURN_WINDOW_DAYS", "14")
	t.Setenv("CARRIER_WEBHOOK_SECRET", "shh")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")

	cfg := FromEnv()
	assert.Equal(t, "sqlite::memory:", cfg.DatabaseURL)
	assert.Equal(t, 3*time.Second, cfg.CarrierTimeout)
	assert.Equal(t, 14, cfg.ReturnWindowDays)
	assert.Equal(t, "shh", cfg.WebhookSecret)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
}
