package config

import (
	"approvalflow/bizerror"
	"os"
	"strconv"
	"time"
)

const (
	DefaultNotifyRatePerSecond = 20
	DefaultRoleCacheExpiration = 5 * time.Minute
)

// Settings are read from the environment.
type Settings struct {
	DefinitionsPath     string
	NotifyRatePerSecond float64
	NotifyWebhookURL    string
	RoleCacheExpiration time.Duration
}

func SettingsFromEnv() (*Settings, error) {
	s := Settings{
		DefinitionsPath:     os.Getenv("APPROVALFLOW_DEFINITIONS"),
		NotifyRatePerSecond: DefaultNotifyRatePerSecond,
		NotifyWebhookURL:    os.Getenv("NOTIFY_WEBHOOK_URL"),
		RoleCacheExpiration: DefaultRoleCacheExpiration,
	}
	if v := os.Getenv("NOTIFY_RATE_PER_SECOND"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, bizerror.NewConfigurationError("NOTIFY_RATE_PER_SECOND: %v", err)
		}
		s.NotifyRatePerSecond = rate
	}
	if v := os.Getenv("ROLE_CACHE_EXPIRATION"); v != "" {
		expiration, err := time.ParseDuration(v)
		if err != nil {
			return nil, bizerror.NewConfigurationError("ROLE_CACHE_EXPIRATION: %v", err)
		}
		s.RoleCacheExpiration = expiration
	}
	return &s, nil
}
