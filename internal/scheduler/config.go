package scheduler

import (
	"time"

	"github.com/smallbiznis/kanakku/internal/config"
)

const (
	JobEmailDelivery      = "email_delivery"
	JobEmailClaimRecovery = "email_claim_recovery"
	JobQuotationExpiry    = "quotation_expiry"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval    time.Duration
	EmailBatchSize int
	SendTimeout    time.Duration
	JobTimeout     time.Duration
	EnabledJobs    []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:    time.Minute,
		EmailBatchSize: 20,
		SendTimeout:    30 * time.Second,
		JobTimeout:     5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:    cfg.Scheduler.RunInterval,
		EmailBatchSize: cfg.Scheduler.EmailBatchSize,
		SendTimeout:    cfg.Email.SendTimeout,
		EnabledJobs:    cfg.Scheduler.EnabledJobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.EmailBatchSize <= 0 {
		c.EmailBatchSize = defaults.EmailBatchSize
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaults.SendTimeout
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
