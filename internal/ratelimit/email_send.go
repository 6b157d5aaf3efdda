package ratelimit

import (
	"context"
	"time"

	"github.com/smallbiznis/kanakku/internal/config"
	"go.uber.org/zap"
)

const keyEmailSend = "kanakku:email:send"

// EmailSendLimiter throttles SMTP sends across all worker instances.
type EmailSendLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

// NewEmailSendLimiter returns a limiter that is disabled when redis is
// off or no rate is configured.
func NewEmailSendLimiter(cfg config.Config, bucket *TokenBucket, log *zap.Logger) *EmailSendLimiter {
	perMinute := cfg.Email.SendRatePerMinute
	if bucket == nil || perMinute <= 0 {
		return &EmailSendLimiter{log: log}
	}
	burst := perMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &EmailSendLimiter{
		bucket: bucket,
		rate:   float64(perMinute) / 60,
		burst:  burst,
		log:    log,
	}
}

func (l *EmailSendLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Wait blocks until a send token is available. Redis errors fail open so
// outages do not stall the queue.
func (l *EmailSendLimiter) Wait(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}
	for {
		wait, err := l.bucket.Take(ctx, keyEmailSend, l.rate, l.burst)
		if err != nil {
			if l.log != nil {
				l.log.Warn("email send limiter unavailable", zap.Error(err))
			}
			return nil
		}
		if wait == 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
