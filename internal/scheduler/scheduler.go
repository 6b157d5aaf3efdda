package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kanakku/internal/clock"
	documentdomain "github.com/smallbiznis/kanakku/internal/document/domain"
	emailqueuedomain "github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	obsmetrics "github.com/smallbiznis/kanakku/internal/observability/metrics"
	"github.com/smallbiznis/kanakku/internal/providers/email"
	"github.com/smallbiznis/kanakku/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    Config `optional:"true"`
	Queue     emailqueuedomain.Service
	Documents documentdomain.Service
	Resolver  emailqueuedomain.AttachmentResolver
	Mailer    email.Provider
	Limiter   *ratelimit.EmailSendLimiter `optional:"true"`
	Metrics   *obsmetrics.Metrics         `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	queue     emailqueuedomain.Service
	documents documentdomain.Service
	resolver  emailqueuedomain.AttachmentResolver
	mailer    email.Provider
	limiter   *ratelimit.EmailSendLimiter
	metrics   *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Queue == nil || p.Documents == nil || p.Resolver == nil || p.Mailer == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		queue:     p.Queue,
		documents: p.Documents,
		resolver:  p.Resolver,
		mailer:    p.Mailer,
		limiter:   p.Limiter,
		metrics:   p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks up the rest
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job a single time. Claim recovery goes first
// so stale claims are deliverable in the same pass.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobEmailClaimRecovery, func(ctx context.Context) error {
			return s.runJob(ctx, JobEmailClaimRecovery, 0, 30*time.Second, s.EmailClaimRecoveryJob)
		}},
		{JobEmailDelivery, func(ctx context.Context) error {
			return s.runJob(ctx, JobEmailDelivery, s.cfg.EmailBatchSize, s.cfg.JobTimeout, s.EmailDeliveryJob)
		}},
		{JobQuotationExpiry, func(ctx context.Context) error {
			return s.runJob(ctx, JobQuotationExpiry, 0, 30*time.Second, s.QuotationExpiryJob)
		}},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		if parent.Err() != nil {
			break
		}
		err = errors.Join(err, job.Run(parent))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty list runs every job
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}
