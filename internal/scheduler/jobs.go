package scheduler

import (
	"context"
	"errors"
	"fmt"

	emailqueuedomain "github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	obsmetrics "github.com/smallbiznis/kanakku/internal/observability/metrics"
	"github.com/smallbiznis/kanakku/internal/providers/email"
	"go.uber.org/zap"
)

const (
	deliveryOutcomeSent   = "sent"
	deliveryOutcomeRetry  = "retry"
	deliveryOutcomeFailed = "failed"
)

// EmailDeliveryJob claims one batch of due email jobs and sends them.
// Jobs left claimed when the run is cut short are handed back by
// EmailClaimRecoveryJob once their lease expires.
func (s *Scheduler) EmailDeliveryJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobEmailDelivery, s.cfg.EmailBatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	schedMetrics := obsmetrics.Scheduler()
	defer s.publishQueueDepth(ctx)

	jobs, err := s.queue.ClaimDue(ctx, s.cfg.EmailBatchSize)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.email.claim.failed", err)
		return err
	}
	if len(jobs) == 0 {
		schedMetrics.IncBatchDeferred(JobEmailDelivery, obsmetrics.SchedulerBatchDeferredReasonNothingDue)
		return nil
	}

	var jobErr error
	sent := 0
	for _, job := range jobs {
		if err := s.limiter.Wait(ctx); err != nil {
			jobErr = errors.Join(jobErr, err)
			break
		}
		ok, err := s.deliver(ctx, run, job)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		if ok {
			sent++
		}
		run.AddProcessed(1)
	}
	schedMetrics.AddBatchProcessed(JobEmailDelivery, "email_job", sent)

	return jobErr
}

// deliver sends one claimed job and records the outcome on the queue. A
// failed send is not an error for the run; only a failure to record the
// outcome is.
func (s *Scheduler) deliver(ctx context.Context, run *jobRun, job emailqueuedomain.EmailJob) (bool, error) {
	start := s.clock.Now()
	log := s.logger(ctx).With(
		zap.String("email_job_id", idString(job.ID)),
		zap.Int("retry_count", job.RetryCount),
	)

	// the outcome must be stored even when the run deadline has passed
	persistCtx := context.WithoutCancel(ctx)

	sendErr := s.send(ctx, job)
	if sendErr == nil {
		if _, err := s.queue.MarkSent(persistCtx, job.ID); err != nil {
			s.logSchedulerError(ctx, run, "scheduler.email.mark_sent.failed", err,
				zap.String("email_job_id", idString(job.ID)),
			)
			return false, err
		}
		s.metrics.RecordEmailDelivery(ctx, deliveryOutcomeSent, s.clock.Now().Sub(start))
		run.AddOutcome(deliveryOutcomeSent)
		log.Info("scheduler.email.sent")
		return true, nil
	}

	updated, err := s.queue.MarkFailed(persistCtx, job.ID, sendErr.Error())
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.email.mark_failed.failed", err,
			zap.String("email_job_id", idString(job.ID)),
			zap.NamedError("send_error", sendErr),
		)
		return false, err
	}

	outcome := deliveryOutcomeRetry
	if updated.Status == emailqueuedomain.StatusFailed {
		outcome = deliveryOutcomeFailed
	}
	s.metrics.RecordEmailDelivery(ctx, outcome, s.clock.Now().Sub(start))
	run.AddOutcome(outcome)
	s.logSchedulerError(ctx, run, "scheduler.email.send.failed", sendErr,
		zap.String("email_job_id", idString(job.ID)),
		zap.String("outcome", outcome),
		zap.Int("retry_count", updated.RetryCount),
	)
	return false, nil
}

func (s *Scheduler) send(ctx context.Context, job emailqueuedomain.EmailJob) error {
	msg := email.Message{
		To:      []string{job.Recipient},
		Subject: job.Subject,
		HTML:    job.HTMLBody,
		Text:    job.TextBody,
		Headers: headerStrings(job.Headers),
	}

	attachment, err := s.resolver.Resolve(ctx, job.AttachmentKind, job.AttachmentRef)
	if err != nil {
		return fmt.Errorf("resolve attachment %s/%s: %w", job.AttachmentKind, job.AttachmentRef, err)
	}
	if attachment != nil {
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename:    attachment.Filename,
			ContentType: attachment.ContentType,
			Content:     attachment.Content,
		})
	}

	// an SMTP exchange is not abandoned halfway because the run deadline hit
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SendTimeout)
	defer cancel()
	return s.mailer.Send(sendCtx, msg)
}

func (s *Scheduler) publishQueueDepth(ctx context.Context) {
	stats, err := s.queue.Stats(context.WithoutCancel(ctx))
	if err != nil {
		s.logger(ctx).Warn("scheduler.email.stats.failed", zap.Error(err))
		return
	}
	obsmetrics.Scheduler().SetQueueDepth(stats.Pending, stats.Sent, stats.Failed)
}

// EmailClaimRecoveryJob hands claims older than the lease back to the queue.
func (s *Scheduler) EmailClaimRecoveryJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobEmailClaimRecovery, 0)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	released, err := s.queue.ReleaseStaleClaims(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.email.release_claims.failed", err)
		return err
	}
	run.AddProcessed(int(released))
	obsmetrics.Scheduler().AddClaimsReleased(released)
	if released > 0 {
		s.logger(ctx).Warn("scheduler.email.claims_released", zap.Int64("count", released))
	}
	return nil
}

// QuotationExpiryJob marks quotations past their validity date as EXPIRED.
func (s *Scheduler) QuotationExpiryJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobQuotationExpiry, 0)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	expired, err := s.documents.ExpireQuotations(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.quotation.expire.failed", err)
		return err
	}
	run.AddProcessed(int(expired))
	obsmetrics.Scheduler().AddBatchProcessed(JobQuotationExpiry, "quotation", int(expired))
	return nil
}

func headerStrings(headers map[string]any) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
