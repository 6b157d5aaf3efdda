package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/kanakku/internal/clock"
	"github.com/smallbiznis/kanakku/internal/config"
	"github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	"github.com/smallbiznis/kanakku/internal/observability/logger"
	"github.com/smallbiznis/kanakku/internal/observability/metrics"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxErrorLength = 2000

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Cfg     config.Config
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	lease   time.Duration
	repo    domain.Repository
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	lease := p.Cfg.Scheduler.ClaimLease
	if lease <= 0 {
		lease = 10 * time.Minute
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("emailqueue.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		lease:   lease,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.EmailJob, error) {
	return s.EnqueueTx(ctx, s.db, req)
}

func (s *Service) EnqueueTx(ctx context.Context, tx *gorm.DB, req domain.EnqueueRequest) (*domain.EmailJob, error) {
	if tx == nil {
		tx = s.db
	}

	recipient := strings.TrimSpace(req.Recipient)
	addr, err := mail.ParseAddress(recipient)
	if recipient == "" || err != nil {
		return nil, domain.ErrInvalidRecipient
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, domain.ErrInvalidSubject
	}
	maxRetries := req.MaxRetries
	if maxRetries < 0 || maxRetries > domain.MaxRetriesLimit {
		return nil, domain.ErrInvalidMaxRetries
	}
	if maxRetries == 0 {
		maxRetries = domain.DefaultMaxRetries
	}

	headers := datatypes.JSONMap{}
	for k, v := range req.Headers {
		headers[k] = v
	}

	now := s.clock.Now().UTC()
	job := &domain.EmailJob{
		ID:             s.genID.Generate(),
		Recipient:      addr.Address,
		Subject:        subject,
		HTMLBody:       req.HTMLBody,
		TextBody:       req.TextBody,
		AttachmentKind: strings.TrimSpace(req.AttachmentKind),
		AttachmentRef:  strings.TrimSpace(req.AttachmentRef),
		Headers:        headers,
		Status:         domain.StatusPending,
		MaxRetries:     maxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, tx, job); err != nil {
		return nil, fmt.Errorf("insert email job: %w", err)
	}

	s.metrics.RecordEmailEnqueued(ctx, job.AttachmentKind)
	logger.WithContext(ctx, s.log).Info("email job enqueued",
		zap.String("email_job_id", job.ID.String()),
		zap.String("recipient", job.Recipient),
		zap.String("attachment_kind", job.AttachmentKind),
	)
	return job, nil
}

func (s *Service) ClaimDue(ctx context.Context, limit int) ([]domain.EmailJob, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := s.clock.Now().UTC()
	token := uuid.NewString()

	items, err := s.repo.Claim(ctx, s.db, token, now, now.Add(-s.lease), limit)
	if err != nil {
		return nil, fmt.Errorf("claim email jobs: %w", err)
	}

	jobs := make([]domain.EmailJob, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		jobs = append(jobs, *item)
	}
	return jobs, nil
}

func (s *Service) MarkSent(ctx context.Context, id snowflake.ID) (*domain.EmailJob, error) {
	now := s.clock.Now().UTC()
	ok, err := s.repo.UpdateIf(ctx, s.db, id, domain.StatusPending, nil, map[string]any{
		"status":      domain.StatusSent,
		"sent_at":     now,
		"last_error":  "",
		"claim_token": nil,
		"claimed_at":  nil,
		"updated_at":  now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, id)
	}
	return s.find(ctx, id)
}

func (s *Service) MarkFailed(ctx context.Context, id snowflake.ID, message string) (*domain.EmailJob, error) {
	job, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusPending {
		return nil, domain.ErrInvalidStateTransition
	}

	now := s.clock.Now().UTC()
	retryCount := job.RetryCount + 1
	updates := map[string]any{
		"retry_count": retryCount,
		"last_error":  truncate(message, maxErrorLength),
		"claim_token": nil,
		"claimed_at":  nil,
		"updated_at":  now,
	}
	if retryCount >= job.MaxRetries {
		updates["status"] = domain.StatusFailed
		updates["next_retry_at"] = nil
	} else {
		updates["next_retry_at"] = now.Add(domain.Backoff(retryCount))
	}

	expected := job.RetryCount
	ok, err := s.repo.UpdateIf(ctx, s.db, id, domain.StatusPending, &expected, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, id)
	}

	updated, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	log := logger.WithContext(ctx, s.log).With(
		zap.String("email_job_id", id.String()),
		zap.Int("retry_count", updated.RetryCount),
		zap.Int("max_retries", updated.MaxRetries),
	)
	if updated.Status == domain.StatusFailed {
		log.Warn("email job failed permanently")
	} else {
		log.Info("email job scheduled for retry", zap.Timep("next_retry_at", updated.NextRetryAt))
	}
	return updated, nil
}

func (s *Service) RetryManually(ctx context.Context, req domain.RetryRequest) (*domain.RetryResult, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	job, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusFailed {
		return nil, domain.ErrInvalidStateTransition
	}

	maxRetries := job.MaxRetries
	if req.RaiseMaxRetriesTo != nil {
		if *req.RaiseMaxRetriesTo <= 0 || *req.RaiseMaxRetriesTo > domain.MaxRetriesLimit {
			return nil, domain.ErrInvalidMaxRetries
		}
		if *req.RaiseMaxRetriesTo > maxRetries {
			maxRetries = *req.RaiseMaxRetriesTo
		}
	}

	now := s.clock.Now().UTC()
	ok, err := s.repo.UpdateIf(ctx, s.db, id, domain.StatusFailed, nil, map[string]any{
		"status":        domain.StatusPending,
		"next_retry_at": nil,
		"max_retries":   maxRetries,
		"claim_token":   nil,
		"claimed_at":    nil,
		"updated_at":    now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, id)
	}

	updated, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &domain.RetryResult{Job: *updated}
	if updated.RetryCount >= updated.MaxRetries {
		// The retry count is kept, so a single further failure is final.
		result.Warning = fmt.Sprintf(
			"retry count %d already reaches max retries %d; the next failure marks the job FAILED again",
			updated.RetryCount, updated.MaxRetries,
		)
		logger.WithContext(ctx, s.log).Warn("manual retry without remaining attempts",
			zap.String("email_job_id", id.String()),
			zap.Int("retry_count", updated.RetryCount),
			zap.Int("max_retries", updated.MaxRetries),
		)
	}
	return result, nil
}

func (s *Service) ReleaseStaleClaims(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().UTC().Add(-s.lease)
	released, err := s.repo.ReleaseStaleClaims(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		logger.WithContext(ctx, s.log).Warn("released stale email claims", zap.Int64("count", released))
	}
	return released, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.EmailJob, error) {
	parsed, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, parsed)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{}
	if status := strings.ToUpper(strings.TrimSpace(req.Status)); status != "" {
		switch domain.Status(status) {
		case domain.StatusPending, domain.StatusSent, domain.StatusFailed:
			filter.Status = domain.Status(status)
		default:
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(job *domain.EmailJob) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        job.ID.String(),
			CreatedAt: job.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	jobs := make([]domain.EmailJob, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		jobs = append(jobs, *item)
	}

	resp := domain.ListResponse{Jobs: jobs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	counts, err := s.repo.CountByStatus(ctx, s.db)
	if err != nil {
		return domain.Stats{}, err
	}
	stats := domain.Stats{
		Pending: counts[domain.StatusPending],
		Sent:    counts[domain.StatusSent],
		Failed:  counts[domain.StatusFailed],
	}
	stats.Total = stats.Pending + stats.Sent + stats.Failed
	return stats, nil
}

// Delete removes a job unless a worker currently holds it.
func (s *Service) Delete(ctx context.Context, id string) error {
	parsed, err := parseID(id)
	if err != nil {
		return err
	}
	job, err := s.find(ctx, parsed)
	if err != nil {
		return err
	}
	if job.Status == domain.StatusPending && job.ClaimToken != nil && job.ClaimedAt != nil &&
		job.ClaimedAt.After(s.clock.Now().UTC().Add(-s.lease)) {
		return domain.ErrInvalidStateTransition
	}

	deleted, err := s.repo.Delete(ctx, s.db, parsed)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	logger.WithContext(ctx, s.log).Info("email job deleted", zap.String("email_job_id", parsed.String()))
	return nil
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (*domain.EmailJob, error) {
	job, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (s *Service) transitionError(ctx context.Context, id snowflake.ID) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	return domain.ErrInvalidStateTransition
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	// back off to a rune boundary so the stored text stays valid UTF-8
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
