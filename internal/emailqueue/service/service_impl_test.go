package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/kanakku/internal/clock"
	"github.com/smallbiznis/kanakku/internal/config"
	"github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	"github.com/smallbiznis/kanakku/internal/emailqueue/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	svc   domain.Service
	db    *gorm.DB
	clock *clock.FakeClock
}

func setup(t *testing.T) testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.EmailJob{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Cfg: config.Config{
			Scheduler: config.SchedulerConfig{ClaimLease: 10 * time.Minute},
		},
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return testEnv{svc: svc, db: db, clock: clk}
}

func enqueue(t *testing.T, env testEnv, subject string) *domain.EmailJob {
	t.Helper()
	job, err := env.svc.Enqueue(context.Background(), domain.EnqueueRequest{
		Recipient:      "Accounts <accounts@example.com>",
		Subject:        subject,
		HTMLBody:       "<p>hi</p>",
		TextBody:       "hi",
		AttachmentKind: domain.AttachmentDocumentPDF,
		AttachmentRef:  "42",
	})
	require.NoError(t, err)
	return job
}

func TestEnqueue(t *testing.T) {
	env := setup(t)
	job := enqueue(t, env, "Invoice INV/2024-25/0001 from Acme")

	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, "accounts@example.com", job.Recipient)
	assert.Equal(t, domain.DefaultMaxRetries, job.MaxRetries)
	assert.Nil(t, job.NextRetryAt)
	assert.Zero(t, job.RetryCount)

	_, err := env.svc.Enqueue(context.Background(), domain.EnqueueRequest{Recipient: "not-an-email", Subject: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
	_, err = env.svc.Enqueue(context.Background(), domain.EnqueueRequest{Recipient: "a@example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidSubject)
}

func TestMarkFailedBackoffSequence(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	job := enqueue(t, env, "retry me")
	start := env.clock.Now()

	first, err := env.svc.MarkFailed(ctx, job.ID, "smtp timeout")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, first.Status)
	assert.Equal(t, 1, first.RetryCount)
	require.NotNil(t, first.NextRetryAt)
	assert.True(t, first.NextRetryAt.Equal(start.Add(5*time.Minute)))
	assert.Equal(t, "smtp timeout", first.LastError)

	second, err := env.svc.MarkFailed(ctx, job.ID, "smtp timeout")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, second.Status)
	require.NotNil(t, second.NextRetryAt)
	assert.True(t, second.NextRetryAt.Equal(start.Add(15*time.Minute)))

	third, err := env.svc.MarkFailed(ctx, job.ID, "smtp timeout")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, third.Status)
	assert.Equal(t, 3, third.RetryCount)

	_, err = env.svc.MarkFailed(ctx, job.ID, "again")
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Minute, domain.Backoff(1))
	assert.Equal(t, 15*time.Minute, domain.Backoff(2))
	assert.Equal(t, 45*time.Minute, domain.Backoff(3))
	assert.Equal(t, 5*time.Minute, domain.Backoff(0))
	assert.Equal(t, 1215*time.Minute, domain.Backoff(6))
	for _, n := range []int{7, 17, 20, 64, 1000} {
		assert.Equal(t, domain.MaxBackoff, domain.Backoff(n), "retry %d", n)
	}
}

func TestRetryManuallyBoundsMaxRetries(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	job := enqueue(t, env, "bounded")
	for i := 0; i < 3; i++ {
		_, err := env.svc.MarkFailed(ctx, job.ID, "boom")
		require.NoError(t, err)
	}

	tooMany := domain.MaxRetriesLimit + 1
	_, err := env.svc.RetryManually(ctx, domain.RetryRequest{ID: job.ID.String(), RaiseMaxRetriesTo: &tooMany})
	assert.ErrorIs(t, err, domain.ErrInvalidMaxRetries)

	_, err = env.svc.Enqueue(ctx, domain.EnqueueRequest{
		Recipient:  "a@example.com",
		Subject:    "x",
		MaxRetries: domain.MaxRetriesLimit + 1,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMaxRetries)
}

func TestMarkFailedKeepsErrorValidUTF8(t *testing.T) {
	env := setup(t)
	job := enqueue(t, env, "utf8")

	// "₹" is three bytes; the limit lands inside the last one
	message := strings.Repeat("a", maxErrorLength-1) + "₹₹"
	updated, err := env.svc.MarkFailed(context.Background(), job.ID, message)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(updated.LastError))
	assert.Equal(t, strings.Repeat("a", maxErrorLength-1), updated.LastError)

	assert.Equal(t, "ab", truncate("ab₹", 3))
	assert.Equal(t, "ab₹", truncate("ab₹", 5))
}

func TestMarkSentTwiceIsInvalid(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	job := enqueue(t, env, "send once")

	sent, err := env.svc.MarkSent(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)

	_, err = env.svc.MarkSent(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	_, err = env.svc.MarkSent(ctx, snowflake.ID(12345))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRetryManuallyKeepsRetryCount(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	job := enqueue(t, env, "sharp edge")
	for i := 0; i < 3; i++ {
		_, err := env.svc.MarkFailed(ctx, job.ID, "boom")
		require.NoError(t, err)
	}

	result, err := env.svc.RetryManually(ctx, domain.RetryRequest{ID: job.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, result.Job.Status)
	assert.Equal(t, 3, result.Job.RetryCount)
	assert.Nil(t, result.Job.NextRetryAt)
	assert.NotEmpty(t, result.Warning)

	// One more failure re-fails immediately.
	again, err := env.svc.MarkFailed(ctx, job.ID, "boom")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, again.Status)
	assert.Equal(t, 4, again.RetryCount)
}

func TestRetryManuallyWithRaisedMaxRetries(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	job := enqueue(t, env, "raise")
	for i := 0; i < 3; i++ {
		_, err := env.svc.MarkFailed(ctx, job.ID, "boom")
		require.NoError(t, err)
	}

	raise := 5
	result, err := env.svc.RetryManually(ctx, domain.RetryRequest{ID: job.ID.String(), RaiseMaxRetriesTo: &raise})
	require.NoError(t, err)
	assert.Empty(t, result.Warning)
	assert.Equal(t, 5, result.Job.MaxRetries)

	next, err := env.svc.MarkFailed(ctx, job.ID, "boom")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, next.Status)
	require.NotNil(t, next.NextRetryAt)
	assert.True(t, next.NextRetryAt.Equal(env.clock.Now().Add(domain.Backoff(4))))
}

func TestRetryManuallyRequiresFailed(t *testing.T) {
	env := setup(t)
	job := enqueue(t, env, "pending")

	_, err := env.svc.RetryManually(context.Background(), domain.RetryRequest{ID: job.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	_, err = env.svc.RetryManually(context.Background(), domain.RetryRequest{ID: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestClaimDueOrderingAndDueness(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	first := enqueue(t, env, "first")
	env.clock.Advance(time.Second)
	second := enqueue(t, env, "second")
	env.clock.Advance(time.Second)
	third := enqueue(t, env, "third")

	// second backs off for 5 minutes.
	_, err := env.svc.MarkFailed(ctx, second.ID, "later")
	require.NoError(t, err)

	jobs, err := env.svc.ClaimDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, first.ID, jobs[0].ID)
	assert.Equal(t, third.ID, jobs[1].ID)

	// Already claimed.
	again, err := env.svc.ClaimDue(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	env.clock.Advance(5 * time.Minute)
	later, err := env.svc.ClaimDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, second.ID, later[0].ID)
}

func TestClaimDueRespectsLimit(t *testing.T) {
	env := setup(t)
	for i := 0; i < 5; i++ {
		enqueue(t, env, fmt.Sprintf("job %d", i))
		env.clock.Advance(time.Second)
	}

	jobs, err := env.svc.ClaimDue(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	assert.Equal(t, "job 0", jobs[0].Subject)
}

func TestClaimDueConcurrentWorkersNeverShareJobs(t *testing.T) {
	env := setup(t)
	for i := 0; i < 20; i++ {
		enqueue(t, env, fmt.Sprintf("job %d", i))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[snowflake.ID]int)
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			jobs, err := env.svc.ClaimDue(context.Background(), 7)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, j := range jobs {
				seen[j.ID]++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
	for id, n := range seen {
		assert.Equalf(t, 1, n, "job %s claimed %d times", id, n)
	}
}

func TestReleaseStaleClaims(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	job := enqueue(t, env, "stale")

	claimed, err := env.svc.ClaimDue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	released, err := env.svc.ReleaseStaleClaims(ctx)
	require.NoError(t, err)
	assert.Zero(t, released)

	env.clock.Advance(11 * time.Minute)
	released, err = env.svc.ReleaseStaleClaims(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	reclaimed, err := env.svc.ClaimDue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, job.ID, reclaimed[0].ID)
}

func TestStatsListAndDelete(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	a := enqueue(t, env, "a")
	env.clock.Advance(time.Second)
	b := enqueue(t, env, "b")
	env.clock.Advance(time.Second)
	enqueue(t, env, "c")

	_, err := env.svc.MarkSent(ctx, a.ID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = env.svc.MarkFailed(ctx, b.ID, "boom")
		require.NoError(t, err)
	}

	stats, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Pending: 1, Sent: 1, Failed: 1, Total: 3}, stats)

	failed, err := env.svc.List(ctx, domain.ListRequest{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, failed.Jobs, 1)
	assert.Equal(t, b.ID, failed.Jobs[0].ID)

	_, err = env.svc.List(ctx, domain.ListRequest{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	page, err := env.svc.List(ctx, domain.ListRequest{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Jobs, 2)
	assert.True(t, page.HasMore)
	rest, err := env.svc.List(ctx, domain.ListRequest{PageSize: 2, PageToken: page.NextPageToken})
	require.NoError(t, err)
	require.Len(t, rest.Jobs, 1)
	assert.Equal(t, a.ID, rest.Jobs[0].ID)

	require.NoError(t, env.svc.Delete(ctx, b.ID.String()))
	_, err = env.svc.Get(ctx, b.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRefusesLiveClaim(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	job := enqueue(t, env, "busy")

	_, err := env.svc.ClaimDue(ctx, 1)
	require.NoError(t, err)

	err = env.svc.Delete(ctx, job.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}
