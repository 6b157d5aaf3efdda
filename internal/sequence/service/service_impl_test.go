package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/kanakku/internal/clock"
	"github.com/smallbiznis/kanakku/internal/config"
	"github.com/smallbiznis/kanakku/internal/sequence/domain"
	"github.com/smallbiznis/kanakku/internal/sequence/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type issuedStub struct {
	numbers []string
}

func (s *issuedStub) IssuedNumbers(ctx context.Context, db *gorm.DB, kind domain.SeriesKind, stem string) ([]string, error) {
	out := make([]string, 0, len(s.numbers))
	for _, n := range s.numbers {
		if strings.HasPrefix(n, stem) {
			out = append(out, n)
		}
	}
	return out, nil
}

func setupDB(t *testing.T) *gorm.DB {
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
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	require.NoError(t, db.AutoMigrate(&domain.DocumentSeries{}))
	return db
}

func setupService(t *testing.T, db *gorm.DB, clk clock.Clock, issued domain.IssuedNumberSource) domain.Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Cfg:       config.Config{Timezone: "Asia/Kolkata"},
		Numbering: config.NewStaticNumberingConfigHolder(config.DefaultNumberingConfig()),
		Clock:     clk,
		Repo:      repository.Provide(),
		Issued:    issued,
	})
}

func ist(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.FixedZone("IST", 5*60*60+30*60))
}

func TestNextNumberSequential(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db, clock.NewFakeClock(ist(2024, time.June, 10)), nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		alloc, err := svc.NextNumber(ctx, domain.NextNumberRequest{Kind: domain.SeriesInvoice})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("INV/2024-25/%04d", i), alloc.Number)
		assert.Equal(t, int64(i), alloc.Sequence)
	}

	alloc, err := svc.NextNumber(ctx, domain.NextNumberRequest{Kind: domain.SeriesQuotation})
	require.NoError(t, err)
	assert.Equal(t, "QTN/2024-25/0001", alloc.Number)
}

func TestNextNumberConcurrentAllocationsAreDistinctAndGapless(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db, clock.NewFakeClock(ist(2024, time.June, 10)), nil)
	ctx := context.Background()

	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]struct{}, workers)
		seqs    = make(map[int64]struct{}, workers)
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alloc, err := svc.NextNumber(ctx, domain.NextNumberRequest{Kind: domain.SeriesInvoice})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers[alloc.Number] = struct{}{}
			seqs[alloc.Sequence] = struct{}{}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Len(t, numbers, workers)
	for i := int64(1); i <= workers; i++ {
		_, ok := seqs[i]
		assert.Truef(t, ok, "sequence %d missing", i)
	}
}

func TestNextNumberResetsOnFiscalYearBoundary(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFakeClock(ist(2025, time.March, 31))
	svc := setupService(t, db, clk, nil)
	ctx := context.Background()

	first, err := svc.NextNumber(ctx, domain.NextNumberRequest{Kind: domain.SeriesInvoice})
	require.NoError(t, err)
	second, err := svc.NextNumber(ctx, domain.NextNumberRequest{Kind: domain.SeriesInvoice})
	require.NoError(t, err)
	assert.Equal(t, "INV/2024-25/0001", first.Number)
	assert.Equal(t, "INV/2024-25/0002", second.Number)

	clk.Set(ist(2025, time.April, 1))
	next, err := svc.NextNumber(ctx, domain.NextNumberRequest{Kind: domain.SeriesInvoice})
	require.NoError(t, err)
	assert.Equal(t, "INV/2025-26/0001", next.Number)
}

func TestNextNumberExplicitDateAndStartMonth(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db, clock.NewFakeClock(ist(2024, time.June, 10)), nil)

	alloc, err := svc.NextNumber(context.Background(), domain.NextNumberRequest{
		Kind:                 domain.SeriesCreditNote,
		Prefix:               "crn",
		FiscalYearStartMonth: 1,
		Date:                 ist(2023, time.February, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, "CRN/2023-24/0001", alloc.Number)
}

func TestNextNumberBootstrapsFromIssuedNumbers(t *testing.T) {
	db := setupDB(t)
	issued := &issuedStub{numbers: []string{
		"INV/2024-25/0007",
		"INV/2024-25/0012",
		"INV/2024-25/00X9",
		"INV/2023-24/0400",
	}}
	svc := setupService(t, db, clock.NewFakeClock(ist(2024, time.June, 10)), issued)

	alloc, err := svc.NextNumber(context.Background(), domain.NextNumberRequest{Kind: domain.SeriesInvoice})
	require.NoError(t, err)
	assert.Equal(t, "INV/2024-25/0013", alloc.Number)
}

func TestNextNumberReportsMalformedSuffixPolicy(t *testing.T) {
	db := setupDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	core, logs := observer.New(zapcore.WarnLevel)
	svc := New(Params{
		DB:        db,
		Log:       zap.New(core),
		GenID:     node,
		Cfg:       config.Config{Timezone: "Asia/Kolkata"},
		Numbering: config.NewStaticNumberingConfigHolder(config.DefaultNumberingConfig()),
		Clock:     clock.NewFakeClock(ist(2024, time.June, 10)),
		Repo:      repository.Provide(),
		Issued:    &issuedStub{numbers: []string{"INV/2024-25/0004", "INV/2024-25/00X9"}},
	})

	alloc, err := svc.NextNumber(context.Background(), domain.NextNumberRequest{Kind: domain.SeriesInvoice})
	require.NoError(t, err)
	assert.Equal(t, "INV/2024-25/0005", alloc.Number)

	entries := logs.FilterField(zap.String("document_number", "INV/2024-25/00X9")).All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "continues from highest valid suffix")
	assert.Equal(t, malformedSuffixPolicy, entries[0].ContextMap()["policy"])
}

func TestNextNumberStampsUpdatedAtFromClock(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFakeClock(ist(2024, time.June, 10))
	svc := setupService(t, db, clk, nil)
	ctx := context.Background()

	_, err := svc.NextNumber(ctx, domain.NextNumberRequest{Kind: domain.SeriesInvoice})
	require.NoError(t, err)
	clk.Advance(3 * time.Hour)
	_, err = svc.NextNumber(ctx, domain.NextNumberRequest{Kind: domain.SeriesInvoice})
	require.NoError(t, err)

	var series domain.DocumentSeries
	require.NoError(t, db.Where("kind = ?", domain.SeriesInvoice).First(&series).Error)
	assert.Equal(t, int64(2), series.LastNumber)
	assert.True(t, series.UpdatedAt.Equal(clk.Now()), "updated_at %s, clock %s", series.UpdatedAt, clk.Now())
}

func TestNextNumberOnlyMalformedStartsAtOne(t *testing.T) {
	db := setupDB(t)
	issued := &issuedStub{numbers: []string{"INV/2024-25/ABCD"}}
	svc := setupService(t, db, clock.NewFakeClock(ist(2024, time.June, 10)), issued)

	alloc, err := svc.NextNumber(context.Background(), domain.NextNumberRequest{Kind: domain.SeriesInvoice})
	require.NoError(t, err)
	assert.Equal(t, "INV/2024-25/0001", alloc.Number)
}

func TestNextNumberGrowsPastMinDigits(t *testing.T) {
	db := setupDB(t)
	issued := &issuedStub{numbers: []string{"INV/2024-25/9999"}}
	svc := setupService(t, db, clock.NewFakeClock(ist(2024, time.June, 10)), issued)

	alloc, err := svc.NextNumber(context.Background(), domain.NextNumberRequest{Kind: domain.SeriesInvoice})
	require.NoError(t, err)
	assert.Equal(t, "INV/2024-25/10000", alloc.Number)
}

func TestNextNumberTxRollbackReleasesNumber(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db, clock.NewFakeClock(ist(2024, time.June, 10)), nil)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		alloc, err := svc.NextNumberTx(ctx, tx, domain.NextNumberRequest{Kind: domain.SeriesInvoice})
		require.NoError(t, err)
		assert.Equal(t, "INV/2024-25/0001", alloc.Number)
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	alloc, err := svc.NextNumber(ctx, domain.NextNumberRequest{Kind: domain.SeriesInvoice})
	require.NoError(t, err)
	assert.Equal(t, "INV/2024-25/0001", alloc.Number)
}

func TestPreviewDoesNotConsume(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db, clock.NewFakeClock(ist(2024, time.June, 10)), nil)
	ctx := context.Background()

	preview, err := svc.Preview(ctx, domain.NextNumberRequest{Kind: domain.SeriesDebitNote})
	require.NoError(t, err)
	assert.Equal(t, "DN/2024-25/0001", preview)

	alloc, err := svc.NextNumber(ctx, domain.NextNumberRequest{Kind: domain.SeriesDebitNote})
	require.NoError(t, err)
	assert.Equal(t, preview, alloc.Number)
}

func TestNextNumberRejectsInvalidInput(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db, clock.NewFakeClock(ist(2024, time.June, 10)), nil)
	ctx := context.Background()

	_, err := svc.NextNumber(ctx, domain.NextNumberRequest{Kind: "RECEIPT"})
	assert.ErrorIs(t, err, domain.ErrInvalidSeries)

	_, err = svc.NextNumber(ctx, domain.NextNumberRequest{Kind: domain.SeriesInvoice, Prefix: "IN/V"})
	assert.ErrorIs(t, err, domain.ErrInvalidPrefix)

	_, err = svc.NextNumber(ctx, domain.NextNumberRequest{Kind: domain.SeriesInvoice, FiscalYearStartMonth: 13})
	assert.ErrorIs(t, err, domain.ErrInvalidFiscalYearStart)
}

type conflictRepo struct {
	domain.Repository
}

func (r conflictRepo) CompareAndSwap(ctx context.Context, db *gorm.DB, id snowflake.ID, old, next int64, at time.Time) (bool, error) {
	return false, nil
}

func TestNextNumberExhaustsRetries(t *testing.T) {
	db := setupDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Cfg:       config.Config{},
		Numbering: config.NewStaticNumberingConfigHolder(config.DefaultNumberingConfig()),
		Clock:     clock.NewFakeClock(ist(2024, time.June, 10)),
		Repo:      conflictRepo{Repository: repository.Provide()},
	})

	_, err = svc.NextNumber(context.Background(), domain.NextNumberRequest{Kind: domain.SeriesInvoice})
	assert.ErrorIs(t, err, domain.ErrStorageConflict)
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	km := newKeyedMutex()
	unlock := km.Lock("a")
	unlock()
	assert.Empty(t, km.locks)
}
