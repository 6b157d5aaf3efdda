package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kanakku/internal/clock"
	"github.com/smallbiznis/kanakku/internal/config"
	"github.com/smallbiznis/kanakku/internal/observability/logger"
	"github.com/smallbiznis/kanakku/internal/observability/metrics"
	"github.com/smallbiznis/kanakku/internal/ratelimit"
	"github.com/smallbiznis/kanakku/internal/sequence/domain"
	"github.com/smallbiznis/kanakku/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxAllocationAttempts = 5
	distributedLockTTL    = 10 * time.Second
	distributedLockWait   = 5 * time.Second
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Cfg       config.Config
	Numbering *config.NumberingConfigHolder
	Clock     clock.Clock
	Repo      domain.Repository
	Issued    domain.IssuedNumberSource `optional:"true"`
	Locker    *ratelimit.Locker         `optional:"true"`
	Metrics   *metrics.Metrics          `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	loc       *time.Location
	numbering *config.NumberingConfigHolder
	clock     clock.Clock
	repo      domain.Repository
	issued    domain.IssuedNumberSource
	locker    *ratelimit.Locker
	metrics   *metrics.Metrics
	keys      *keyedMutex
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("sequence.service"),
		genID:     p.GenID,
		loc:       p.Cfg.Location(),
		numbering: p.Numbering,
		clock:     p.Clock,
		repo:      p.Repo,
		issued:    p.Issued,
		locker:    p.Locker,
		metrics:   p.Metrics,
		keys:      newKeyedMutex(),
	}
}

func (s *Service) NextNumber(ctx context.Context, req domain.NextNumberRequest) (*domain.Allocation, error) {
	key, minDigits, err := s.resolveKey(req)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var alloc *domain.Allocation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		alloc, err = s.allocate(ctx, tx, key, minDigits)
		return err
	})
	if err != nil {
		return nil, err
	}
	return alloc, nil
}

func (s *Service) NextNumberTx(ctx context.Context, tx *gorm.DB, req domain.NextNumberRequest) (*domain.Allocation, error) {
	if tx == nil {
		return s.NextNumber(ctx, req)
	}
	key, minDigits, err := s.resolveKey(req)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.allocate(ctx, tx, key, minDigits)
}

func (s *Service) Preview(ctx context.Context, req domain.NextNumberRequest) (string, error) {
	key, minDigits, err := s.resolveKey(req)
	if err != nil {
		return "", err
	}

	series, err := s.repo.FindByKey(ctx, s.db, key)
	if err != nil {
		return "", err
	}
	last := int64(0)
	if series != nil {
		last = series.LastNumber
	} else {
		last, err = s.highestIssued(ctx, s.db, key)
		if err != nil {
			return "", err
		}
	}
	return domain.FormatNumber(key.Prefix, key.FiscalYear, last+1, minDigits), nil
}

func (s *Service) resolveKey(req domain.NextNumberRequest) (domain.SeriesKey, int, error) {
	if !req.Kind.Valid() {
		return domain.SeriesKey{}, 0, domain.ErrInvalidSeries
	}

	cfg := s.numbering.Get()
	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		prefix = cfg.Prefix(string(req.Kind))
	}
	prefix, err := domain.NormalizePrefix(prefix)
	if err != nil {
		return domain.SeriesKey{}, 0, err
	}

	startMonth := req.FiscalYearStartMonth
	if startMonth == 0 {
		startMonth = cfg.FiscalYearStartMonth
	}
	date := req.Date
	if date.IsZero() {
		date = s.clock.Now()
	}
	fy, err := domain.FiscalYearFor(date, startMonth, s.loc)
	if err != nil {
		return domain.SeriesKey{}, 0, err
	}

	return domain.SeriesKey{Kind: req.Kind, Prefix: prefix, FiscalYear: fy}, cfg.MinDigits, nil
}

// lock serializes allocations for one key inside the process and, when
// redis is configured, across instances.
func (s *Service) lock(ctx context.Context, key domain.SeriesKey) (func(), error) {
	release := s.keys.Lock(key.String())
	if s.locker == nil {
		return release, nil
	}

	lockKey := "kanakku:sequence:" + key.String()
	waitCtx, cancel := context.WithTimeout(ctx, distributedLockWait)
	defer cancel()
	token, err := s.locker.Lock(waitCtx, lockKey, distributedLockTTL, 0)
	if err != nil {
		// The CAS still guarantees uniqueness without the distributed lock.
		logger.WithContext(ctx, s.log).Warn("sequence distributed lock unavailable",
			zap.String("series_key", key.String()),
			zap.Error(err),
		)
		return release, nil
	}

	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.log.Warn("sequence distributed lock release failed", zap.String("series_key", key.String()), zap.Error(err))
		}
		release()
	}, nil
}

func (s *Service) allocate(ctx context.Context, tx *gorm.DB, key domain.SeriesKey, minDigits int) (*domain.Allocation, error) {
	log := logger.WithContext(ctx, s.log).With(zap.String("series_key", key.String()))

	for attempt := 1; attempt <= maxAllocationAttempts; attempt++ {
		series, err := s.ensureSeries(ctx, tx, key)
		if err != nil {
			return nil, err
		}

		next := series.LastNumber + 1
		swapped, err := s.repo.CompareAndSwap(ctx, tx, series.ID, series.LastNumber, next, s.clock.Now())
		if err != nil {
			if db.IsRetryableConflict(err) {
				// The enclosing transaction is unusable; the caller retries it.
				log.Warn("sequence update contended", zap.Int("attempt", attempt), zap.Error(err))
				return nil, fmt.Errorf("%w: %v", domain.ErrStorageConflict, err)
			}
			return nil, fmt.Errorf("advance series: %w", err)
		}
		if !swapped {
			log.Debug("sequence compare-and-swap lost", zap.Int("attempt", attempt), zap.Int64("expected", series.LastNumber))
			continue
		}

		alloc := &domain.Allocation{
			Number:     domain.FormatNumber(key.Prefix, key.FiscalYear, next, minDigits),
			Kind:       key.Kind,
			Prefix:     key.Prefix,
			FiscalYear: key.FiscalYear,
			Sequence:   next,
			Attempts:   attempt,
		}
		s.metrics.RecordNumberAllocated(ctx, string(key.Kind), attempt)
		log.Debug("document number allocated", zap.String("document_number", alloc.Number), zap.Int("attempts", attempt))
		return alloc, nil
	}

	s.metrics.RecordSequenceExhausted(ctx, string(key.Kind))
	log.Error("sequence allocation exhausted retries", zap.Int("attempts", maxAllocationAttempts))
	return nil, domain.ErrStorageConflict
}

func (s *Service) ensureSeries(ctx context.Context, tx *gorm.DB, key domain.SeriesKey) (*domain.DocumentSeries, error) {
	series, err := s.repo.FindByKey(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	if series != nil {
		return series, nil
	}

	seed, err := s.highestIssued(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	err = s.repo.InsertIfAbsent(ctx, tx, &domain.DocumentSeries{
		ID:         s.genID.Generate(),
		Kind:       key.Kind,
		Prefix:     key.Prefix,
		FiscalYear: key.FiscalYear,
		LastNumber: seed,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil && !db.IsDuplicateKeyErr(err) {
		return nil, fmt.Errorf("create series: %w", err)
	}

	series, err = s.repo.FindByKey(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	if series == nil {
		return nil, errors.New("series row missing after insert")
	}
	return series, nil
}

// highestIssued scans stored numbers for the largest numeric suffix.
// Malformed suffixes are skipped and reported; the series continues from
// the highest valid suffix, or 1 when none is valid.
const malformedSuffixPolicy = "continue_from_highest_valid"

func (s *Service) highestIssued(ctx context.Context, tx *gorm.DB, key domain.SeriesKey) (int64, error) {
	if s.issued == nil {
		return 0, nil
	}
	stem := domain.SeriesStem(key.Prefix, key.FiscalYear)
	numbers, err := s.issued.IssuedNumbers(ctx, tx, key.Kind, stem)
	if err != nil {
		return 0, fmt.Errorf("scan issued numbers: %w", err)
	}

	highest := int64(0)
	for _, number := range numbers {
		n, ok := domain.ParseSuffix(number, key.Prefix, key.FiscalYear)
		if !ok {
			logger.WithContext(ctx, s.log).Warn("skipping malformed document number, series continues from highest valid suffix",
				zap.String("series_key", key.String()),
				zap.String("document_number", number),
				zap.String("policy", malformedSuffixPolicy),
			)
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}
