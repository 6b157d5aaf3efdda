package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	SeriesInvoice    = "INVOICE"
	SeriesQuotation  = "QUOTATION"
	SeriesCreditNote = "CREDIT_NOTE"
	SeriesDebitNote  = "DEBIT_NOTE"
)

var prefixPattern = regexp.MustCompile(`^[A-Z0-9-]{1,10}$`)

// NumberingConfig controls how document numbers are minted.
type NumberingConfig struct {
	FiscalYearStartMonth int               `mapstructure:"fiscalYearStartMonth"`
	MinDigits            int               `mapstructure:"minDigits"`
	Prefixes             map[string]string `mapstructure:"prefixes"`
}

func DefaultNumberingConfig() NumberingConfig {
	return NumberingConfig{
		FiscalYearStartMonth: 4,
		MinDigits:            4,
		Prefixes: map[string]string{
			SeriesInvoice:    "INV",
			SeriesQuotation:  "QTN",
			SeriesCreditNote: "CN",
			SeriesDebitNote:  "DN",
		},
	}
}

// Prefix returns the configured prefix for a series, falling back to the default table.
func (c NumberingConfig) Prefix(series string) string {
	series = strings.ToUpper(strings.TrimSpace(series))
	for key, prefix := range c.Prefixes {
		if strings.EqualFold(key, series) {
			return prefix
		}
	}
	return DefaultNumberingConfig().Prefixes[series]
}

type NumberingConfigHolder struct {
	current atomic.Value // holds NumberingConfig
}

// NewNumberingConfigHolder reads numbering.yml and keeps it reloaded on change.
func NewNumberingConfigHolder(log *zap.Logger) (*NumberingConfigHolder, error) {
	return newNumberingConfigHolder(log, []string{
		"/var/lib/kanakku/config",
		"/etc/kanakku",
		".",
	})
}

// NewStaticNumberingConfigHolder returns a holder that never reloads.
func NewStaticNumberingConfigHolder(cfg NumberingConfig) *NumberingConfigHolder {
	holder := &NumberingConfigHolder{}
	holder.current.Store(normalizeNumberingConfig(cfg))
	return holder
}

func newNumberingConfigHolder(log *zap.Logger, paths []string) (*NumberingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.numbering")

	v := viper.New()
	v.SetConfigName("numbering")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("KANAKKU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultNumberingConfig()
	v.SetDefault("numbering.fiscalYearStartMonth", defaults.FiscalYearStartMonth)
	v.SetDefault("numbering.minDigits", defaults.MinDigits)
	v.SetDefault("numbering.prefixes", defaults.Prefixes)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := unmarshalNumbering(v)
	if err != nil {
		return nil, err
	}

	holder := &NumberingConfigHolder{}
	holder.current.Store(cfg)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := unmarshalNumbering(v)
			if err != nil {
				log.Warn("numbering config reload rejected", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("numbering config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *NumberingConfigHolder) Get() NumberingConfig {
	return h.current.Load().(NumberingConfig)
}

func unmarshalNumbering(v *viper.Viper) (NumberingConfig, error) {
	var cfg NumberingConfig
	if err := v.UnmarshalKey("numbering", &cfg); err != nil {
		return NumberingConfig{}, err
	}
	cfg = normalizeNumberingConfig(cfg)
	if err := ValidateNumberingConfig(cfg); err != nil {
		return NumberingConfig{}, err
	}
	return cfg, nil
}

func normalizeNumberingConfig(cfg NumberingConfig) NumberingConfig {
	defaults := DefaultNumberingConfig()
	if cfg.FiscalYearStartMonth == 0 {
		cfg.FiscalYearStartMonth = defaults.FiscalYearStartMonth
	}
	if cfg.MinDigits == 0 {
		cfg.MinDigits = defaults.MinDigits
	}
	prefixes := make(map[string]string, len(defaults.Prefixes))
	for key, value := range defaults.Prefixes {
		prefixes[key] = value
	}
	for key, value := range cfg.Prefixes {
		prefixes[strings.ToUpper(strings.TrimSpace(key))] = strings.ToUpper(strings.TrimSpace(value))
	}
	cfg.Prefixes = prefixes
	return cfg
}

func ValidateNumberingConfig(cfg NumberingConfig) error {
	if cfg.FiscalYearStartMonth < 1 || cfg.FiscalYearStartMonth > 12 {
		return errors.New("numbering.fiscalYearStartMonth must be between 1 and 12")
	}
	if cfg.MinDigits < 1 || cfg.MinDigits > 9 {
		return errors.New("numbering.minDigits must be between 1 and 9")
	}
	for _, series := range []string{SeriesInvoice, SeriesQuotation, SeriesCreditNote, SeriesDebitNote} {
		if !prefixPattern.MatchString(cfg.Prefixes[series]) {
			return fmt.Errorf("numbering.prefixes.%s is invalid", series)
		}
	}
	return nil
}
