package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	documentsIssued   metric.Int64Counter
	numbersAllocated  metric.Int64Counter
	sequenceConflicts metric.Int64Counter
	emailsEnqueued    metric.Int64Counter
	emailDeliveries   metric.Int64Counter
	emailSendDuration metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "kanakku"
	}
	meter := provider.Meter(name)

	documentsIssued, err := meter.Int64Counter("kanakku_documents_issued_total")
	if err != nil {
		return nil, err
	}
	numbersAllocated, err := meter.Int64Counter("kanakku_sequence_numbers_allocated_total")
	if err != nil {
		return nil, err
	}
	sequenceConflicts, err := meter.Int64Counter("kanakku_sequence_conflicts_total")
	if err != nil {
		return nil, err
	}
	emailsEnqueued, err := meter.Int64Counter("kanakku_email_jobs_enqueued_total")
	if err != nil {
		return nil, err
	}
	emailDeliveries, err := meter.Int64Counter("kanakku_email_deliveries_total")
	if err != nil {
		return nil, err
	}
	emailSendDuration, err := meter.Float64Histogram("kanakku_email_send_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		documentsIssued:   documentsIssued,
		numbersAllocated:  numbersAllocated,
		sequenceConflicts: sequenceConflicts,
		emailsEnqueued:    emailsEnqueued,
		emailDeliveries:   emailDeliveries,
		emailSendDuration: emailSendDuration,
	}, nil
}

// RecordDocumentIssued counts persisted documents per series.
func (m *Metrics) RecordDocumentIssued(ctx context.Context, series string, interState bool) {
	if m == nil {
		return
	}
	supply := "intra_state"
	if interState {
		supply = "inter_state"
	}
	attrs := FilterAttributes(
		attribute.String("series", strings.TrimSpace(series)),
		attribute.String("supply", supply),
	)
	m.documentsIssued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNumberAllocated counts minted document numbers and the CAS attempts they took.
func (m *Metrics) RecordNumberAllocated(ctx context.Context, series string, attempts int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("series", strings.TrimSpace(series)))
	m.numbersAllocated.Add(ctx, 1, metric.WithAttributes(attrs...))
	if attempts > 1 {
		m.sequenceConflicts.Add(ctx, int64(attempts-1), metric.WithAttributes(attrs...))
	}
}

// RecordSequenceExhausted counts allocations that gave up with a storage conflict.
func (m *Metrics) RecordSequenceExhausted(ctx context.Context, series string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("series", strings.TrimSpace(series)),
		attribute.String("outcome", "exhausted"),
	)
	m.sequenceConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEmailEnqueued counts queued email jobs by attachment kind.
func (m *Metrics) RecordEmailEnqueued(ctx context.Context, attachmentKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("attachment_kind", strings.TrimSpace(attachmentKind)))
	m.emailsEnqueued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEmailDelivery records a send attempt outcome: sent, retry or failed.
func (m *Metrics) RecordEmailDelivery(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.emailDeliveries.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.emailSendDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"series":          {},
	"supply":          {},
	"outcome":         {},
	"attachment_kind": {},
	"method":          {},
	"route":           {},
	"status_code":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
