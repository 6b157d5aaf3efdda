package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kanakku/internal/document/domain"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
)

// GSTSummary groups the stored lines of issued invoices dated within
// [from, to] by GST rate. Cancelled invoices are excluded.
func (s *Service) GSTSummary(ctx context.Context, from, to time.Time) (*domain.GSTSummary, error) {
	start := s.day(&from)
	end := s.day(&to)
	if end.Before(start) {
		return nil, domain.ErrInvalidDateRange
	}
	endExclusive := end.AddDate(0, 0, 1)

	docs, err := s.repo.ListWithItems(ctx, s.db, domain.ListFilter{
		Kind:   sequencedomain.SeriesInvoice,
		Status: domain.StatusIssued,
		From:   &start,
		To:     &endExclusive,
	})
	if err != nil {
		return nil, err
	}

	var lines []taxdomain.TaxedLine
	for _, doc := range docs {
		for _, item := range doc.Items {
			lines = append(lines, item.TaxedLine())
		}
	}

	summary := &domain.GSTSummary{
		From:         start,
		To:           end,
		InvoiceCount: len(docs),
		Rates:        s.engine.SummarizeByRate(lines),
		TaxableValue: decimal.Zero,
		CGST:         decimal.Zero,
		SGST:         decimal.Zero,
		IGST:         decimal.Zero,
	}
	for _, rate := range summary.Rates {
		summary.TaxableValue = summary.TaxableValue.Add(rate.TaxableValue)
		summary.CGST = summary.CGST.Add(rate.CGST)
		summary.SGST = summary.SGST.Add(rate.SGST)
		summary.IGST = summary.IGST.Add(rate.IGST)
	}
	summary.TotalTax = summary.CGST.Add(summary.SGST).Add(summary.IGST)
	return summary, nil
}
