package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kanakku/internal/document/domain"
	productdomain "github.com/smallbiznis/kanakku/internal/product/domain"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
	"gorm.io/gorm"
)

type catalogLines struct {
	items []taxdomain.LineItem
	// products holds the catalog product billed on each line, 0 for free text.
	products []snowflake.ID
}

// fillFromCatalog resolves product references by ID or barcode. A line
// without a name is billed entirely from the catalog; otherwise only a
// blank HSN code or unit is filled. ProductRef is rewritten to the
// product ID so stock follows the product, not the barcode.
func (s *Service) fillFromCatalog(ctx context.Context, tx *gorm.DB, in []taxdomain.LineItem) (catalogLines, error) {
	out := catalogLines{
		items:    make([]taxdomain.LineItem, len(in)),
		products: make([]snowflake.ID, len(in)),
	}
	copy(out.items, in)
	for i, item := range out.items {
		if item.ProductRef == "" {
			continue
		}
		product, err := s.products.ResolveTx(ctx, tx, item.ProductRef)
		if err != nil {
			return catalogLines{}, err
		}
		if product == nil {
			continue
		}

		if item.Name == "" {
			item.Name = product.Name
			item.UnitRate = product.Price
			item.GSTRate = product.GSTRate
		}
		if item.HSNCode == "" {
			item.HSNCode = product.HSNCode
		}
		if item.Unit == "" {
			item.Unit = product.Unit
		}
		item.ProductRef = product.ID.String()
		out.items[i] = item
		out.products[i] = product.ID
	}
	return out, nil
}

// moveStock takes invoiced goods out of stock or puts returned goods back.
// Movements are tied to the invoice so a cancellation can reverse them.
func (s *Service) moveStock(ctx context.Context, tx *gorm.DB, doc *domain.Document, d draft, products []snowflake.ID) error {
	if d.stock == 0 {
		return nil
	}
	reason := productdomain.ReasonSale
	invoiceID := doc.ID
	if doc.Kind == sequencedomain.SeriesCreditNote && d.original != nil {
		reason = productdomain.ReasonReturn
		invoiceID = d.original.ID
	}

	movements := make([]productdomain.Movement, 0, len(doc.Items))
	for i, item := range doc.Items {
		if i >= len(products) || products[i] == 0 {
			continue
		}
		delta := item.Quantity
		if d.stock < 0 {
			delta = delta.Neg()
		}
		docID, inv := doc.ID, invoiceID
		movements = append(movements, productdomain.Movement{
			ProductID:  products[i],
			Delta:      delta,
			Reason:     reason,
			Reference:  doc.Number,
			DocumentID: &docID,
			InvoiceID:  &inv,
		})
	}
	return s.products.MoveTx(ctx, tx, movements)
}
