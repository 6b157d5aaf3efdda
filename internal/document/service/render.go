package service

import (
	"context"
	"strings"

	companydomain "github.com/smallbiznis/kanakku/internal/company/domain"
	"github.com/smallbiznis/kanakku/internal/document/domain"
	emailqueuedomain "github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	"github.com/smallbiznis/kanakku/internal/observability/logger"
	"github.com/smallbiznis/kanakku/internal/providers/pdf"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func (s *Service) RenderPDF(ctx context.Context, id string) (*domain.RenderedPDF, error) {
	if s.pdf == nil {
		return nil, domain.ErrRendererUnavailable
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	company, err := s.company.Get(ctx)
	if err != nil {
		return nil, err
	}

	content, err := s.pdf.RenderDocument(ctx, s.pdfData(doc, company))
	if err != nil {
		return nil, err
	}
	return &domain.RenderedPDF{
		Filename: pdf.Filename(doc.Number),
		Content:  content,
	}, nil
}

// EmailDocument queues a document email. The recipient defaults to the
// buyer's address, then the company's copy address.
func (s *Service) EmailDocument(ctx context.Context, req domain.EmailRequest) (*emailqueuedomain.EmailJob, error) {
	doc, err := s.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	company, err := s.company.Get(ctx)
	if err != nil {
		return nil, err
	}
	recipient := firstNonEmpty(req.Recipient, doc.BuyerEmail, company.EmailRecipient)
	if recipient == "" {
		return nil, domain.ErrNoRecipient
	}

	job, err := s.queue.Enqueue(ctx, s.composeEmail(doc, company, recipient))
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx, s.log).Info("document email queued",
		zap.String("document_number", doc.Number),
		zap.String("email_job_id", job.ID.String()),
	)
	return job, nil
}

func (s *Service) pdfData(doc *domain.Document, company companydomain.Company) pdf.DocumentData {
	sellerState, _ := taxdomain.StateName(company.StateCode)
	buyerState, _ := taxdomain.StateName(doc.BuyerStateCode)
	placeOfSupply := buyerState
	if placeOfSupply == "" {
		placeOfSupply = sellerState
	}

	data := pdf.DocumentData{
		Title:          domain.Title(doc.Kind),
		Number:         doc.Number,
		Date:           doc.Date.In(s.loc).Format("02-01-2006"),
		OriginalNumber: doc.OriginalNumber,
		Reason:         strings.ReplaceAll(doc.Reason, "_", " "),
		PaymentMode:    doc.PaymentMode,
		PlaceOfSupply:  placeOfSupply,
		IsInterState:   doc.IsInterState,
		Seller: pdf.Party{
			Name:      company.Name,
			Address:   company.Address(),
			GSTIN:     company.GSTIN,
			StateCode: company.StateCode,
			StateName: sellerState,
			Phone:     company.Phone,
			Email:     company.Email,
		},
		Buyer: pdf.Party{
			Name:      doc.BuyerName,
			Address:   doc.BuyerAddress,
			GSTIN:     doc.BuyerGSTIN,
			StateCode: doc.BuyerStateCode,
			StateName: buyerState,
			Email:     doc.BuyerEmail,
		},
		Bank: pdf.BankDetails{
			BankName: company.BankName,
			Account:  company.BankAccount,
			IFSC:     company.BankIFSC,
			Branch:   company.BankBranch,
			UPIID:    company.UPIID,
		},
		Subtotal:   doc.Subtotal,
		CGSTTotal:  doc.CGSTTotal,
		SGSTTotal:  doc.SGSTTotal,
		IGSTTotal:  doc.IGSTTotal,
		Discount:   doc.Discount,
		GrandTotal: doc.GrandTotal,
		Notes:      doc.Notes,
	}
	if doc.ValidUntil != nil {
		data.ValidUntil = doc.ValidUntil.In(s.loc).Format("02-01-2006")
	}
	for _, item := range doc.Items {
		data.Lines = append(data.Lines, pdf.Line{
			Name:         item.Name,
			HSNCode:      item.HSNCode,
			Quantity:     item.Quantity,
			Unit:         item.Unit,
			UnitRate:     item.UnitRate,
			GSTRate:      item.GSTRate,
			TaxableValue: item.TaxableValue,
			CGSTAmount:   item.CGSTAmount,
			SGSTAmount:   item.SGSTAmount,
			IGSTAmount:   item.IGSTAmount,
			LineTotal:    item.LineTotal,
		})
	}
	return data
}

type AttachmentParams struct {
	fx.In

	Documents domain.Service
}

type attachmentResolver struct {
	documents domain.Service
}

// NewAttachmentResolver lets the email worker render document PDFs at send time.
func NewAttachmentResolver(p AttachmentParams) emailqueuedomain.AttachmentResolver {
	return &attachmentResolver{documents: p.Documents}
}

func (r *attachmentResolver) Resolve(ctx context.Context, kind, ref string) (*emailqueuedomain.Attachment, error) {
	switch kind {
	case "":
		return nil, nil
	case emailqueuedomain.AttachmentDocumentPDF:
		rendered, err := r.documents.RenderPDF(ctx, ref)
		if err != nil {
			return nil, err
		}
		return &emailqueuedomain.Attachment{
			Filename:    rendered.Filename,
			ContentType: "application/pdf",
			Content:     rendered.Content,
		}, nil
	default:
		return nil, emailqueuedomain.ErrUnknownAttachment
	}
}
