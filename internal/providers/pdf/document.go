package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

var (
	small     = props.Text{Size: 8}
	smallBold = props.Text{Size: 8, Style: fontstyle.Bold}
	right     = props.Text{Size: 8, Align: align.Right}
	rightBold = props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}
)

func (p *PDFProvider) RenderDocument(ctx context.Context, data DocumentData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, data.Title, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New(data.Seller.Name, props.Text{Size: 11, Style: fontstyle.Bold}),
			text.New(data.Seller.Address, props.Text{Size: 8, Top: 6}),
			text.New(partyGST(data.Seller), props.Text{Size: 8, Top: 14}),
			text.New(contact(data.Seller), props.Text{Size: 8, Top: 19}),
		),
		col.New(6).Add(
			text.New(fmt.Sprintf("%s No: %s", data.Title, data.Number), props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
			text.New("Date: "+data.Date, props.Text{Size: 8, Top: 6, Align: align.Right}),
			text.New(metaLine(data), props.Text{Size: 8, Top: 11, Align: align.Right}),
			text.New("Place of supply: "+data.PlaceOfSupply, props.Text{Size: 8, Top: 16, Align: align.Right}),
		),
	)

	m.AddRow(26,
		col.New(12).Add(
			text.New("Bill to", smallBold),
			text.New(data.Buyer.Name, props.Text{Size: 9, Style: fontstyle.Bold, Top: 5}),
			text.New(data.Buyer.Address, props.Text{Size: 8, Top: 10}),
			text.New(partyGST(data.Buyer), props.Text{Size: 8, Top: 18}),
		),
	)

	taxHeader := []string{"CGST", "SGST"}
	if data.IsInterState {
		taxHeader = []string{"IGST", ""}
	}
	m.AddRow(8,
		text.NewCol(3, "Item", smallBold),
		text.NewCol(1, "HSN", smallBold),
		text.NewCol(1, "Qty", rightBold),
		text.NewCol(1, "Rate", rightBold),
		text.NewCol(1, "GST %", rightBold),
		text.NewCol(1, "Taxable", rightBold),
		text.NewCol(1, taxHeader[0], rightBold),
		text.NewCol(1, taxHeader[1], rightBold),
		text.NewCol(2, "Total", rightBold),
	)

	for _, line := range data.Lines {
		first, second := FormatIndian(line.CGSTAmount), FormatIndian(line.SGSTAmount)
		if data.IsInterState {
			first, second = FormatIndian(line.IGSTAmount), ""
		}
		m.AddRow(7,
			text.NewCol(3, line.Name, small),
			text.NewCol(1, line.HSNCode, small),
			text.NewCol(1, FormatQuantity(line.Quantity, line.Unit), right),
			text.NewCol(1, FormatIndian(line.UnitRate), right),
			text.NewCol(1, line.GSTRate.String(), right),
			text.NewCol(1, FormatIndian(line.TaxableValue), right),
			text.NewCol(1, first, right),
			text.NewCol(1, second, right),
			text.NewCol(2, FormatIndian(line.LineTotal), right),
		)
	}

	totals := [][2]string{{"Taxable value", FormatRupees(data.Subtotal)}}
	if data.IsInterState {
		totals = append(totals, [2]string{"IGST", FormatRupees(data.IGSTTotal)})
	} else {
		totals = append(totals,
			[2]string{"CGST", FormatRupees(data.CGSTTotal)},
			[2]string{"SGST", FormatRupees(data.SGSTTotal)},
		)
	}
	if data.Discount.IsPositive() {
		totals = append(totals, [2]string{"Discount", "- " + FormatRupees(data.Discount)})
	}
	for _, row := range totals {
		m.AddRow(6,
			col.New(8),
			text.NewCol(2, row[0], small),
			text.NewCol(2, row[1], right),
		)
	}
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Grand total", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, FormatRupees(data.GrandTotal), props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(8,
		text.NewCol(12, "Amount in words: "+AmountInWords(data.GrandTotal), props.Text{Size: 8, Style: fontstyle.Italic}),
	)

	if data.Bank.BankName != "" || data.Bank.UPIID != "" {
		m.AddRow(20,
			col.New(12).Add(
				text.New("Bank details", smallBold),
				text.New(fmt.Sprintf("%s  A/c %s  IFSC %s  %s", data.Bank.BankName, data.Bank.Account, data.Bank.IFSC, data.Bank.Branch), props.Text{Size: 8, Top: 5}),
				text.New("UPI: "+data.Bank.UPIID, props.Text{Size: 8, Top: 10}),
			),
		)
	}
	if data.Notes != "" {
		m.AddRow(12, text.NewCol(12, "Notes: "+data.Notes, small))
	}
	m.AddRow(16,
		col.New(8),
		col.New(4).Add(
			text.New("For "+data.Seller.Name, props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}),
			text.New("Authorised signatory", props.Text{Size: 8, Top: 10, Align: align.Right}),
		),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func partyGST(p Party) string {
	gstin := p.GSTIN
	if gstin == "" {
		gstin = "Unregistered"
	}
	if p.StateName == "" {
		return "GSTIN: " + gstin
	}
	return fmt.Sprintf("GSTIN: %s  State: %s (%s)", gstin, p.StateName, p.StateCode)
}

func contact(p Party) string {
	switch {
	case p.Phone != "" && p.Email != "":
		return p.Phone + "  " + p.Email
	case p.Phone != "":
		return p.Phone
	default:
		return p.Email
	}
}

func metaLine(data DocumentData) string {
	switch {
	case data.ValidUntil != "":
		return "Valid until: " + data.ValidUntil
	case data.OriginalNumber != "":
		return fmt.Sprintf("Against %s (%s)", data.OriginalNumber, data.Reason)
	case data.PaymentMode != "":
		return "Payment: " + data.PaymentMode
	default:
		return ""
	}
}
