package service

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"unicode"

	companydomain "github.com/smallbiznis/kanakku/internal/company/domain"
	"github.com/smallbiznis/kanakku/internal/document/domain"
	emailqueuedomain "github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	"github.com/smallbiznis/kanakku/internal/providers/pdf"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

var emailTemplate = template.Must(template.New("document_email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
<h2>{{.Title}} {{.Number}}</h2>
<p>Dear {{.BuyerName}},</p>
<p>Please find attached the {{.Label}} <strong>{{.Number}}</strong> dated {{.Date}} for <strong>Rs. {{.GrandTotal}}</strong>.</p>
<table style="border-collapse: collapse;">
<tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Total</th></tr>
{{range .Lines}}<tr><td>{{.Name}}</td><td align="right">{{.Quantity}}</td><td align="right">{{.Total}}</td></tr>
{{end}}</table>
<p>Amount in words: {{.Words}}</p>
<p>Regards,<br>{{.CompanyName}}</p>
</body>
</html>
`))

type emailLine struct {
	Name     string
	Quantity string
	Total    string
}

type emailView struct {
	Title       string
	Label       string
	Number      string
	Date        string
	BuyerName   string
	GrandTotal  string
	Words       string
	CompanyName string
	Lines       []emailLine
}

// composeEmail builds the queued email for a document. The PDF is not
// rendered here; the worker resolves the attachment descriptor at send time.
func (s *Service) composeEmail(doc *domain.Document, company companydomain.Company, recipient string) emailqueuedomain.EnqueueRequest {
	label := domain.Label(doc.Kind)
	subject := fmt.Sprintf("%s %s", label, doc.Number)
	if company.Name != "" {
		subject += " from " + company.Name
	}

	view := emailView{
		Title:       domain.Title(doc.Kind),
		Label:       strings.ToLower(label),
		Number:      doc.Number,
		Date:        doc.Date.In(s.loc).Format("02-01-2006"),
		BuyerName:   doc.BuyerName,
		GrandTotal:  pdf.FormatIndian(doc.GrandTotal),
		Words:       pdf.AmountInWords(doc.GrandTotal),
		CompanyName: company.Name,
	}
	for _, item := range doc.Items {
		view.Lines = append(view.Lines, emailLine{
			Name:     item.Name,
			Quantity: pdf.FormatQuantity(item.Quantity, item.Unit),
			Total:    pdf.FormatIndian(item.LineTotal),
		})
	}

	var body bytes.Buffer
	if err := emailTemplate.Execute(&body, view); err != nil {
		s.log.Error("render document email", zap.Error(err))
	}
	htmlBody := body.String()

	return emailqueuedomain.EnqueueRequest{
		Recipient:      recipient,
		Subject:        subject,
		HTMLBody:       htmlBody,
		TextBody:       HTMLToText(htmlBody),
		AttachmentKind: emailqueuedomain.AttachmentDocumentPDF,
		AttachmentRef:  doc.ID.String(),
		Headers: map[string]any{
			"X-Document-Number": doc.Number,
		},
	}
}

// HTMLToText flattens an HTML email into its plain-text alternative.
// Block elements become line breaks and table cells are tab separated.
func HTMLToText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tidy(b.String())
		case html.TextToken:
			if skip > 0 {
				continue
			}
			b.WriteString(collapseSpace(string(z.Text())))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "style", "script", "head":
				skip++
			case "br", "p", "tr", "h1", "h2", "h3", "div", "table":
				b.WriteString("\n")
			case "td", "th":
				b.WriteString("\t")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "style", "script", "head":
				if skip > 0 {
					skip--
				}
			case "p", "h1", "h2", "h3", "div", "table":
				b.WriteString("\n")
			}
		}
	}
}

// collapseSpace folds whitespace runs into one space, keeping a space at
// either edge so adjacent inline elements stay separated.
func collapseSpace(raw string) string {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		if raw == "" {
			return ""
		}
		return " "
	}
	if unicode.IsSpace(rune(raw[0])) {
		text = " " + text
	}
	if unicode.IsSpace(rune(raw[len(raw)-1])) {
		text += " "
	}
	return text
}

func tidy(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
