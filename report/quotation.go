package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/quotedesk/quotedesk/internal/clients"
	"github.com/quotedesk/quotedesk/internal/quotations"
	"github.com/quotedesk/quotedesk/web"
)

// PDFClient exposes the subset of the Gotenberg client used by the renderer.
type PDFClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// QuotationRenderer turns a quotation into a PDF via html/template and
// Gotenberg.
type QuotationRenderer struct {
	tpl    *template.Template
	client PDFClient
}

type quotationDocument struct {
	Quotation *quotations.Quotation
	Client    *clients.Client
}

// NewQuotationRenderer parses the quotation template. Amounts are formatted
// for tag, e.g. language.English.
func NewQuotationRenderer(client PDFClient, tag language.Tag) (*QuotationRenderer, error) {
	if client == nil {
		return nil, fmt.Errorf("quotation renderer: pdf client required")
	}
	printer := message.NewPrinter(tag)
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"money": func(v any) string {
			return formatMoney(printer, v)
		},
		"percent": func(d decimal.Decimal) string {
			return printer.Sprint(number.Decimal(d.InexactFloat64(), number.MaxFractionDigits(2))) + "%"
		},
	}
	tpl, err := template.New("quotation.html").Funcs(funcMap).ParseFS(web.Templates, web.QuotationTemplate)
	if err != nil {
		return nil, err
	}
	return &QuotationRenderer{tpl: tpl, client: client}, nil
}

// RenderHTML executes the template only.
func (r *QuotationRenderer) RenderHTML(q *quotations.Quotation, client *clients.Client) (string, error) {
	if client == nil {
		client = &clients.Client{}
	}
	buf := &bytes.Buffer{}
	if err := r.tpl.Execute(buf, quotationDocument{Quotation: q, Client: client}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render executes the template and converts the HTML to PDF bytes.
func (r *QuotationRenderer) Render(ctx context.Context, q *quotations.Quotation, client *clients.Client) ([]byte, error) {
	if r == nil || r.tpl == nil || r.client == nil {
		return nil, fmt.Errorf("quotation renderer not initialised")
	}
	html, err := r.RenderHTML(q, client)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}

func formatMoney(p *message.Printer, v any) string {
	var d decimal.Decimal
	switch val := v.(type) {
	case decimal.Decimal:
		d = val
	case *decimal.Decimal:
		if val == nil {
			return ""
		}
		d = *val
	default:
		return fmt.Sprint(v)
	}
	return p.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
}
