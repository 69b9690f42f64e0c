package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DocumentLine is one priced position on a rendered document.
type DocumentLine struct {
	SKU         string
	Description string
	Quantity    int
	UnitPrice   float64
	TaxRate     float64
}

// Subtotal is the untaxed line amount.
func (l DocumentLine) Subtotal() float64 { return float64(l.Quantity) * l.UnitPrice }

// Tax is the line's tax amount before any order-level discount.
func (l DocumentLine) Tax() float64 { return l.Subtotal() * l.TaxRate / 100 }

// Quotation is a fully resolved order snapshot for the estimate document.
// All prices are the decode-time snapshots, never live catalog values.
type Quotation struct {
	Number       string
	Date         time.Time
	CustomerName string
	Address      string
	GSTNumber    string
	DiscountPct  float64
	Lines        []DocumentLine
}

// Subtotal sums the untaxed line amounts.
func (q Quotation) Subtotal() float64 {
	var total float64
	for _, l := range q.Lines {
		total += l.Subtotal()
	}
	return total
}

// DiscountAmount is the order-level discount applied to the subtotal.
func (q Quotation) DiscountAmount() float64 {
	return q.Subtotal() * q.DiscountPct / 100
}

// TaxTotal sums per-line tax, scaled down by the order-level discount so tax
// is charged on what the customer actually pays.
func (q Quotation) TaxTotal() float64 {
	var total float64
	for _, l := range q.Lines {
		total += l.Tax()
	}
	return total * (1 - q.DiscountPct/100)
}

// GrandTotal is subtotal less discount plus tax.
func (q Quotation) GrandTotal() float64 {
	return q.Subtotal() - q.DiscountAmount() + q.TaxTotal()
}

// DeliveryLine is one shipped position on a delivery note.
type DeliveryLine struct {
	SKU      string
	Name     string
	Quantity int
}

// DeliveryNote is a dispatch snapshot for the goods document. Quantities are
// the shipped quantities of that dispatch, not the order's.
type DeliveryNote struct {
	Number         string
	Date           time.Time
	OrderNumber    string
	CustomerName   string
	Address        string
	CourierName    string
	TrackingNumber string
	Lines          []DeliveryLine
}

var moneyPrinter = message.NewPrinter(language.English)

func money(v float64) string {
	return moneyPrinter.Sprintf("₹%.2f", v)
}

var docFuncs = template.FuncMap{
	"money": money,
	"date":  func(t time.Time) string { return t.Format("02 Jan 2006") },
	"inc":   func(i int) int { return i + 1 },
}

var quotationTpl = template.Must(template.New("quotation").Funcs(docFuncs).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #222; }
h1 { font-size: 18px; margin-bottom: 0; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #999; padding: 6px 8px; text-align: left; }
th { background: #f0f0f0; }
td.num, th.num { text-align: right; }
.totals td { border: none; }
.meta { margin-top: 8px; color: #555; }
</style></head><body>
<h1>Quotation {{.Number}}</h1>
<p class="meta">Date: {{date .Date}}</p>
<p><strong>{{.CustomerName}}</strong><br>{{.Address}}{{if .GSTNumber}}<br>GSTIN: {{.GSTNumber}}{{end}}</p>
<table>
<tr><th>#</th><th>SKU</th><th>Description</th><th class="num">Qty</th><th class="num">Unit Price</th><th class="num">Tax %</th><th class="num">Amount</th></tr>
{{range $i, $l := .Lines}}<tr><td>{{inc $i}}</td><td>{{$l.SKU}}</td><td>{{$l.Description}}</td><td class="num">{{$l.Quantity}}</td><td class="num">{{money $l.UnitPrice}}</td><td class="num">{{printf "%.1f" $l.TaxRate}}</td><td class="num">{{money $l.Subtotal}}</td></tr>
{{end}}</table>
<table class="totals">
<tr><td></td><td class="num">Subtotal</td><td class="num">{{money .Subtotal}}</td></tr>
{{if gt .DiscountPct 0.0}}<tr><td></td><td class="num">Discount ({{printf "%.1f" .DiscountPct}}%)</td><td class="num">-{{money .DiscountAmount}}</td></tr>{{end}}
<tr><td></td><td class="num">Tax</td><td class="num">{{money .TaxTotal}}</td></tr>
<tr><td></td><td class="num"><strong>Grand Total</strong></td><td class="num"><strong>{{money .GrandTotal}}</strong></td></tr>
</table>
</body></html>`))

var deliveryNoteTpl = template.Must(template.New("delivery-note").Funcs(docFuncs).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #222; }
h1 { font-size: 18px; margin-bottom: 0; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #999; padding: 6px 8px; text-align: left; }
th { background: #f0f0f0; }
td.num, th.num { text-align: right; }
.meta { margin-top: 8px; color: #555; }
</style></head><body>
<h1>Delivery Note {{.Number}}</h1>
<p class="meta">Date: {{date .Date}} &middot; Order {{.OrderNumber}}</p>
<p><strong>{{.CustomerName}}</strong><br>{{.Address}}</p>
{{if .CourierName}}<p class="meta">Courier: {{.CourierName}}{{if .TrackingNumber}} &middot; Tracking: {{.TrackingNumber}}{{end}}</p>{{end}}
<table>
<tr><th>#</th><th>SKU</th><th>Item</th><th class="num">Qty Shipped</th></tr>
{{range $i, $l := .Lines}}<tr><td>{{inc $i}}</td><td>{{$l.SKU}}</td><td>{{$l.Name}}</td><td class="num">{{$l.Quantity}}</td></tr>
{{end}}</table>
<p class="meta">Goods received in good condition: ____________________</p>
</body></html>`))

// Renderer turns document snapshots into PDFs through Gotenberg.
type Renderer struct {
	client *Client
}

// NewRenderer constructs a Renderer.
func NewRenderer(client *Client) *Renderer {
	return &Renderer{client: client}
}

// QuotationPDF renders the estimate document.
func (r *Renderer) QuotationPDF(ctx context.Context, q Quotation) ([]byte, error) {
	html, err := quotationHTML(q)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}

// DeliveryNotePDF renders the goods document for one dispatch.
func (r *Renderer) DeliveryNotePDF(ctx context.Context, n DeliveryNote) ([]byte, error) {
	html, err := deliveryNoteHTML(n)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}

func quotationHTML(q Quotation) (string, error) {
	var buf bytes.Buffer
	if err := quotationTpl.Execute(&buf, q); err != nil {
		return "", fmt.Errorf("report: render quotation: %w", err)
	}
	return buf.String(), nil
}

func deliveryNoteHTML(n DeliveryNote) (string, error) {
	var buf bytes.Buffer
	if err := deliveryNoteTpl.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("report: render delivery note: %w", err)
	}
	return buf.String(), nil
}
