// Package pdf genera la representación impresa de la orden de compra que se envía al proveedor.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: ORDEN DE COMPRA + Estado │  N° Orden + Fecha       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  PROVEEDOR: Nombre + RUT/NIT + contacto                     │
//	│  CONDICIONES: Entrega / Pago / Dirección                    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: # | SKU | Descripción | Cant | P.Unit | Desc% | Sub │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Subtotal / IVA / Descuento / TOTAL                │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: QR con número y total + comprador + notas          │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	apppurchasing "github.com/jhoicas/compras-api/internal/application/purchasing"
	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

var _ apppurchasing.OrderDocumentRenderer = (*MarotoOrderRenderer)(nil)

// ── Renderer ──────────────────────────────────────────────────────────────────

// MarotoOrderRenderer implementa purchasing.OrderDocumentRenderer usando Maroto v2.
type MarotoOrderRenderer struct {
	company string
	printer *message.Printer
}

// NewMarotoOrderRenderer construye el renderer. company aparece como autor del documento.
func NewMarotoOrderRenderer(company string) *MarotoOrderRenderer {
	return &MarotoOrderRenderer{company: company, printer: message.NewPrinter(language.Spanish)}
}

// RenderOrder genera el PDF y devuelve sus bytes.
func (g *MarotoOrderRenderer) RenderOrder(ctx context.Context, doc apppurchasing.OrderDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc.Order == nil {
		return nil, fmt.Errorf("pdf: documento sin orden")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Orden de compra "+doc.Order.Number, true).
		WithAuthor(g.company, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(g.headerRow(doc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(supplierRow(doc.Supplier))
	m.AddRows(g.termsRow(doc.Order))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(g.tableLineRows(doc)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(g.totalsRow(doc.Order))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(g.footerRows(doc)...)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func (g *MarotoOrderRenderer) headerRow(doc apppurchasing.OrderDocument) core.Row {
	o := doc.Order
	return row.New(18).Add(
		col.New(7).Add(
			text.New("ORDEN DE COMPRA", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(g.company, "-"), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("Estado: "+string(o.State), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(o.Number, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Fecha: "+o.OrderDate.Format("02/01/2006"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func supplierRow(s *entity.Supplier) core.Row {
	name, taxID, contact := "-", "-", "-"
	if s != nil {
		name = s.Name
		taxID = nonEmpty(s.TaxID, "-")
		contact = fmt.Sprintf("%s   |   %s", nonEmpty(s.Email, "-"), nonEmpty(s.Phone, "-"))
	}
	return row.New(14).Add(
		col.New(12).Add(
			text.New("PROVEEDOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(name, props.Text{Style: fontstyle.Bold, Size: 10, Top: 6}),
			text.New(fmt.Sprintf("RUT/NIT: %s   |   %s", taxID, contact), props.Text{
				Size: 8, Top: 12, Color: colorGray,
			}),
		),
	)
}

func (g *MarotoOrderRenderer) termsRow(o *entity.Order) core.Row {
	delivery := "-"
	if o.EstimatedDeliveryDate != nil {
		delivery = o.EstimatedDeliveryDate.Format("02/01/2006")
	}
	return row.New(12).Add(
		col.New(12).Add(
			text.New("CONDICIONES", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Entrega estimada: %s   |   Pago: %s %s   |   Dirección: %s",
				delivery,
				nonEmpty(o.PaymentTerms, "-"),
				o.PaymentMethod,
				nonEmpty(o.DeliveryAddress, "-"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("#", 1, align.Center),
		h("SKU", 2, align.Left),
		h("Descripción", 3, align.Left),
		h("Cant.", 1, align.Center),
		h("Precio Unit.", 2, align.Right),
		h("Desc%", 1, align.Center),
		h("Subtotal", 2, align.Right),
	)
}

// tableLineRows una fila por línea, en orden de número de línea.
func (g *MarotoOrderRenderer) tableLineRows(doc apppurchasing.OrderDocument) []core.Row {
	rows := make([]core.Row, 0, len(doc.Order.Lines))
	for _, l := range doc.Order.Lines {
		cell := func(size int, s string, a align.Type) core.Col {
			return col.New(size).Add(text.New(s, props.Text{Size: 8, Align: a, Top: 1, Left: 1, Right: 1}))
		}
		rows = append(rows, row.New(7).Add(
			cell(1, strconv.Itoa(l.LineNumber), align.Center),
			cell(2, nonEmpty(doc.ProductSKUs[l.ProductID], "-"), align.Left),
			cell(3, nonEmpty(doc.ProductNames[l.ProductID], l.ProductID), align.Left),
			cell(1, g.printer.Sprintf("%d", l.Quantity), align.Center),
			cell(2, "$"+g.money(l.UnitPrice), align.Right),
			cell(1, l.DiscountPercent.StringFixed(0)+"%", align.Center),
			cell(2, "$"+g.money(l.Subtotal), align.Right),
		))
	}
	return rows
}

func (g *MarotoOrderRenderer) totalsRow(o *entity.Order) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	grand := func(s string, right float64) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: right,
		})
	}

	return row.New(30).Add(
		col.New(3),
		col.New(3).Add(
			label("Subtotal:"),
			label("IVA ("+o.TaxRate.StringFixed(0)+"%):"),
			label("Descuento:"),
			grand("TOTAL:", 2),
		),
		col.New(3).Add(
			value("$"+g.money(o.Subtotal)),
			value("$"+g.money(o.TaxAmount)),
			value("-$"+g.money(o.Discount)),
			grand("$"+g.money(o.Total), 1),
		),
		col.New(3),
	)
}

// footerRows QR con número y total para conciliar contra la factura del proveedor.
func (g *MarotoOrderRenderer) footerRows(doc apppurchasing.OrderDocument) []core.Row {
	o := doc.Order
	buyer := o.BuyerID
	if doc.Buyer != nil {
		buyer = doc.Buyer.Name
	}
	rows := []core.Row{
		row.New(40).Add(
			col.New(3).Add(code.NewQr(o.Number+"|"+o.Total.StringFixed(2), props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(9).Add(
				text.New("Emitida por: "+buyer, props.Text{Size: 8, Top: 4, Left: 3, Color: colorGray}),
				text.New("Emitida el: "+doc.IssuedAt.Format("02/01/2006 15:04"), props.Text{
					Size: 8, Top: 10, Left: 3, Color: colorGray,
				}),
				text.New("Cite el número "+o.Number+" en su factura y guía de despacho.", props.Text{
					Style: fontstyle.Bold, Size: 9, Top: 20, Left: 3, Color: colorPrimary,
				}),
			),
		),
	}
	if notes := strings.TrimSpace(o.Notes); notes != "" {
		rows = append(rows, row.New(10).Add(col.New(12).Add(
			text.New("Notas: "+notes, props.Text{Size: 7, Color: colorGray, Top: 2}),
		)))
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// money formatea con separador de miles y dos decimales según el locale.
// Ej: 2500000.5 → "2.500.000,50".
func (g *MarotoOrderRenderer) money(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return s
	}
	out := g.printer.Sprintf("%d", n) + "," + frac
	if d.IsNegative() {
		return "-" + out
	}
	return out
}
