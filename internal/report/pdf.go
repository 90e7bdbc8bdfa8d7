// Package report turns aggregated order data into downloadable documents:
// a paginated PDF for printing and a JSON dump for machine use.
package report

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageMarginMM    = 15
	footerMarginMM  = 20
	attributionLine = "CliniRepas — Service de restauration hospitalière"
	noDataLabel     = "Aucune donnée disponible"
)

// Column describes one table column of a section.
type Column struct {
	Header string
	Width  float64 // mm; 0 splits the remaining width evenly
}

// Section is one titled table in the document.
type Section struct {
	Title   string
	Columns []Column
	Rows    [][]string
}

// SummaryRow is a label/value pair shown under the document header.
type SummaryRow struct {
	Label string
	Value string
}

// Renderer produces branded PDF documents. The zero LogoURL skips the logo
// fetch and draws the placeholder mark directly.
type Renderer struct {
	LogoURL string

	client *http.Client
}

func NewRenderer(logoURL string) *Renderer {
	return &Renderer{
		LogoURL: logoURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// RenderPDF lays out the document: branded header on page one, the summary
// rows, then each section as a striped table with automatic page breaks and
// a footer (page number + attribution) on every page. A section with no rows
// gets an explicit placeholder row so it is never silently missing.
func (r *Renderer) RenderPDF(title string, generatedAt time.Time, summary []SummaryRow, sections []Section) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(pageMarginMM, pageMarginMM, pageMarginMM)
	pdf.SetAutoPageBreak(true, footerMarginMM)
	pdf.AliasNbPages("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, tr(attributionLine), "", 1, "C", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	r.drawHeader(pdf, tr, title, generatedAt)

	if len(summary) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(40, 40, 40)
		for _, row := range summary {
			pdf.CellFormat(60, 6, tr(row.Label), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(0, 6, tr(row.Value), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
		}
	}

	for _, section := range sections {
		drawSection(pdf, tr, section)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// drawHeader renders the logo (or its placeholder), the title, and the
// generation timestamp.
func (r *Renderer) drawHeader(pdf *gofpdf.Fpdf, tr func(string) string, title string, generatedAt time.Time) {
	const logoSize = 18

	if !r.placeLogo(pdf) {
		// Vector placeholder: the document must never fail because the
		// branding asset is unreachable.
		cx := pageMarginMM + logoSize/2.0
		cy := pageMarginMM + logoSize/2.0
		pdf.SetDrawColor(0, 102, 102)
		pdf.SetLineWidth(0.8)
		pdf.Circle(cx, cy, logoSize/2.0, "D")
		pdf.Line(cx, cy-logoSize/3.0, cx, cy+logoSize/3.0)
		pdf.Line(cx-logoSize/3.0, cy, cx+logoSize/3.0, cy)
	}

	pdf.SetXY(pageMarginMM+logoSize+5, pageMarginMM)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(0, 80, 80)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")

	pdf.SetX(pageMarginMM + logoSize + 5)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 5, tr("Généré le "+generatedAt.Format("02/01/2006 à 15:04")), "", 1, "L", false, 0, "")

	pdf.SetY(pageMarginMM + logoSize + 4)
	pdf.SetDrawColor(0, 102, 102)
	pdf.SetLineWidth(0.4)
	pdf.Line(pageMarginMM, pdf.GetY(), 210-pageMarginMM, pdf.GetY())
}

// placeLogo fetches and embeds the branding image. It reports false on any
// failure so the caller can draw the fallback mark instead.
func (r *Renderer) placeLogo(pdf *gofpdf.Fpdf) bool {
	if r.LogoURL == "" {
		return false
	}
	resp, err := r.client.Get(r.LogoURL)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return false
	}

	imageType := "PNG"
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "jpeg") {
		imageType = "JPG"
	}
	opts := gofpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(data))
	if pdf.Err() {
		// Undecodable image: clear the error and fall back.
		pdf.ClearError()
		return false
	}
	pdf.ImageOptions("logo", pageMarginMM, pageMarginMM, 18, 18, false, opts, 0, "")
	return !pdf.Err()
}

func drawSection(pdf *gofpdf.Fpdf, tr func(string) string, section Section) {
	usable := 210.0 - 2*pageMarginMM

	widths := make([]float64, len(section.Columns))
	remaining := usable
	flexible := 0
	for i, col := range section.Columns {
		widths[i] = col.Width
		if col.Width == 0 {
			flexible++
		} else {
			remaining -= col.Width
		}
	}
	if flexible > 0 {
		for i := range widths {
			if widths[i] == 0 {
				widths[i] = remaining / float64(flexible)
			}
		}
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 80, 80)
	pdf.CellFormat(0, 7, tr(section.Title), "", 1, "L", false, 0, "")

	// Column headers, repeated nowhere: a page break mid-table keeps rows
	// flowing under the footer/header machinery of gofpdf.
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(0, 102, 102)
	pdf.SetTextColor(255, 255, 255)
	for i, col := range section.Columns {
		pdf.CellFormat(widths[i], 7, tr(col.Header), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(40, 40, 40)

	if len(section.Rows) == 0 {
		pdf.SetFillColor(245, 245, 245)
		pdf.CellFormat(usable, 7, tr(noDataLabel), "1", 1, "C", true, 0, "")
		return
	}

	for rowIdx, row := range section.Rows {
		fill := rowIdx%2 == 1
		pdf.SetFillColor(235, 242, 242)
		for i := range section.Columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(widths[i], 7, tr(cell), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}
}
