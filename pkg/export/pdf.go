package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth   = 277.0 // A4 landscape minus margins
	headerSize  = 9.0
	rowHeight   = 7.0
	groupColumn = 0
)

// PDFRenderer lays the dataset out as a landscape table. Consecutive rows that share
// the first column value print it once and get a separator above the group.
type PDFRenderer struct{}

func (PDFRenderer) ContentType() string { return "application/pdf" }
func (PDFRenderer) Extension() string   { return "pdf" }

func (PDFRenderer) Render(data Dataset) ([]byte, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 9, data.Title, "", 1, "L", false, 0, "")
	}
	if data.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, data.Subtitle, "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	colWidth := pageWidth / float64(len(data.Headers))
	pdf.SetFont("Arial", "B", headerSize)
	pdf.SetFillColor(230, 230, 230)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", headerSize)
	previous := ""
	for i, row := range data.Rows {
		group := row[groupColumn]
		for col, value := range row {
			border := "LR"
			if i == 0 || group != previous {
				border = "LRT"
			}
			if col == groupColumn && i > 0 && group == previous {
				value = ""
			}
			pdf.CellFormat(colWidth, rowHeight, value, border, 0, "", false, 0, "")
		}
		pdf.Ln(-1)
		previous = group
	}
	pdf.CellFormat(pageWidth, 0, "", "T", 1, "", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
