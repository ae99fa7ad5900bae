package formatter

import (
	"bytes"
	"fmt"
	"os"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/jung-kurt/gofpdf"
)

const (
	pdfContentType   = "application/pdf"
	pdfFileExtension = ".pdf"

	// pdfFontName is the internal name used by gofpdf
	// for the UTF-8 capable font.
	pdfFontName = "DejaVuSans"

	// In the container image fonts live next to the binary.
	pdfFontRuntimePath = "ttf/DejaVuSans.ttf"
	pdfFontSourcePath  = "internal/pkg/formatter/ttf/DejaVuSans.ttf"
)

var pdfHeadingSizes = map[int]float64{1: 16, 2: 14, 3: 12}

type PDFFormatter struct {
	fontPath string
}

func NewPDFFormatter() *PDFFormatter {
	return &PDFFormatter{fontPath: resolveFontPath()}
}

// resolveFontPath looks for DejaVuSans in the runtime layout, then the source layout.
func resolveFontPath() string {
	for _, p := range []string{os.Getenv("PDF_FONT_PATH"), pdfFontRuntimePath, pdfFontSourcePath} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (mf *PDFFormatter) Format(draft *entity.ProposalDraft) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title(draft), true)
	pdf.AddPage()

	// Core fonts only cover cp1252, so text is translated when the TTF is missing.
	fontName := "Arial"
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	if mf.fontPath != "" {
		pdf.AddUTF8Font(pdfFontName, "", mf.fontPath)
		pdf.AddUTF8Font(pdfFontName, "B", mf.fontPath)
		fontName = pdfFontName
		translate = func(s string) string { return s }
	}

	pdf.SetFont(fontName, "B", 20)
	pdf.MultiCell(0, 10, translate(title(draft)), "", "", false)
	pdf.Ln(4)

	for _, b := range parseBlocks(draft.Content) {
		switch b.kind {
		case blockHeading:
			pdf.Ln(3)
			pdf.SetFont(fontName, "B", pdfHeadingSizes[b.level])
			_, h := pdf.GetFontSize()
			pdf.MultiCell(0, h*1.5, translate(b.text), "", "", false)
		case blockBullet:
			pdf.SetFont(fontName, "", 11)
			_, h := pdf.GetFontSize()
			pdf.SetX(pdf.GetX() + 5)
			pdf.MultiCell(0, h*1.5, translate("- "+b.text), "", "", false)
		default:
			pdf.SetFont(fontName, "", 11)
			_, h := pdf.GetFontSize()
			pdf.MultiCell(0, h*1.5, translate(b.text), "", "", false)
			pdf.Ln(2)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (mf *PDFFormatter) ContentType() string {
	return pdfContentType
}

func (mf *PDFFormatter) FileExtension() string {
	return pdfFileExtension
}
