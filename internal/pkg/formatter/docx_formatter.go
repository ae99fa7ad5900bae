package formatter

import (
	"bytes"
	"fmt"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/unidoc/unioffice/document"
)

const (
	docxContentType   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	docxFileExtension = ".docx"
)

type DOCXFormatter struct{}

func NewDOCXFormatter() *DOCXFormatter {
	return &DOCXFormatter{}
}

func (mf *DOCXFormatter) Format(draft *entity.ProposalDraft) ([]byte, error) {
	doc := document.New()
	defer doc.Close()

	titlePar := doc.AddParagraph()
	titlePar.SetStyle("Title")
	titlePar.AddRun().AddText(title(draft))

	for _, b := range parseBlocks(draft.Content) {
		par := doc.AddParagraph()
		switch b.kind {
		case blockHeading:
			par.SetStyle(fmt.Sprintf("Heading%d", b.level))
			par.AddRun().AddText(b.text)
		case blockBullet:
			par.AddRun().AddText("• " + b.text)
		default:
			par.AddRun().AddText(b.text)
		}
	}

	var buf bytes.Buffer
	if err := doc.Save(&buf); err != nil {
		return nil, fmt.Errorf("save docx: %w", err)
	}
	return buf.Bytes(), nil
}

func (mf *DOCXFormatter) ContentType() string {
	return docxContentType
}

func (mf *DOCXFormatter) FileExtension() string {
	return docxFileExtension
}
