package formatter

import (
	"fmt"
	"strings"

	"github.com/futig/proposal-backend/internal/entity"
)

const baseTitle = "Project Proposal"

type Formatter interface {
	Format(draft *entity.ProposalDraft) ([]byte, error)
	ContentType() string
	FileExtension() string
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(format entity.ExportFormat) (Formatter, error) {
	switch format {
	case entity.ExportMarkdown:
		return NewMarkdownFormatter(), nil
	case entity.ExportDOCX:
		return NewDOCXFormatter(), nil
	case entity.ExportPDF:
		return NewPDFFormatter(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", entity.ErrInvalidFormat, format)
	}
}

// FileName is the attachment name of an exported draft.
func FileName(draft *entity.ProposalDraft, f Formatter) string {
	return fmt.Sprintf("proposal-%s-v%d%s", draft.SessionID, draft.Version, f.FileExtension())
}

func title(draft *entity.ProposalDraft) string {
	if draft.Format == "" {
		return baseTitle
	}
	return fmt.Sprintf("%s (%s, v%d)", baseTitle, draft.Format, draft.Version)
}

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockBullet
)

type block struct {
	kind  blockKind
	level int
	text  string
}

// parseBlocks splits generated Markdown into headings, bullets and paragraphs.
// Inline markup is stripped; the binary formats have no use for it.
func parseBlocks(content string) []block {
	var (
		out  []block
		para []string
	)
	flush := func() {
		if len(para) > 0 {
			out = append(out, block{kind: blockParagraph, text: strings.Join(para, " ")})
			para = nil
		}
	}

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "#"):
			flush()
			level := len(line) - len(strings.TrimLeft(line, "#"))
			out = append(out, block{kind: blockHeading, level: min(level, 3), text: stripInline(strings.TrimSpace(line[level:]))})
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			flush()
			out = append(out, block{kind: blockBullet, text: stripInline(line[2:])})
		default:
			para = append(para, stripInline(line))
		}
	}
	flush()
	return out
}

func stripInline(s string) string {
	return strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
}
