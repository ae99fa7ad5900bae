package entity

import (
	"fmt"
	"strings"
	"time"
)

type ProposalFormat string

const (
	ProposalFormatBrief     ProposalFormat = "brief"
	ProposalFormatDetailed  ProposalFormat = "detailed"
	ProposalFormatExecutive ProposalFormat = "executive"
	ProposalFormatFormal    ProposalFormat = "formal"
)

// ProposalFormats lists formats in the order they are advertised.
var ProposalFormats = []ProposalFormat{
	ProposalFormatBrief,
	ProposalFormatDetailed,
	ProposalFormatExecutive,
	ProposalFormatFormal,
}

// ParseProposalFormat maps caller input to a format. Empty input means detailed.
func ParseProposalFormat(raw string) (ProposalFormat, error) {
	f := ProposalFormat(strings.ToLower(strings.TrimSpace(raw)))
	if f == "" {
		return ProposalFormatDetailed, nil
	}
	for _, known := range ProposalFormats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: proposal format %q", ErrInvalidFormat, raw)
}

// ExportFormat is a file rendering of a stored draft.
type ExportFormat string

const (
	ExportMarkdown ExportFormat = "markdown"
	ExportDOCX     ExportFormat = "docx"
	ExportPDF      ExportFormat = "pdf"
)

// ParseExportFormat maps caller input to an export format. Empty input means no export.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(raw))); f {
	case "", ExportMarkdown, ExportDOCX, ExportPDF:
		return f, nil
	default:
		return "", fmt.Errorf("%w: export must be one of markdown, docx, pdf, got %q", ErrInvalidFormat, raw)
	}
}

// SectionConcern groups sections that serve the same purpose across formats.
type SectionConcern string

const (
	ConcernCover      SectionConcern = "cover"
	ConcernSummary    SectionConcern = "summary"
	ConcernBackground SectionConcern = "background"
	ConcernScope      SectionConcern = "scope"
	ConcernBudget     SectionConcern = "budget"
	ConcernTimeline   SectionConcern = "timeline"
	ConcernTeam       SectionConcern = "team"
	ConcernRisk       SectionConcern = "risk"
	ConcernOutcomes   SectionConcern = "outcomes"
	ConcernTerms      SectionConcern = "terms"
	ConcernAppendix   SectionConcern = "appendix"
)

// Section is one heading the generated proposal must contain.
type Section struct {
	Title    string         `json:"title"`
	Concern  SectionConcern `json:"concern"`
	MinWords int            `json:"min_words,omitempty"`
	Guidance string         `json:"guidance,omitempty"`
}

// DraftSource links one answer to the section it feeds.
type DraftSource struct {
	QuestionKey string `json:"question_key"`
	Question    string `json:"question"`
	Section     string `json:"section"`
	Verbatim    bool   `json:"verbatim"`
}

// ProposalDraft is an immutable, versioned proposal. A correction is a new version.
type ProposalDraft struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Version   int            `json:"version"`
	Format    ProposalFormat `json:"format"`
	Content   string         `json:"proposal"`
	Provider  string         `json:"provider,omitempty"`
	Sources   []DraftSource  `json:"sources"`
	Digest    string         `json:"digest"`
	CreatedAt time.Time      `json:"created_at"`
}
