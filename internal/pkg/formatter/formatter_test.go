package formatter

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDraft() *entity.ProposalDraft {
	return &entity.ProposalDraft{
		SessionID: "s1",
		Version:   2,
		Format:    entity.ProposalFormatBrief,
		Content:   "## Executive Summary\nWe will **ship** it.\n\n## Budget\n- Design: $10,000\n- Build: $40,000\n",
	}
}

func TestParseBlocks(t *testing.T) {
	blocks := parseBlocks(sampleDraft().Content)
	require.Len(t, blocks, 5)
	assert.Equal(t, block{kind: blockHeading, level: 2, text: "Executive Summary"}, blocks[0])
	assert.Equal(t, block{kind: blockParagraph, text: "We will ship it."}, blocks[1])
	assert.Equal(t, block{kind: blockBullet, text: "Design: $10,000"}, blocks[3])
}

func TestFactory(t *testing.T) {
	f := NewFactory()
	for _, format := range []entity.ExportFormat{entity.ExportMarkdown, entity.ExportDOCX, entity.ExportPDF} {
		fmtr, err := f.Create(format)
		require.NoError(t, err)
		assert.NotEmpty(t, fmtr.ContentType())
	}
	_, err := f.Create("odt")
	assert.ErrorIs(t, err, entity.ErrInvalidFormat)
}

func TestMarkdownFormatter(t *testing.T) {
	out, err := NewMarkdownFormatter().Format(sampleDraft())
	require.NoError(t, err)
	assert.Contains(t, string(out), "# Project Proposal (brief, v2)")
	assert.Contains(t, string(out), "## Budget")
	assert.Equal(t, "proposal-s1-v2.md", FileName(sampleDraft(), NewMarkdownFormatter()))
}

func TestPDFFormatter(t *testing.T) {
	out, err := NewPDFFormatter().Format(sampleDraft())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestDOCXFormatter(t *testing.T) {
	out, err := NewDOCXFormatter().Format(sampleDraft())
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "word/document.xml")
}
