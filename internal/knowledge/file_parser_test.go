package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aihub/rag-go/internal/errors"
)

func TestTextParser_Parse(t *testing.T) {
	parser := &TextParser{}

	text, err := parser.Parse(strings.NewReader("hello\nworld"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", text)
}

func TestParserSupports(t *testing.T) {
	manager := NewFileParserManager()

	tests := []struct {
		filename  string
		supported bool
	}{
		{"report.pdf", true},
		{"report.PDF", true},
		{"contract.docx", true},
		{"notes.txt", true},
		{"readme.md", true},
		{"guide.markdown", true},
		{"archive.zip", false},
		{"legacy.doc", false},
		{"sheet.xlsx", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.supported, manager.Supports(tt.filename))
		})
	}
}

func TestFileParserManager_UnsupportedFormat(t *testing.T) {
	manager := NewFileParserManager()

	_, err := manager.ParseFile(strings.NewReader("data"), "archive.zip")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidFileFormat))
}

func TestFileParserManager_DispatchesToTextParser(t *testing.T) {
	manager := NewFileParserManager()

	text, err := manager.ParseFile(strings.NewReader("# 标题\n正文"), "doc.md")
	require.NoError(t, err)
	assert.Contains(t, text, "正文")
}
