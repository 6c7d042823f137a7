package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-to-text/pkg/models"
)

func TestExportTXT(t *testing.T) {
	f, err := Export(models.ProcessedResult{Text: "hello world"}, FormatTXT)
	require.NoError(t, err)
	assert.Equal(t, "transcription.txt", f.Name)
	assert.Equal(t, "hello world", string(f.Data))
	assert.Contains(t, f.ContentType, "text/plain")
}

func TestExportStubs(t *testing.T) {
	withSubs := models.ProcessedResult{Text: "x", Settings: models.ProcessingSettings{Subtitles: true}}

	for _, format := range []Format{FormatDOCX, FormatSRT, FormatEmail} {
		_, err := Export(withSubs, format)
		var notice *Notice
		require.ErrorAs(t, err, &notice, format)
		assert.ErrorIs(t, err, ErrNotImplemented)
		assert.Equal(t, format, notice.Format)
		assert.NotEmpty(t, notice.Message)
	}
}

func TestExportSRTWithoutSubtitles(t *testing.T) {
	_, err := Export(models.ProcessedResult{Text: "x"}, FormatSRT)
	assert.ErrorIs(t, err, ErrSubtitlesDisabled)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" TXT ")
	require.NoError(t, err)
	assert.Equal(t, FormatTXT, f)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
