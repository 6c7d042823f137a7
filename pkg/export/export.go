package export

import (
	"errors"
	"fmt"
	"strings"

	"video-to-text/pkg/models"
)

type Format string

const (
	FormatTXT   Format = "txt"
	FormatDOCX  Format = "docx"
	FormatSRT   Format = "srt"
	FormatEmail Format = "email"
)

var (
	// ErrNotImplemented marks formats that are announced but not available yet.
	ErrNotImplemented    = errors.New("export format not available yet")
	ErrSubtitlesDisabled = errors.New("subtitles were not enabled for this transcription")
	ErrUnknownFormat     = errors.New("unknown export format")
)

// File is a downloadable export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Notice is an informational failure: the format exists but does nothing yet.
type Notice struct {
	Format  Format
	Message string
	Err     error
}

func (n *Notice) Error() string { return n.Message }
func (n *Notice) Unwrap() error { return n.Err }

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTXT, FormatDOCX, FormatSRT, FormatEmail:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Export renders result in format. Only plain text is produced; the other
// formats return a *Notice.
func Export(result models.ProcessedResult, format Format) (*File, error) {
	switch format {
	case FormatTXT:
		return &File{
			Name:        "transcription.txt",
			ContentType: "text/plain; charset=utf-8",
			Data:        []byte(result.Text),
		}, nil
	case FormatDOCX:
		return nil, &Notice{Format: format, Message: "DOCX export will be available in the full version", Err: ErrNotImplemented}
	case FormatSRT:
		if !result.Settings.Subtitles {
			return nil, ErrSubtitlesDisabled
		}
		return nil, &Notice{Format: format, Message: "SRT export will be available in the full version", Err: ErrNotImplemented}
	case FormatEmail:
		return nil, &Notice{Format: format, Message: "Sending by email will be available in the full version", Err: ErrNotImplemented}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
