package models

import (
	"errors"
	"regexp"
	"time"
)

type Mode string

const (
	ModeFile    Mode = "file"
	ModeYouTube Mode = "youtube"
)

// MaxUploadSize is the largest accepted media file (500 MiB).
const MaxUploadSize = 500 << 20

var (
	ErrInvalidMode         = errors.New("mode must be \"file\" or \"youtube\"")
	ErrFileNameRequired    = errors.New("file name is required")
	ErrYouTubeURLRequired  = errors.New("youtube url is required")
	ErrInvalidYouTubeURL   = errors.New("invalid youtube url")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrUnsupportedModel    = errors.New("unsupported model")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large, maximum is 500 MB")
)

var youtubeURLPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/.+`)

var (
	Languages = []string{"auto", "ru", "en", "es", "fr", "de"}
	Models    = []string{"tiny", "base", "small", "medium", "large"}

	MediaTypes = []string{
		"video/mp4",
		"video/quicktime",
		"video/x-msvideo",
		"video/x-matroska",
		"audio/mpeg",
		"audio/wav",
		"audio/mp4",
	}
)

const (
	DefaultLanguage = "auto"
	DefaultModel    = "base"
)

// IsYouTubeURL reports whether url looks like a youtube.com or youtu.be link.
func IsYouTubeURL(url string) bool {
	return youtubeURLPattern.MatchString(url)
}

// ProcessingSettings is captured by the upload step and is read-only for
// the rest of the job.
type ProcessingSettings struct {
	Mode       Mode   `json:"mode"`
	FileName   string `json:"fileName,omitempty"`
	YouTubeURL string `json:"youtubeUrl,omitempty"`
	Language   string `json:"language"`
	Model      string `json:"model"`
	Timestamps bool   `json:"timestamps"`
	Subtitles  bool   `json:"subtitles"`
}

// Normalize fills empty language and model with their defaults.
func (s ProcessingSettings) Normalize() ProcessingSettings {
	if s.Language == "" {
		s.Language = DefaultLanguage
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	return s
}

func (s ProcessingSettings) Validate() error {
	switch s.Mode {
	case ModeFile:
		if s.FileName == "" {
			return ErrFileNameRequired
		}
	case ModeYouTube:
		if s.YouTubeURL == "" {
			return ErrYouTubeURLRequired
		}
		if !IsYouTubeURL(s.YouTubeURL) {
			return ErrInvalidYouTubeURL
		}
	default:
		return ErrInvalidMode
	}

	if !contains(Languages, s.Language) {
		return ErrUnsupportedLanguage
	}
	if !contains(Models, s.Model) {
		return ErrUnsupportedModel
	}
	return nil
}

// UploadedFile describes a media file offered in file mode.
type UploadedFile struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

func (f UploadedFile) Validate() error {
	if f.Name == "" {
		return ErrFileNameRequired
	}
	if !contains(MediaTypes, f.ContentType) {
		return ErrUnsupportedFileType
	}
	if f.Size > MaxUploadSize {
		return ErrFileTooLarge
	}
	return nil
}

// ProcessingStage is one step of the processing sequence.
type ProcessingStage struct {
	Progress   int    `json:"progress"`
	Status     string `json:"status"`
	DurationMs int64  `json:"durationMs"`
}

func (s ProcessingStage) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// ProcessedResult is written once the last stage has finished.
type ProcessedResult struct {
	Text           string             `json:"text"`
	WordCount      int                `json:"wordCount"`
	Duration       string             `json:"duration"`
	ProcessingTime string             `json:"processingTime"`
	Settings       ProcessingSettings `json:"settings"`
}

type RunState string

const (
	RunStatePending   RunState = "pending"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateCancelled RunState = "cancelled"
	RunStateFailed    RunState = "failed"
)

// Progress is a snapshot of a processing run as shown to the client.
type Progress struct {
	RunID            string   `json:"runId"`
	SessionID        string   `json:"sessionId"`
	State            RunState `json:"state"`
	Stage            int      `json:"stage"`
	Progress         int      `json:"progress"`
	Status           string   `json:"status"`
	RemainingMinutes int      `json:"remainingMinutes"`
	Error            string   `json:"error,omitempty"`
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
