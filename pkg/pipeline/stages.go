package pipeline

import (
	"video-to-text/pkg/models"
)

const (
	placeholderWordCount      = 142
	placeholderDuration       = "10:30"
	placeholderProcessingTime = "3:45"
)

const placeholderTranscript = `This is a demonstration speech recognition result for your video.

In the full application this area holds the complete text recognized from the video's audio track with Whisper AI.

The text will be accurate and formatted, optionally with timestamps for syncing against the original video.

Key capabilities:
- High recognition accuracy (up to 95%)
- Support for more than 50 languages
- Automatic punctuation
- Recognition of names and terms
- Timestamps for every fragment

The results can be used for:
1. Lecture notes
2. Interview transcripts
3. Subtitle generation
4. Video content indexing
5. Information analysis and processing

Whisper AI by OpenAI delivers top quality speech recognition even with background noise or accents.`

// Stages returns the fixed stage sequence. Only the wording of the second
// stage depends on the mode.
func Stages(mode models.Mode) []models.ProcessingStage {
	source := "Processing file..."
	if mode == models.ModeYouTube {
		source = "Downloading video from YouTube..."
	}

	return []models.ProcessingStage{
		{Progress: 0, Status: "Initializing...", DurationMs: 1000},
		{Progress: 20, Status: source, DurationMs: 2000},
		{Progress: 40, Status: "Extracting audio...", DurationMs: 2000},
		{Progress: 60, Status: "Recognizing speech...", DurationMs: 3000},
		{Progress: 80, Status: "Generating text...", DurationMs: 2000},
		{Progress: 95, Status: "Finalizing...", DurationMs: 1000},
		{Progress: 100, Status: "Done!", DurationMs: 500},
	}
}

// RemainingMinutes sums the durations of the stages after index i and
// rounds up to whole minutes.
func RemainingMinutes(stages []models.ProcessingStage, i int) int {
	var ms int64
	for _, s := range stages[i+1:] {
		ms += s.DurationMs
	}
	return int((ms + 59999) / 60000)
}

// SynthesizeResult builds the canned result attached to settings.
func SynthesizeResult(settings models.ProcessingSettings) models.ProcessedResult {
	return models.ProcessedResult{
		Text:           placeholderTranscript,
		WordCount:      placeholderWordCount,
		Duration:       placeholderDuration,
		ProcessingTime: placeholderProcessingTime,
		Settings:       settings,
	}
}
