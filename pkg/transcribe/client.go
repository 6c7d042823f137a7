package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"video-to-text/pkg/config"
	"video-to-text/pkg/models"
)

// Transcriber requests the transcription of the media behind a URL.
type Transcriber interface {
	Transcribe(ctx context.Context, url string) (*models.TranscriptionResult, error)
}

// Client calls POST {baseURL}/transcribe. It does not retry and does not
// validate the URL it is given.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.TranscriptionConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Transcribe performs exactly one request. Every returned error is a
// *models.TranscriptionError.
func (c *Client) Transcribe(ctx context.Context, url string) (*models.TranscriptionResult, error) {
	body, err := json.Marshal(models.TranscriptionRequest{URL: url})
	if err != nil {
		return nil, Classify(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return nil, Classify(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Printf("Transcription Client: POST %s/transcribe url=%s", c.baseURL, url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Classify(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if isJSONObject(data) {
			return nil, models.NewServiceError(resp.StatusCode, data)
		}
		return nil, Classify(fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var result models.TranscriptionResult
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, Classify(fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return &result, nil
}

// Classify normalizes any failure into a *models.TranscriptionError:
// errors that already are one pass through, errors with a message become
// transport errors, and the rest become the fixed unknown error.
func Classify(err error) *models.TranscriptionError {
	var te *models.TranscriptionError
	if errors.As(err, &te) {
		return te
	}
	if err != nil && err.Error() != "" {
		return models.NewTransportError(err)
	}
	return models.NewUnknownError()
}

func isJSONObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal(data, &obj) == nil
}
