package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnknownErrorMessage is reported when a failure has no recognizable shape.
const UnknownErrorMessage = "unknown error"

type TranscriptionRequest struct {
	URL string `json:"url"`
}

// TranscriptionResult is the service response. Keys other than "text" are
// kept in Extra untouched and written back on encode.
type TranscriptionResult struct {
	Text  string                     `json:"text"`
	Extra map[string]json.RawMessage `json:"-"`
}

func (r *TranscriptionResult) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	r.Text = ""
	if raw, ok := fields["text"]; ok {
		if !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			if err := json.Unmarshal(raw, &r.Text); err != nil {
				return fmt.Errorf("decode text field: %w", err)
			}
		}
		delete(fields, "text")
	}

	r.Extra = nil
	if len(fields) > 0 {
		r.Extra = fields
	}
	return nil
}

func (r TranscriptionResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Extra)+1)
	for k, v := range r.Extra {
		out[k] = v
	}
	text, err := json.Marshal(r.Text)
	if err != nil {
		return nil, err
	}
	out["text"] = text
	return json.Marshal(out)
}

type ErrorKind string

const (
	// ErrorKindService means the service answered with a structured error body.
	ErrorKindService ErrorKind = "service"
	// ErrorKindTransport covers failures with a message but no usable payload.
	ErrorKindTransport ErrorKind = "transport"
	ErrorKindUnknown   ErrorKind = "unknown"
)

// ServiceErrorPayload is the error body the transcription service documents.
type ServiceErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TranscriptionError is the normalized form of every transcription failure.
type TranscriptionError struct {
	Kind       ErrorKind
	StatusCode int
	// Payload is the service error body, verbatim. Set for ErrorKindService only.
	Payload json.RawMessage
	Message string
	Err     error
}

func NewServiceError(status int, payload []byte) *TranscriptionError {
	return &TranscriptionError{
		Kind:       ErrorKindService,
		StatusCode: status,
		Payload:    append(json.RawMessage(nil), payload...),
	}
}

func NewTransportError(err error) *TranscriptionError {
	return &TranscriptionError{
		Kind:    ErrorKindTransport,
		Message: err.Error(),
		Err:     err,
	}
}

func NewUnknownError() *TranscriptionError {
	return &TranscriptionError{Kind: ErrorKindUnknown, Message: UnknownErrorMessage}
}

// Service decodes the payload as the documented {error, details} record.
func (e *TranscriptionError) Service() (ServiceErrorPayload, bool) {
	var p ServiceErrorPayload
	if e.Kind != ErrorKindService || len(e.Payload) == 0 {
		return p, false
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, false
	}
	return p, true
}

func (e *TranscriptionError) Error() string {
	switch e.Kind {
	case ErrorKindService:
		if p, ok := e.Service(); ok && p.Error != "" {
			if p.Details != "" {
				return p.Error + ": " + p.Details
			}
			return p.Error
		}
		return string(e.Payload)
	case ErrorKindTransport:
		return e.Message
	default:
		return UnknownErrorMessage
	}
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// MarshalJSON writes the service payload as-is and any other kind as a
// plain message string.
func (e *TranscriptionError) MarshalJSON() ([]byte, error) {
	if e.Kind == ErrorKindService && json.Valid(e.Payload) {
		return e.Payload, nil
	}
	return json.Marshal(e.Error())
}
