package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-to-text/pkg/config"
	"video-to-text/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.TranscriptionConfig{BaseURL: srv.URL + "/"})
}

func TestClientSendsURL(t *testing.T) {
	var got models.TranscriptionRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transcribe", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"text":"hello","language":"en"}`))
	})

	result, err := client.Transcribe(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/abc", got.URL)
	assert.Equal(t, "hello", result.Text)
	assert.Contains(t, result.Extra, "language")
}

func TestClientMissingTextDefaultsToEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"duration":12.5}`))
	})

	result, err := client.Transcribe(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "", result.Text)
}

func TestClientServiceError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad url","details":"no video id"}`))
	})

	_, err := client.Transcribe(context.Background(), "x")
	var te *models.TranscriptionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.ErrorKindService, te.Kind)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.JSONEq(t, `{"error":"bad url","details":"no video id"}`, string(te.Payload))
}

func TestClientNonJSONErrorIsTransport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := client.Transcribe(context.Background(), "x")
	var te *models.TranscriptionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.ErrorKindTransport, te.Kind)
	assert.Contains(t, te.Message, "502")
	assert.Contains(t, te.Message, "upstream exploded")
}

func TestClientConnectionRefusedIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(config.TranscriptionConfig{BaseURL: srv.URL})

	_, err := client.Transcribe(context.Background(), "x")
	var te *models.TranscriptionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.ErrorKindTransport, te.Kind)
	assert.NotEmpty(t, te.Message)
}

func TestClassify(t *testing.T) {
	svc := models.NewServiceError(400, []byte(`{"error":"x"}`))
	assert.Same(t, svc, Classify(svc))

	assert.Equal(t, "network down", Classify(errors.New("network down")).Error())
	assert.Equal(t, models.ErrorKindTransport, Classify(errors.New("network down")).Kind)

	assert.Equal(t, models.ErrorKindUnknown, Classify(errors.New("")).Kind)
	assert.Equal(t, models.UnknownErrorMessage, Classify(nil).Error())
}
