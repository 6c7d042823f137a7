package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"video-to-text/pkg/export"
	"video-to-text/pkg/models"
	"video-to-text/pkg/pipeline"
	"video-to-text/pkg/storage"
	"video-to-text/pkg/transcribe"
)

// uploadRedirect is where clients go when a session has nothing to show.
const uploadRedirect = "/upload"

type Handlers struct {
	pipeline    *pipeline.Manager
	store       storage.HandoffStore
	transcriber transcribe.Transcriber

	mu          sync.Mutex
	controllers map[string]*transcribe.Controller
}

type errorResponse struct {
	Error    string `json:"error"`
	Details  string `json:"details,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func NewHandlers(pipeline *pipeline.Manager, store storage.HandoffStore, transcriber transcribe.Transcriber) *Handlers {
	return &Handlers{
		pipeline:    pipeline,
		store:       store,
		transcriber: transcriber,
		controllers: make(map[string]*transcribe.Controller),
	}
}

// Router registers every route on a new gorilla router.
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", h.HealthHandler).Methods("GET")
	router.HandleFunc("/sessions", h.CreateSessionHandler).Methods("POST")

	s := router.PathPrefix("/sessions/{id}").Subrouter()
	s.Use(requireSession)
	s.HandleFunc("/settings", h.PutSettingsHandler).Methods("PUT")
	s.HandleFunc("/upload", h.UploadHandler).Methods("POST")
	s.HandleFunc("/processing", h.StartProcessingHandler).Methods("POST")
	s.HandleFunc("/processing", h.GetProcessingHandler).Methods("GET")
	s.HandleFunc("/processing", h.CancelProcessingHandler).Methods("DELETE")
	s.HandleFunc("/result", h.GetResultHandler).Methods("GET")
	s.HandleFunc("/result", h.ResetResultHandler).Methods("DELETE")
	s.HandleFunc("/result/export", h.ExportHandler).Methods("GET")
	s.HandleFunc("/transcribe", h.TranscribeHandler).Methods("POST")
	s.HandleFunc("/transcribe", h.GetTranscriptionHandler).Methods("GET")

	router.Handle("/ws/sessions/{id}", requireSession(http.HandlerFunc(h.WebSocketHandler)))
	return router
}

// requireSession rejects session ids that are not UUIDs.
func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := uuid.Parse(mux.Vars(r)["id"]); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid session id"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	log.Printf("SESSION CREATED: SessionID=%s", id)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

// PutSettingsHandler is the upload step for both modes: it validates the
// settings, drops the previous result and stores the new settings.
func (h *Handlers) PutSettingsHandler(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["id"]

	var settings models.ProcessingSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid settings", Details: err.Error()})
		return
	}
	h.saveSettings(w, session, settings)
}

// UploadHandler accepts a multipart media file and stores file-mode
// settings for it. The file contents are not kept.
func (h *Handlers) UploadHandler(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["id"]

	r.Body = http.MaxBytesReader(w, r.Body, models.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to parse form", Details: err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file is required", Details: err.Error()})
		return
	}
	file.Close()

	upload := models.UploadedFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}
	if err := upload.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}

	settings := models.ProcessingSettings{
		Mode:       models.ModeFile,
		FileName:   upload.Name,
		Language:   r.FormValue("language"),
		Model:      r.FormValue("model"),
		Timestamps: formBool(r, "timestamps", true),
		Subtitles:  formBool(r, "subtitles", false),
	}
	log.Printf("UPLOAD RECEIVED: SessionID=%s, File=%s, Size=%d bytes", session, upload.Name, upload.Size)
	h.saveSettings(w, session, settings)
}

func (h *Handlers) saveSettings(w http.ResponseWriter, session string, settings models.ProcessingSettings) {
	settings = settings.Normalize()
	if err := settings.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}

	if err := h.store.ClearResult(session); err != nil {
		log.Printf("SETTINGS: failed to clear previous result for session %s: %v", session, err)
	}
	if err := h.store.PutSettings(session, settings); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to store settings"})
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func (h *Handlers) StartProcessingHandler(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["id"]

	progress, err := h.pipeline.StartRun(session)
	switch {
	case err == nil:
		log.Printf("🚀 PROCESSING STARTED: SessionID=%s, RunID=%s", session, progress.RunID)
		writeJSON(w, http.StatusAccepted, progress)
	case errors.Is(err, pipeline.ErrNoSettings):
		writeJSON(w, http.StatusPreconditionFailed, errorResponse{Error: err.Error(), Redirect: uploadRedirect})
	case errors.Is(err, pipeline.ErrRunActive):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrShuttingDown):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to start processing", Details: err.Error()})
	}
}

func (h *Handlers) GetProcessingHandler(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["id"]

	progress, ok := h.pipeline.Progress(session)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no processing run", Redirect: uploadRedirect})
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// CancelProcessingHandler always leaves the session without settings, even
// when no run was active.
func (h *Handlers) CancelProcessingHandler(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["id"]
	h.cancelRun(session)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "redirect": uploadRedirect})
}

func (h *Handlers) cancelRun(session string) {
	if err := h.pipeline.Cancel(session); err != nil && !errors.Is(err, pipeline.ErrNoActiveRun) {
		log.Printf("CANCEL FAILED: SessionID=%s, Error=%v", session, err)
	}
	if err := h.store.ClearSettings(session); err != nil {
		log.Printf("CANCEL: failed to clear settings for session %s: %v", session, err)
	}
	log.Printf("PROCESSING CANCELLED: SessionID=%s", session)
}

func (h *Handlers) GetResultHandler(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["id"]

	result, err := h.store.Result(session)
	if err != nil {
		if errors.Is(err, storage.ErrSlotEmpty) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no result", Redirect: uploadRedirect})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read result"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ResetResultHandler starts over: both slots of the session are cleared.
func (h *Handlers) ResetResultHandler(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["id"]

	errSettings := h.store.ClearSettings(session)
	errResult := h.store.ClearResult(session)
	if err := errors.Join(errSettings, errResult); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to reset session", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "redirect": uploadRedirect})
}

func (h *Handlers) ExportHandler(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["id"]

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := h.store.Result(session)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no result", Redirect: uploadRedirect})
		return
	}

	file, err := export.Export(result, format)
	var notice *export.Notice
	switch {
	case err == nil:
		w.Header().Set("Content-Type", file.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
		w.WriteHeader(http.StatusOK)
		w.Write(file.Data)
	case errors.As(err, &notice):
		writeJSON(w, http.StatusNotImplemented, map[string]string{"format": string(notice.Format), "message": notice.Message})
	case errors.Is(err, export.ErrSubtitlesDisabled):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
}

// TranscribeHandler triggers a request on the session's controller. With
// ?wait=true it answers with the final state, otherwise with 202 at once.
func (h *Handlers) TranscribeHandler(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["id"]

	var req models.TranscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request", Details: err.Error()})
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
		return
	}

	c := h.controller(session)
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		writeJSON(w, http.StatusOK, c.Transcribe(r.Context(), req.URL))
		return
	}

	seq := c.Start(context.Background(), req.URL)
	writeJSON(w, http.StatusAccepted, map[string]uint64{"seq": seq})
}

func (h *Handlers) GetTranscriptionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller(mux.Vars(r)["id"]).State())
}

func (h *Handlers) controller(session string) *transcribe.Controller {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.controllers[session]
	if !ok {
		c = transcribe.NewController(h.transcriber)
		h.controllers[session] = c
	}
	return c
}

func formBool(r *http.Request, key string, def bool) bool {
	v, err := strconv.ParseBool(r.FormValue(key))
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: failed to encode response: %v", err)
	}
}
