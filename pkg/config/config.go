package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server        ServerConfig
	Transcription TranscriptionConfig
	Pipeline      PipelineConfig
	Storage       StorageConfig
}

type ServerConfig struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// TranscriptionConfig holds the single source of truth for the
// transcription service address.
type TranscriptionConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PipelineConfig struct {
	Workers   int
	QueueSize int
	// TimeScale multiplies every stage wait. 1 replays the stages in real time.
	TimeScale float64
}

type StorageConfig struct {
	Backend string // "memory" or "badger"
	Path    string
	TTL     time.Duration
}

const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Transcription: TranscriptionConfig{
			BaseURL: "http://localhost:3001",
		},
		Pipeline: PipelineConfig{
			Workers:   4,
			QueueSize: 100,
			TimeScale: 1,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Path:    "./data",
		},
	}
}

// Load reads an optional .env file and applies environment overrides on
// top of Default.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Config: no .env file found, falling back to environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv applies overrides looked up through getenv. Malformed values are
// logged and ignored.
func FromEnv(getenv func(string) string) *Config {
	cfg := Default()

	str(getenv, "SERVER_ADDRESS", &cfg.Server.Address)
	dur(getenv, "SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	dur(getenv, "SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	dur(getenv, "SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	str(getenv, "TRANSCRIBE_BASE_URL", &cfg.Transcription.BaseURL)
	dur(getenv, "TRANSCRIBE_TIMEOUT", &cfg.Transcription.Timeout)

	num(getenv, "PIPELINE_WORKERS", &cfg.Pipeline.Workers)
	num(getenv, "PIPELINE_QUEUE_SIZE", &cfg.Pipeline.QueueSize)
	if v := getenv("PIPELINE_TIME_SCALE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			log.Printf("Config: ignoring PIPELINE_TIME_SCALE=%q", v)
		} else {
			cfg.Pipeline.TimeScale = f
		}
	}

	str(getenv, "STORAGE_BACKEND", &cfg.Storage.Backend)
	str(getenv, "STORAGE_PATH", &cfg.Storage.Path)
	dur(getenv, "STORAGE_TTL", &cfg.Storage.TTL)

	return cfg
}

func str(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func dur(getenv func(string) string, key string, dst *time.Duration) {
	v := getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Config: ignoring %s=%q: %v", key, v, err)
		return
	}
	*dst = d
}

func num(getenv func(string) string, key string, dst *int) {
	v := getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Config: ignoring %s=%q", key, v)
		return
	}
	*dst = n
}
