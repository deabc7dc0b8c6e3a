package common

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	OCR      OCRConfig
	Document DocumentConfig
	LLM      LLMConfig
	Session  SessionConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr       string
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine       string // tesseract | gosseract
	Language     string
	TesseractBin string
	TessdataDir  string
}

// DocumentConfig holds PDF rasterization settings
type DocumentConfig struct {
	Rasterizer  string // poppler | fitz
	PdftoppmBin string
	DPI         int
	MaxPages    int
}

// LLMConfig holds vision model configuration
type LLMConfig struct {
	BaseURL        string
	Model          string
	APIKey         string
	Temperature    float32
	TopP           float32
	MaxTokens      int
	Timeout        time.Duration
	RPS            float64
	AttachOriginal bool
	MaxImageSide   int
}

// SessionConfig holds review session settings
type SessionConfig struct {
	TTL time.Duration
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string // text | json
}

// LoadDotEnv loads variables from the given .env files. Missing files are ignored
// and variables already present in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return WrapError(err, "load "+f)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	apiKey := getEnv("LLM_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("GROQ_API_KEY", "")
	}
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8501"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_MB", 20)) << 20,
			ReadTimeout:    getEnvAsDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvAsDuration("HTTP_WRITE_TIMEOUT", 5*time.Minute),
		},
		OCR: OCRConfig{
			Engine:       getEnv("OCR_ENGINE", "tesseract"),
			Language:     getEnv("OCR_LANG", "por"),
			TesseractBin: getEnv("TESSERACT_BIN", "tesseract"),
			TessdataDir:  getEnv("TESSDATA_PREFIX", ""),
		},
		Document: DocumentConfig{
			Rasterizer:  getEnv("RASTERIZER", "poppler"),
			PdftoppmBin: getEnv("PDFTOPPM_BIN", "pdftoppm"),
			DPI:         getEnvAsInt("PDF_DPI", 300),
			MaxPages:    getEnvAsInt("MAX_PAGES", 0),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:          getEnv("LLM_MODEL", "llama-3.2-90b-vision-preview"),
			APIKey:         apiKey,
			Temperature:    getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			TopP:           getEnvAsFloat32("LLM_TOP_P", 1.0),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 8000),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			RPS:            float64(getEnvAsFloat32("LLM_RPS", 1)),
			AttachOriginal: getEnvAsBool("LLM_ATTACH_ORIGINAL", false),
			MaxImageSide:   getEnvAsInt("LLM_MAX_IMAGE_SIDE", 2048),
		},
		Session: SessionConfig{
			TTL: getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// SlogLevel maps Log.Level to a slog level; unknown values mean info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate validates the loaded configuration. The API key is only checked
// when requireLLM is set, so offline commands can run without one.
func (c *Config) Validate(requireLLM bool) error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_MB must be positive", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case "tesseract", "gosseract":
	default:
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be tesseract or gosseract", ErrInvalidInput)
	}
	switch c.Document.Rasterizer {
	case "poppler", "fitz":
	default:
		return NewAppError("CONFIG_ERROR", "RASTERIZER must be poppler or fitz", ErrInvalidInput)
	}
	if c.Document.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "PDF_DPI must be positive", ErrInvalidInput)
	}
	if c.Document.MaxPages < 0 {
		return NewAppError("CONFIG_ERROR", "MAX_PAGES must not be negative", ErrInvalidInput)
	}
	if requireLLM && c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "LLM_API_KEY or GROQ_API_KEY is required", ErrInvalidInput)
	}
	if c.LLM.Model == "" {
		return NewAppError("CONFIG_ERROR", "LLM_MODEL is required", ErrInvalidInput)
	}
	if c.LLM.MaxTokens <= 0 {
		return NewAppError("CONFIG_ERROR", "LLM_MAX_TOKENS must be positive", ErrInvalidInput)
	}
	if c.Session.TTL <= 0 {
		return NewAppError("CONFIG_ERROR", "SESSION_TTL must be positive", ErrInvalidInput)
	}
	return nil
}
