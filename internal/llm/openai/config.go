package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// Config for the OpenAI-compatible vision client.
type Config struct {
	APIKey      string        // if empty, falls back to env GROQ_API_KEY
	BaseURL     string        // default https://api.groq.com/openai/v1
	Model       string        // default llama-3.2-90b-vision-preview
	Temperature float32       // 0 keeps answers deterministic
	TopP        float32       // default 1
	MaxTokens   int           // default 8000
	Timeout     time.Duration // per request
	RPS         float64       // outbound call rate; <= 0 disables the limiter
}

type Client struct {
	cfg     Config
	sdk     sdk.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger, opts ...option.RequestOption) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.2-90b-vision-preview"
	}
	if cfg.TopP <= 0 {
		cfg.TopP = 1
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}

	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0), // failures surface to the user as is
	}

	return &Client{
		cfg:     cfg,
		sdk:     sdk.NewClient(append(base, opts...)...),
		limiter: limiter,
		logger:  logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }
