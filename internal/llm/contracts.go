package llm

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidJSON marks model or user text that does not parse as JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrNoChoices is returned when the model answers without any choice.
	ErrNoChoices = errors.New("model returned no choices")
)

// Image is one inline picture attached to a prompt.
type Image struct {
	MIME string // e.g. image/jpeg
	Data []byte
}

// Prompt is a single user turn: one text block plus images, in order.
type Prompt struct {
	Text   string
	Images []Image
}

// Completion is the free-form answer of the model.
type Completion struct {
	Text             string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	Elapsed          time.Duration
}

// VisionModel is the interface our pipeline depends on.
type VisionModel interface {
	Complete(ctx context.Context, p Prompt) (Completion, error)
}
