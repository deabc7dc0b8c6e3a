package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	sdk "github.com/openai/openai-go"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/imaging"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// Complete implements llm.VisionModel with one chat completion whose single
// user message carries the prompt text followed by the images.
func (c *Client) Complete(ctx context.Context, p llm.Prompt) (llm.Completion, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	c.logger.Info("llm.complete.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(p.Text),
		"images", len(p.Images),
	)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Warn("llm.complete.rate_wait_aborted", "req_id", rid, "error", err)
			return llm.Completion{}, err
		}
	}

	parts := make([]sdk.ChatCompletionContentPartUnionParam, 0, 1+len(p.Images))
	parts = append(parts, sdk.TextContentPart(p.Text))
	for _, img := range p.Images {
		parts = append(parts, sdk.ImageContentPart(sdk.ChatCompletionContentPartImageImageURLParam{
			URL: imaging.DataURL(img.MIME, img.Data),
		}))
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model:       c.cfg.Model,
		Messages:    []sdk.ChatCompletionMessageParamUnion{sdk.UserMessage(parts)},
		Temperature: sdk.Float(float64(c.cfg.Temperature)),
		TopP:        sdk.Float(float64(c.cfg.TopP)),
		MaxTokens:   sdk.Int(int64(c.cfg.MaxTokens)),
	})
	if err != nil {
		c.logger.Error("llm.complete.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("llm.complete.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, llm.ErrNoChoices
	}

	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}
	out := llm.Completion{
		Text:             resp.Choices[0].Message.Content,
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Elapsed:          time.Since(start),
	}

	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"model", out.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", out.PromptTokens,
		"completion_tokens", out.CompletionTokens,
		"content_len", len(out.Text),
		"elapsed_ms", out.Elapsed.Milliseconds(),
	)
	return out, nil
}
