// llm.go implements the VisionExtractor molecule that extracts page text
// with a vision-capable chat model. It uses the go-openai client and
// composes:
//   - extractor.go: TextExtractor interface
//   - logging.Logger: structured logging
package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"pdf_backend/logging"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// VisionExtractorConfig holds configuration for the vision-model extractor.
type VisionExtractorConfig struct {
	// Model is the vision-capable chat model to use.
	Model string

	// MaxTokens is the maximum tokens for each page response.
	MaxTokens int

	// Prompt is the instruction sent alongside each page image.
	Prompt string

	// Timeout bounds each per-page model call.
	Timeout time.Duration
}

// DefaultVisionExtractorConfig returns sensible default configuration.
func DefaultVisionExtractorConfig() VisionExtractorConfig {
	return VisionExtractorConfig{
		Model:     "gpt-4o-mini",
		MaxTokens: 4096,
		Prompt: "Transcribe all text visible in this scanned page. " +
			"Preserve the reading order. Respond with the transcription only; " +
			"if the page contains no text, respond with an empty message.",
		Timeout: 2 * time.Minute,
	}
}

// VisionExtractor extracts page text by sending each page image to a
// vision-capable chat model.
//
// Thread-Safety:
//   - VisionExtractor is safe for concurrent use
type VisionExtractor struct {
	client *openai.Client
	logger *logging.Logger
	config VisionExtractorConfig
}

// NewVisionExtractor creates a vision-model text extractor.
func NewVisionExtractor(client *openai.Client, logger *logging.Logger, config VisionExtractorConfig) (*VisionExtractor, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if config.Model == "" {
		config.Model = DefaultVisionExtractorConfig().Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultVisionExtractorConfig().MaxTokens
	}
	if config.Prompt == "" {
		config.Prompt = DefaultVisionExtractorConfig().Prompt
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultVisionExtractorConfig().Timeout
	}

	return &VisionExtractor{
		client: client,
		logger: logger.Named("vision"),
		config: config,
	}, nil
}

// ExtractText implements TextExtractor. Pages are processed sequentially;
// the language hint is folded into the prompt since chat models take no
// language parameter.
func (e *VisionExtractor) ExtractText(ctx context.Context, pages [][]byte, language string) (string, error) {
	if len(pages) == 0 {
		return "", ErrNoImages
	}

	prompt := e.config.Prompt
	if language != "" {
		prompt = fmt.Sprintf("%s The text is primarily in language %q.", prompt, language)
	}

	var builder strings.Builder
	for i, page := range pages {
		text, err := e.extractPage(ctx, page, prompt)
		if err != nil {
			return "", fmt.Errorf("ocr: vision model failed on page %d: %w", i+1, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			e.logger.Debug("page yielded no text", zap.Int("page", i+1))
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(text)
	}

	e.logger.Info("vision extraction complete",
		zap.Int("pages", len(pages)),
		zap.String("model", e.config.Model),
		zap.Int("text_bytes", builder.Len()))

	return builder.String(), nil
}

// extractPage sends one page image as a base64 data URI.
func (e *VisionExtractor) extractPage(ctx context.Context, page []byte, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(page)

	resp, err := e.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:     e.config.Model,
		MaxTokens: e.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
