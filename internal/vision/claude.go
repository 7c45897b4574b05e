package vision

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeFinder implements Finder using Anthropic's Claude vision models.
type ClaudeFinder struct {
	client *anthropic.Client
	model  string
}

// NewClaudeFinder creates a Claude-backed finder.
func NewClaudeFinder(model string) (*ClaudeFinder, error) {
	apiKey := os.Getenv("WEBREPLAY_ANTHROPIC_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("WEBREPLAY_ANTHROPIC_KEY or ANTHROPIC_API_KEY environment variable required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &ClaudeFinder{
		client: &client,
		model:  model,
	}, nil
}

func (f *ClaudeFinder) Available() bool { return true }
func (f *ClaudeFinder) Name() string    { return "claude" }

func (f *ClaudeFinder) complete(ctx context.Context, system string, img prepared, userText string, maxTokens int64) (string, error) {
	resp, err := f.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(f.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64("image/png", img.base64()),
				anthropic.NewTextBlock(userText),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Claude API error: %w", err)
	}

	// Extract text content
	var responseText string
	for _, block := range resp.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return "", fmt.Errorf("empty response from Claude")
	}
	return responseText, nil
}

// FindElement asks the model where the described element sits on the screenshot.
func (f *ClaudeFinder) FindElement(ctx context.Context, screenshot []byte, description string) (Match, error) {
	img, err := prepareScreenshot(screenshot)
	if err != nil {
		return Match{}, err
	}

	responseText, err := f.complete(ctx, findSystemPrompt, img, buildFindPrompt(description), 512)
	if err != nil {
		return Match{}, err
	}

	m, err := parseMatchJSON(responseText)
	if err != nil {
		return Match{}, fmt.Errorf("failed to parse Claude response: %w\nResponse: %s", err, responseText)
	}
	return rescaleMatch(m, img), nil
}

// Describe summarizes the screenshot for the enrichment pipeline.
func (f *ClaudeFinder) Describe(ctx context.Context, screenshot []byte, prompt string) (string, error) {
	img, err := prepareScreenshot(screenshot)
	if err != nil {
		return "", err
	}
	return f.complete(ctx, describeSystemPrompt, img, buildDescribePrompt(prompt), 256)
}
