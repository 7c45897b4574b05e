package vision

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIFinder implements Finder against any OpenAI-compatible chat endpoint,
// including local servers such as Ollama or vLLM via WEBREPLAY_VLM_BASE_URL.
type OpenAIFinder struct {
	client    *openai.Client
	model     string
	reachable bool
}

// NewOpenAIFinder creates the finder from environment configuration. Local
// endpoints generally accept any API key, so a missing key is only an error
// when no custom base URL is set either.
func NewOpenAIFinder(model string) (*OpenAIFinder, error) {
	apiKey := os.Getenv("WEBREPLAY_OPENAI_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	baseURL := os.Getenv("WEBREPLAY_VLM_BASE_URL")

	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("WEBREPLAY_OPENAI_KEY, OPENAI_API_KEY or WEBREPLAY_VLM_BASE_URL environment variable required")
	}
	if apiKey == "" {
		apiKey = "unused"
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	if model == "" {
		model = "gpt-4o"
	}

	return &OpenAIFinder{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// probe checks that the endpoint answers at all before the finder is selected.
func (f *OpenAIFinder) probe(ctx context.Context) bool {
	_, err := f.client.ListModels(ctx)
	f.reachable = err == nil
	return f.reachable
}

func (f *OpenAIFinder) Available() bool { return f.reachable }
func (f *OpenAIFinder) Name() string    { return "openai" }

// FindElement asks the model where the described element sits on the screenshot.
func (f *OpenAIFinder) FindElement(ctx context.Context, screenshot []byte, description string) (Match, error) {
	img, err := prepareScreenshot(screenshot)
	if err != nil {
		return Match{}, err
	}

	resp, err := f.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: f.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: findSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: img.dataURI()},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: buildFindPrompt(description),
					},
				},
			},
		},
		MaxTokens: 512,
	})
	if err != nil {
		return Match{}, fmt.Errorf("vision API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Match{}, fmt.Errorf("empty response from vision model")
	}

	m, err := parseMatchJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return Match{}, fmt.Errorf("failed to parse vision response: %w\nResponse: %s", err, resp.Choices[0].Message.Content)
	}
	return rescaleMatch(m, img), nil
}

// Describe summarizes the screenshot for the enrichment pipeline.
func (f *OpenAIFinder) Describe(ctx context.Context, screenshot []byte, prompt string) (string, error) {
	img, err := prepareScreenshot(screenshot)
	if err != nil {
		return "", err
	}

	resp, err := f.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: f.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: describeSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: img.dataURI()},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: buildDescribePrompt(prompt),
					},
				},
			},
		},
		MaxTokens: 256,
	})
	if err != nil {
		return "", fmt.Errorf("vision API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from vision model")
	}
	return resp.Choices[0].Message.Content, nil
}
