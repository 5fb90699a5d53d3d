package vision

import (
	"context"
	"encoding/base64"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"birdwatch/internal/config"
)

// OpenAI talks to any OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
	prompt    string
}

func NewOpenAI(config *config.Config, prompt string) *OpenAI {
	clientConfig := openai.DefaultConfig(config.OpenAIAPIKey)
	if config.VisionBaseURL != "" {
		clientConfig.BaseURL = config.VisionBaseURL
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     config.VisionModel,
		maxTokens: config.MaxTokens,
		prompt:    prompt,
	}
}

func (o *OpenAI) Analyze(ctx context.Context, jpeg []byte) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
							Detail: openai.ImageURLDetailAuto,
						},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: o.prompt,
					},
				},
			},
		},
	})
	if err != nil {
		return "", serviceError("openai", err)
	}

	if len(resp.Choices) == 0 {
		return "", serviceError("openai", errors.New("no choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) Close() error {
	return nil
}
