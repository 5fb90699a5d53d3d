package vision

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"birdwatch/internal/config"
)

// Ollama talks to a local Ollama server. Images travel as raw bytes.
type Ollama struct {
	client    *api.Client
	model     string
	maxTokens int
	prompt    string
}

// NewOllama uses VISION_BASE_URL when set, OLLAMA_HOST otherwise.
func NewOllama(config *config.Config, prompt string) (*Ollama, error) {
	var client *api.Client
	if config.VisionBaseURL != "" {
		parsed, err := url.Parse(config.VisionBaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid VISION_BASE_URL: %w", err)
		}
		client = api.NewClient(&url.URL{Scheme: parsed.Scheme, Host: parsed.Host}, http.DefaultClient)
	} else {
		var err error
		if client, err = api.ClientFromEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}

	return &Ollama{
		client:    client,
		model:     config.VisionModel,
		maxTokens: config.MaxTokens,
		prompt:    prompt,
	}, nil
}

func (o *Ollama) Analyze(ctx context.Context, jpeg []byte) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: o.prompt,
				Images:  []api.ImageData{api.ImageData(jpeg)},
			},
		},
		Stream:  &stream,
		Options: map[string]any{"num_predict": o.maxTokens},
	}

	var sb strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", serviceError("ollama", err)
	}
	return sb.String(), nil
}

func (o *Ollama) Close() error {
	return nil
}
