package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Client against the Anthropic Messages API,
// used for the strong and vision tiers.
type AnthropicClient struct {
	sdk         anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewAnthropicClient creates a new Anthropic client from config.APIKey
// (falling back to the ANTHROPIC_API_KEY environment variable the SDK
// reads itself when APIKey is empty).
func NewAnthropicClient(config Config) (*AnthropicClient, error) {
	opts := []option.RequestOption{}
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	maxTokens := int64(config.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicClient{
		sdk:         anthropic.NewClient(opts...),
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Generate sends a request to Claude. req.ImageURLs, when present, are
// fetched and attached as base64 image blocks alongside the last user
// message — used by the vision-grading trust agent.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (*Response, error) {
	var system string
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))

	lastUser := -1
	for i, msg := range req.Messages {
		if msg.Role != "system" && msg.Role != "assistant" {
			lastUser = i
		}
	}

	for i, msg := range req.Messages {
		switch msg.Role {
		case "system":
			system = msg.Content
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)}
			if i == lastUser {
				// attach only once, to the last user turn
				for _, url := range req.ImageURLs {
					block, err := fetchImageBlock(ctx, url)
					if err != nil {
						return nil, fmt.Errorf("failed to fetch vision attachment %q: %w", url, err)
					}
					blocks = append(blocks, block)
				}
			}
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages:    messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic generation error: %w", err)
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Response{
		Content:    content.String(),
		Model:      string(msg.Model),
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		Metadata: map[string]any{
			"stop_reason": msg.StopReason,
		},
	}, nil
}

func fetchImageBlock(ctx context.Context, url string) (anthropic.ContentBlockParamUnion, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "image/png"
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	return anthropic.NewImageBlockBase64(mediaType, encoded), nil
}

// GetModel returns the model name.
func (c *AnthropicClient) GetModel() string { return c.model }

// GetProvider returns the provider name.
func (c *AnthropicClient) GetProvider() string { return "anthropic" }

// IsAvailable sends a minimal request to confirm the API key and model work.
func (c *AnthropicClient) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	return err == nil
}
