package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ollamaAPI is the trimmed-down HTTP client for a local Ollama server,
// folded in directly from the teacher's standalone ollama package (which
// had its own Init/Shutdown package-level singleton wrapper — dropped here
// since llm.Manager already owns the client lifecycle).
type ollamaAPI struct {
	model string
	url   string
	http  *http.Client
}

func newOllamaAPI(model, baseURL string) *ollamaAPI {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &ollamaAPI{
		model: model,
		url:   baseURL,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *ollamaAPI) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.New("could not connect to Ollama server")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama server returned %d", resp.StatusCode)
	}
	var tags struct{ Models []struct{ Name string } }
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return err
	}
	for _, m := range tags.Models {
		if m.Name == c.model {
			return nil
		}
	}
	return fmt.Errorf("model '%s' not found locally; run 'ollama pull %s'", c.model, c.model)
}

func (c *ollamaAPI) AskWithSystem(ctx context.Context, prompt, system string, handler func(string)) error {
	reqBody := map[string]interface{}{
		"model":  c.model,
		"prompt": prompt,
		"stream": true,
	}
	if system != "" {
		reqBody["system"] = system
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	streamClient := &http.Client{Timeout: 0}
	resp, err := streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama returned %d: %s", resp.StatusCode, b)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		var chunk struct {
			Response string `json:"response"`
		}
		if json.Unmarshal(line, &chunk) == nil {
			handler(chunk.Response)
		}
	}
	return nil
}

// OllamaClient implements the Client interface for Ollama.
type OllamaClient struct {
	api         *ollamaAPI
	model       string
	temperature float64
	baseURL     string
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(config Config) (*OllamaClient, error) {
	return &OllamaClient{
		api:         newOllamaAPI(config.Model, config.BaseURL),
		model:       config.Model,
		temperature: config.Temperature,
		baseURL:     config.BaseURL,
	}, nil
}

// Generate sends a request to Ollama and returns the response.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (*Response, error) {
	var promptBuilder strings.Builder
	var systemPrompt string

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			systemPrompt = msg.Content
		case "user", "assistant":
			promptBuilder.WriteString(msg.Content)
			promptBuilder.WriteString("\n")
		}
	}

	prompt := strings.TrimSpace(promptBuilder.String())

	var responseContent strings.Builder
	handler := func(text string) {
		responseContent.WriteString(text)
	}

	if err := c.api.AskWithSystem(ctx, prompt, systemPrompt, handler); err != nil {
		return nil, fmt.Errorf("ollama generation error: %w", err)
	}

	return &Response{
		Content: responseContent.String(),
		Model:   c.model,
		Metadata: map[string]any{
			"temperature": c.temperature,
		},
	}, nil
}

// GetModel returns the model name.
func (c *OllamaClient) GetModel() string { return c.model }

// GetProvider returns the provider name.
func (c *OllamaClient) GetProvider() string { return "ollama" }

// IsAvailable checks if Ollama is responding.
func (c *OllamaClient) IsAvailable(ctx context.Context) bool {
	return c.api.Ping(ctx) == nil
}
