package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

const defaultSystemPrompt = "You are a helpful, polite and concise assistant replying to " +
	"customers of a social media business account. Keep answers short and friendly."

// OpenAIClient implements AssistantClient against the OpenAI chat completions API
type OpenAIClient struct {
	apiKey       string
	model        string
	systemPrompt string
	baseURL      string
	httpClient   *http.Client
}

// NewOpenAIClient creates an OpenAI-backed assistant client
func NewOpenAIClient(apiKey, model, systemPrompt string) *OpenAIClient {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &OpenAIClient{
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		baseURL:      defaultOpenAIBaseURL,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateReply sends the conversation history plus the new input and returns
// the assistant's text.
func (c *OpenAIClient) GenerateReply(ctx context.Context, history []Message, input string) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: c.systemPrompt})
	for _, m := range history {
		role := m.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: input})

	return c.complete(ctx, messages)
}

// AnalyzeMedia asks the model to describe the referenced image
func (c *OpenAIClient) AnalyzeMedia(ctx context.Context, mediaURL string) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: c.systemPrompt},
		{Role: "user", Content: []map[string]interface{}{
			{"type": "text", "text": "Describe the content of this image in one or two sentences."},
			{"type": "image_url", "image_url": map[string]string{"url": mediaURL}},
		}},
	}

	return c.complete(ctx, messages)
}

func (c *OpenAIClient) complete(ctx context.Context, messages []chatMessage) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("openai api key not configured")
	}

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai error %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	out := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return out, nil
}
