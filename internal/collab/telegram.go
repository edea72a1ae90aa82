package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"social-relay-go/internal/models"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramClient implements PlatformClient against the Telegram Bot API
type TelegramClient struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
}

// NewTelegramClient creates a Bot API client
func NewTelegramClient(botToken string) *TelegramClient {
	return &TelegramClient{
		botToken:   botToken,
		baseURL:    defaultTelegramBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SendReply delivers a message into a chat
func (c *TelegramClient) SendReply(ctx context.Context, conversationID, text string) (string, error) {
	payload := map[string]interface{}{
		"chat_id": conversationID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("telegram api error %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		OK     bool `json:"ok"`
		Result struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if !parsed.OK {
		return "", fmt.Errorf("telegram api rejected the message")
	}

	return strconv.FormatInt(parsed.Result.MessageID, 10), nil
}

// SendCommentReply is not supported on Telegram; chats have no public comments
func (c *TelegramClient) SendCommentReply(ctx context.Context, commentID, text string) (string, error) {
	return "", fmt.Errorf("telegram does not support comment replies")
}

// FetchRecentPosts is a no-op; Telegram has no post feed to mirror
func (c *TelegramClient) FetchRecentPosts(ctx context.Context, clientID string) ([]models.Post, error) {
	return nil, nil
}

// FetchRecentStories is a no-op; Telegram has no story feed to mirror
func (c *TelegramClient) FetchRecentStories(ctx context.Context, clientID string) ([]models.Story, error) {
	return nil, nil
}
