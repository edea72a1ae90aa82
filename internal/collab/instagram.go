package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"social-relay-go/internal/models"
)

const defaultGraphBaseURL = "https://graph.instagram.com/v21.0"

// InstagramClient implements PlatformClient against the Instagram Graph API.
// The page access token is injected through an oauth2 static token source so
// every request carries the Authorization header.
type InstagramClient struct {
	pageID     string
	baseURL    string
	httpClient *http.Client
}

// NewInstagramClient creates a Graph API client for one page
func NewInstagramClient(accessToken, pageID string) *InstagramClient {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	client := oauth2.NewClient(context.Background(), src)
	client.Timeout = 30 * time.Second

	return &InstagramClient{
		pageID:     pageID,
		baseURL:    defaultGraphBaseURL,
		httpClient: client,
	}
}

// SendReply delivers a direct message to an Instagram user
func (c *InstagramClient) SendReply(ctx context.Context, conversationID, text string) (string, error) {
	payload := map[string]interface{}{
		"recipient": map[string]string{"id": conversationID},
		"message":   map[string]string{"text": text},
	}

	var out struct {
		MessageID string `json:"message_id"`
	}
	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.pageID)
	if err := c.post(ctx, endpoint, payload, &out); err != nil {
		return "", fmt.Errorf("instagram send failed: %w", err)
	}
	return out.MessageID, nil
}

// SendCommentReply posts a public reply under a comment
func (c *InstagramClient) SendCommentReply(ctx context.Context, commentID, text string) (string, error) {
	payload := map[string]interface{}{"message": text}

	var out struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/%s/replies", c.baseURL, url.PathEscape(commentID))
	if err := c.post(ctx, endpoint, payload, &out); err != nil {
		return "", fmt.Errorf("instagram comment reply failed: %w", err)
	}
	return out.ID, nil
}

type graphMedia struct {
	ID        string `json:"id"`
	Caption   string `json:"caption"`
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
	LikeCount int    `json:"like_count"`
	Timestamp string `json:"timestamp"`
}

type graphMediaList struct {
	Data []graphMedia `json:"data"`
}

// FetchRecentPosts pulls the page's recent media
func (c *InstagramClient) FetchRecentPosts(ctx context.Context, clientID string) ([]models.Post, error) {
	endpoint := fmt.Sprintf("%s/%s/media?fields=caption,media_url,media_type,id,like_count,timestamp&limit=100", c.baseURL, c.pageID)

	var list graphMediaList
	if err := c.get(ctx, endpoint, &list); err != nil {
		return nil, fmt.Errorf("instagram post fetch failed: %w", err)
	}

	posts := make([]models.Post, 0, len(list.Data))
	for _, m := range list.Data {
		posts = append(posts, models.Post{
			ClientID:  clientID,
			NativeID:  m.ID,
			Caption:   m.Caption,
			MediaURL:  m.MediaURL,
			MediaType: m.MediaType,
			LikeCount: m.LikeCount,
			PostedAt:  parseGraphTime(m.Timestamp),
		})
	}
	return posts, nil
}

// FetchRecentStories pulls the page's active stories
func (c *InstagramClient) FetchRecentStories(ctx context.Context, clientID string) ([]models.Story, error) {
	endpoint := fmt.Sprintf("%s/%s/stories?fields=media_type,caption,media_url,timestamp&limit=100", c.baseURL, c.pageID)

	var list graphMediaList
	if err := c.get(ctx, endpoint, &list); err != nil {
		return nil, fmt.Errorf("instagram story fetch failed: %w", err)
	}

	stories := make([]models.Story, 0, len(list.Data))
	for _, m := range list.Data {
		stories = append(stories, models.Story{
			ClientID:  clientID,
			NativeID:  m.ID,
			Caption:   m.Caption,
			MediaURL:  m.MediaURL,
			MediaType: m.MediaType,
			PostedAt:  parseGraphTime(m.Timestamp),
		})
	}
	return stories, nil
}

func (c *InstagramClient) post(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *InstagramClient) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *InstagramClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graph api error %d: %s", resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func parseGraphTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02T15:04:05-0700", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
