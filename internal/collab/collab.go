// Package collab defines the narrow interfaces through which the pipeline
// talks to external systems: platform APIs for sending replies and fetching
// content, and the AI service for generating them. The pipeline depends only
// on these interfaces; the HTTP clients in this package are one implementation.
package collab

import (
	"context"

	"social-relay-go/internal/models"
)

// Message is one turn of conversational context handed to the assistant
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// AssistantClient generates replies and analyzes media
type AssistantClient interface {
	// GenerateReply produces a reply from ordered prior messages plus the new input
	GenerateReply(ctx context.Context, history []Message, input string) (string, error)
	// AnalyzeMedia produces a textual description of the referenced media
	AnalyzeMedia(ctx context.Context, mediaURL string) (string, error)
}

// PlatformClient sends outbound replies and fetches recent content for one platform
type PlatformClient interface {
	// SendReply delivers a direct reply into a conversation and returns the
	// platform message id
	SendReply(ctx context.Context, conversationID, text string) (string, error)
	// SendCommentReply posts a public reply to a comment
	SendCommentReply(ctx context.Context, commentID, text string) (string, error)
	// FetchRecentPosts pulls the client's recent posts
	FetchRecentPosts(ctx context.Context, clientID string) ([]models.Post, error)
	// FetchRecentStories pulls the client's recent stories
	FetchRecentStories(ctx context.Context, clientID string) ([]models.Story, error)
}
