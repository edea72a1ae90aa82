package models

import (
	"time"
)

// Platform identifies which messaging platform an event came from
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTelegram  Platform = "telegram"
)

// Kind classifies the content of an inbound event
type Kind string

const (
	KindText          Kind = "text"
	KindMedia         Kind = "media"
	KindSharedContent Kind = "shared_content"
	KindComment       Kind = "comment"
	KindReaction      Kind = "reaction"
)

// Status tracks an event through the processing pipeline.
// Valid transitions: QUEUED -> PROCESSING -> PROCESSED | FAILED,
// and PROCESSING -> QUEUED when a transient failure is retried.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusProcessed  Status = "PROCESSED"
	StatusFailed     Status = "FAILED"
)

// Envelope is the normalized content of an event, independent of the
// platform-native payload shape it was extracted from.
type Envelope struct {
	Text         string `json:"text" gorm:"type:text"`
	MediaURL     string `json:"media_url" gorm:"type:text"`
	ReactionType string `json:"reaction_type" gorm:"type:varchar(64)"`
	CommentID    string `json:"comment_id" gorm:"type:varchar(255)"`
	PostID       string `json:"post_id" gorm:"type:varchar(255)"`
}

// Event represents one inbound occurrence (message, comment, or reaction)
// persisted by the webhook ingress and drained by the mediator.
type Event struct {
	ID             uint     `json:"id" gorm:"primaryKey;autoIncrement"`
	EventID        string   `json:"event_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	ClientID       string   `json:"client_id" gorm:"type:varchar(128);not null;index"`
	Platform       Platform `json:"platform" gorm:"type:varchar(32);not null"`
	Kind           Kind     `json:"kind" gorm:"type:varchar(32);not null"`
	SenderID       string   `json:"sender_id" gorm:"type:varchar(255);not null"`
	ConversationID string   `json:"conversation_id" gorm:"type:varchar(255);not null;index"`
	Payload        Envelope `json:"payload" gorm:"embedded;embeddedPrefix:payload_"`
	Status         Status   `json:"status" gorm:"type:varchar(16);not null;default:'QUEUED';index"`
	AttemptCount   int      `json:"attempt_count" gorm:"not null;default:0"`
	FailReason     string   `json:"fail_reason,omitempty" gorm:"type:text"`
	ReceivedAt     time.Time  `json:"received_at" gorm:"index"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Event
func (Event) TableName() string {
	return "events"
}

// EventKey derives the stable, deduplicating identity of an event from the
// platform and the platform-native id.
func EventKey(platform Platform, nativeID string) string {
	return string(platform) + ":" + nativeID
}

// JobRun tracks last-started/last-finished time per named background job and
// guards against overlapping runs of the same job name.
type JobRun struct {
	ID             uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	JobName        string     `json:"job_name" gorm:"type:varchar(128);not null;uniqueIndex"`
	Running        bool       `json:"running" gorm:"not null;default:false"`
	LastStartedAt  *time.Time `json:"last_started_at"`
	LastFinishedAt *time.Time `json:"last_finished_at"`
	LastStatus     string     `json:"last_status" gorm:"type:varchar(50)"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for JobRun
func (JobRun) TableName() string {
	return "job_runs"
}

// Post is a locally mirrored platform post, synced periodically so the
// mediator can reference recent content when building replies.
type Post struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ClientID  string    `json:"client_id" gorm:"type:varchar(128);not null;uniqueIndex:idx_posts_client_native"`
	NativeID  string    `json:"native_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_posts_client_native"`
	Caption   string    `json:"caption" gorm:"type:text"`
	MediaURL  string    `json:"media_url" gorm:"type:text"`
	MediaType string    `json:"media_type" gorm:"type:varchar(64)"`
	LikeCount int       `json:"like_count"`
	PostedAt  time.Time `json:"posted_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// Story is a locally mirrored platform story.
type Story struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ClientID  string    `json:"client_id" gorm:"type:varchar(128);not null;uniqueIndex:idx_stories_client_native"`
	NativeID  string    `json:"native_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_stories_client_native"`
	Caption   string    `json:"caption" gorm:"type:text"`
	MediaURL  string    `json:"media_url" gorm:"type:text"`
	MediaType string    `json:"media_type" gorm:"type:varchar(64)"`
	PostedAt  time.Time `json:"posted_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Story
func (Story) TableName() string {
	return "stories"
}

// ClientSettings holds per-tenant configuration persisted in the database and
// loaded into an in-memory snapshot at startup and on manual reload.
type ClientSettings struct {
	ID               uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ClientID         string    `json:"client_id" gorm:"type:varchar(128);not null;uniqueIndex"`
	AssistantEnabled bool      `json:"assistant_enabled" gorm:"not null;default:true"`
	FallbackReply    string    `json:"fallback_reply" gorm:"type:text"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName specifies the table name for ClientSettings
func (ClientSettings) TableName() string {
	return "client_settings"
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Details   map[string]string `json:"details,omitempty"`
}
