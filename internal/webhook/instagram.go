package webhook

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"social-relay-go/internal/models"
)

// instagramPayload mirrors the Graph API webhook delivery shape: entries
// carrying messaging events (DMs, reactions) and changes (comments).
type instagramPayload struct {
	Object string           `json:"object"`
	Entry  []instagramEntry `json:"entry"`
}

type instagramEntry struct {
	ID        string               `json:"id"`
	Time      int64                `json:"time"`
	Messaging []instagramMessaging `json:"messaging"`
	Changes   []instagramChange    `json:"changes"`
}

type instagramMessaging struct {
	Sender    instagramActor     `json:"sender"`
	Recipient instagramActor     `json:"recipient"`
	Timestamp int64              `json:"timestamp"`
	Message   *instagramMessage  `json:"message"`
	Reaction  *instagramReaction `json:"reaction"`
}

type instagramActor struct {
	ID string `json:"id"`
}

type instagramMessage struct {
	MID         string                `json:"mid"`
	Text        string                `json:"text"`
	IsEcho      bool                  `json:"is_echo"`
	Attachments []instagramAttachment `json:"attachments"`
}

type instagramAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

type instagramReaction struct {
	MID      string `json:"mid"`
	Action   string `json:"action"`
	Reaction string `json:"reaction"`
}

type instagramChange struct {
	Field string `json:"field"`
	Value struct {
		ID   string `json:"id"`
		Text string `json:"text"`
		From struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"from"`
		Media struct {
			ID string `json:"id"`
		} `json:"media"`
	} `json:"value"`
}

// ReceiveInstagram handles a Graph API webhook delivery
func (h *Handler) ReceiveInstagram(c *gin.Context) {
	log := deliveryLogger(models.PlatformInstagram)

	var payload instagramPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Warnf("Invalid webhook payload: %v", err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_payload",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	events := normalizeInstagram(payload)
	log.Infof("Received delivery with %d entries, %d normalized events", len(payload.Entry), len(events))

	created, duplicates, failed := h.ingest(log, events)
	log.Infof("Ingested %d events, %d duplicates suppressed, %d failed", created, duplicates, failed)

	h.respond(c, created, duplicates, failed)
}

// normalizeInstagram maps native messaging events and comment changes into
// normalized events. Echo messages from the page itself are skipped.
func normalizeInstagram(payload instagramPayload) []models.Event {
	var events []models.Event

	for _, entry := range payload.Entry {
		clientID := entry.ID

		for _, msg := range entry.Messaging {
			if ev, ok := normalizeMessaging(clientID, msg); ok {
				events = append(events, ev)
			}
		}

		for _, change := range entry.Changes {
			if ev, ok := normalizeCommentChange(clientID, entry.Time, change); ok {
				events = append(events, ev)
			}
		}
	}

	return events
}

func normalizeMessaging(clientID string, msg instagramMessaging) (models.Event, bool) {
	receivedAt := time.UnixMilli(msg.Timestamp).UTC()
	if msg.Timestamp == 0 {
		receivedAt = time.Now().UTC()
	}

	base := models.Event{
		ClientID:       clientID,
		Platform:       models.PlatformInstagram,
		SenderID:       msg.Sender.ID,
		ConversationID: msg.Sender.ID,
		ReceivedAt:     receivedAt,
	}

	switch {
	case msg.Message != nil:
		if msg.Message.IsEcho {
			// the page's own outbound messages come back as echoes
			return models.Event{}, false
		}
		base.EventID = models.EventKey(models.PlatformInstagram, msg.Message.MID)
		base.Payload.Text = msg.Message.Text

		if len(msg.Message.Attachments) > 0 {
			att := msg.Message.Attachments[0]
			base.Payload.MediaURL = att.Payload.URL
			switch att.Type {
			case "share", "story_mention", "story":
				base.Kind = models.KindSharedContent
			default:
				base.Kind = models.KindMedia
			}
		} else {
			base.Kind = models.KindText
		}
		return base, base.EventID != ""

	case msg.Reaction != nil:
		// key reactions by the reacted-to message plus the action, so an
		// unreact does not collide with the original react
		base.EventID = models.EventKey(models.PlatformInstagram, msg.Reaction.MID+":"+msg.Reaction.Action)
		base.Kind = models.KindReaction
		base.Payload.ReactionType = msg.Reaction.Reaction
		return base, msg.Reaction.MID != ""

	default:
		return models.Event{}, false
	}
}

func normalizeCommentChange(clientID string, entryTime int64, change instagramChange) (models.Event, bool) {
	if change.Field != "comments" || change.Value.ID == "" {
		return models.Event{}, false
	}

	receivedAt := time.Unix(entryTime, 0).UTC()
	if entryTime == 0 {
		receivedAt = time.Now().UTC()
	}

	ev := models.Event{
		EventID:        models.EventKey(models.PlatformInstagram, "comment:"+change.Value.ID),
		ClientID:       clientID,
		Platform:       models.PlatformInstagram,
		Kind:           models.KindComment,
		SenderID:       change.Value.From.ID,
		ConversationID: change.Value.Media.ID,
		ReceivedAt:     receivedAt,
	}
	ev.Payload.Text = change.Value.Text
	ev.Payload.CommentID = change.Value.ID
	ev.Payload.PostID = change.Value.Media.ID

	return ev, true
}
