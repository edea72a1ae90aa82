package webhook

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"social-relay-go/internal/models"
)

// telegramUpdate mirrors the Bot API webhook update shape
type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
	Caption   string `json:"caption"`
	From      struct {
		ID    int64 `json:"id"`
		IsBot bool  `json:"is_bot"`
	} `json:"from"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Photo []telegramPhoto `json:"photo"`
}

type telegramPhoto struct {
	FileID string `json:"file_id"`
}

// ReceiveTelegram handles a Bot API webhook update. When a secret token is
// configured, deliveries without the matching header are rejected.
func (h *Handler) ReceiveTelegram(c *gin.Context) {
	log := deliveryLogger(models.PlatformTelegram)

	if h.tgSecretToken != "" && c.GetHeader("X-Telegram-Bot-Api-Secret-Token") != h.tgSecretToken {
		log.Warn("Telegram delivery with missing or invalid secret token")
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "forbidden",
			Message: "Invalid secret token",
			Code:    http.StatusForbidden,
		})
		return
	}

	var update telegramUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		log.Warnf("Invalid webhook payload: %v", err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_payload",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	events := normalizeTelegram(h.defaultClientID, update)
	log.Infof("Received update %d, %d normalized events", update.UpdateID, len(events))

	created, duplicates, failed := h.ingest(log, events)
	log.Infof("Ingested %d events, %d duplicates suppressed, %d failed", created, duplicates, failed)

	h.respond(c, created, duplicates, failed)
}

// normalizeTelegram maps a Bot API update into normalized events. Messages
// from other bots are skipped.
func normalizeTelegram(clientID string, update telegramUpdate) []models.Event {
	msg := update.Message
	if msg == nil || msg.From.IsBot {
		return nil
	}

	receivedAt := time.Unix(msg.Date, 0).UTC()
	if msg.Date == 0 {
		receivedAt = time.Now().UTC()
	}

	chatID := fmt.Sprintf("%d", msg.Chat.ID)
	nativeID := fmt.Sprintf("%s:%d", chatID, msg.MessageID)

	ev := models.Event{
		EventID:        models.EventKey(models.PlatformTelegram, nativeID),
		ClientID:       clientID,
		Platform:       models.PlatformTelegram,
		SenderID:       fmt.Sprintf("%d", msg.From.ID),
		ConversationID: chatID,
		ReceivedAt:     receivedAt,
	}

	if len(msg.Photo) > 0 {
		// Telegram sends multiple resolutions; the last is the largest
		ev.Kind = models.KindMedia
		ev.Payload.MediaURL = msg.Photo[len(msg.Photo)-1].FileID
		ev.Payload.Text = msg.Caption
	} else {
		if msg.Text == "" {
			return nil
		}
		ev.Kind = models.KindText
		ev.Payload.Text = msg.Text
	}

	return []models.Event{ev}
}
