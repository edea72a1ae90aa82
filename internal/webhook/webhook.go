// Package webhook implements the inbound ingress: the platform verification
// handshake and the delivery endpoints that normalize native payloads into
// events and persist them idempotently. No AI or outbound work happens on the
// request path; delivery handlers only insert rows and return.
package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"social-relay-go/internal/metrics"
	"social-relay-go/internal/models"
	"social-relay-go/internal/store"
)

// Handler holds the webhook ingress dependencies
type Handler struct {
	store           *store.Store
	metrics         *metrics.Metrics
	verifyToken     string
	tgSecretToken   string
	defaultClientID string
}

// NewHandler creates the webhook ingress
func NewHandler(st *store.Store, m *metrics.Metrics, verifyToken, tgSecretToken, defaultClientID string) *Handler {
	return &Handler{
		store:           st,
		metrics:         m,
		verifyToken:     verifyToken,
		tgSecretToken:   tgSecretToken,
		defaultClientID: defaultClientID,
	}
}

// SetupRoutes registers the webhook endpoints
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/webhook", h.Verify)
	router.GET("/webhook/instagram", h.Verify)
	router.POST("/webhook/instagram", h.ReceiveInstagram)
	router.POST("/webhook/telegram", h.ReceiveTelegram)
}

// Verify handles the platform verification handshake: the challenge is echoed
// back when the caller's verify token matches the configured secret.
func (h *Handler) Verify(c *gin.Context) {
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if token == "" || challenge == "" {
		logrus.Warn("Missing required parameters for webhook verification")
		c.String(http.StatusBadRequest, "Missing parameters")
		return
	}

	if token != h.verifyToken {
		logrus.Warn("Invalid verification token attempt")
		c.String(http.StatusForbidden, "Invalid verification token")
		return
	}

	logrus.Info("Successfully verified webhook")
	c.String(http.StatusOK, "%s", challenge)
}

// ingest persists the normalized events and returns created/duplicate counts
func (h *Handler) ingest(log *logrus.Entry, events []models.Event) (created, duplicates, failed int) {
	for i := range events {
		ok, err := h.store.InsertIfAbsent(&events[i])
		if err != nil {
			log.Errorf("Failed to persist event %s: %v", events[i].EventID, err)
			failed++
			continue
		}
		if ok {
			created++
			if h.metrics != nil {
				h.metrics.EventsIngested.Inc()
			}
		} else {
			// redelivery of an already seen event; suppressing it is the
			// idempotency guarantee, not an error
			duplicates++
			if h.metrics != nil {
				h.metrics.DuplicatesSuppressed.Inc()
			}
		}
	}
	return created, duplicates, failed
}

// respond acknowledges a delivery. Duplicates still acknowledge success so
// the platform stops redelivering. Any persist failure rejects the whole
// delivery so the platform retries it; the events that did persist are
// suppressed as duplicates on redelivery.
func (h *Handler) respond(c *gin.Context, created, duplicates, failed int) {
	status := http.StatusOK
	if failed > 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{
		"status":     "success",
		"processed":  created,
		"duplicates": duplicates,
		"failed":     failed,
	})
}

// deliveryLogger tags all log lines of one delivery with a trace id
func deliveryLogger(platform models.Platform) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"delivery_id": uuid.NewString(),
		"platform":    platform,
	})
}
