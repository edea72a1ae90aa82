package mediator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"social-relay-go/internal/collab"
	"social-relay-go/internal/metrics"
	"social-relay-go/internal/models"
	"social-relay-go/internal/settings"
	"social-relay-go/internal/store"
)

// fakeAssistant implements collab.AssistantClient for tests
type fakeAssistant struct {
	reply       string
	description string
	err         error
	calls       int
	lastInput   string
	lastHistory []collab.Message
}

func (f *fakeAssistant) GenerateReply(ctx context.Context, history []collab.Message, input string) (string, error) {
	f.calls++
	f.lastInput = input
	f.lastHistory = history
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeAssistant) AnalyzeMedia(ctx context.Context, mediaURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.description, nil
}

// fakePlatform implements collab.PlatformClient for tests
type fakePlatform struct {
	sent           []string
	commentReplies []string
	err            error
}

func (f *fakePlatform) SendReply(ctx context.Context, conversationID, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, text)
	return "mid-1", nil
}

func (f *fakePlatform) SendCommentReply(ctx context.Context, commentID, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.commentReplies = append(f.commentReplies, text)
	return "cid-1", nil
}

func (f *fakePlatform) FetchRecentPosts(ctx context.Context, clientID string) ([]models.Post, error) {
	return nil, nil
}

func (f *fakePlatform) FetchRecentStories(ctx context.Context, clientID string) ([]models.Story, error) {
	return nil, nil
}

type fixture struct {
	store     *store.Store
	registry  *settings.Registry
	assistant *fakeAssistant
	platform  *fakePlatform
	mediator  *Mediator
}

func newFixture(t *testing.T, assistant *fakeAssistant) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Event{},
		&models.JobRun{},
		&models.Post{},
		&models.Story{},
		&models.ClientSettings{},
	))

	st := store.New(db)
	reg := settings.NewRegistry()
	platform := &fakePlatform{}

	var assistantClient collab.AssistantClient
	if assistant != nil {
		assistantClient = assistant
	}

	med := New(st, reg, assistantClient, map[models.Platform]collab.PlatformClient{
		models.PlatformInstagram: platform,
		models.PlatformTelegram:  platform,
	}, metrics.NewMetricsWith(prometheus.NewRegistry()), Options{
		BatchSize:           10,
		MaxAttempts:         3,
		CollaboratorTimeout: time.Second,
	})

	return &fixture{store: st, registry: reg, assistant: assistant, platform: platform, mediator: med}
}

func (f *fixture) seedEvent(t *testing.T, kind models.Kind, nativeID string) *models.Event {
	t.Helper()

	ev := &models.Event{
		EventID:        models.EventKey(models.PlatformInstagram, nativeID),
		ClientID:       "client-1",
		Platform:       models.PlatformInstagram,
		Kind:           kind,
		SenderID:       "user-1",
		ConversationID: "user-1",
		ReceivedAt:     time.Now().UTC(),
	}
	switch kind {
	case models.KindText, models.KindComment:
		ev.Payload.Text = "what are your opening hours?"
	case models.KindMedia, models.KindSharedContent:
		ev.Payload.MediaURL = "https://cdn.example.com/pic.jpg"
	case models.KindReaction:
		ev.Payload.ReactionType = "love"
	}
	if kind == models.KindComment {
		ev.Payload.CommentID = "c-1"
		ev.Payload.PostID = "p-1"
	}

	created, err := f.store.InsertIfAbsent(ev)
	require.NoError(t, err)
	require.True(t, created)
	return ev
}

func (f *fixture) eventStatus(t *testing.T, id uint) *models.Event {
	t.Helper()
	ev, err := f.store.EventByID(id)
	require.NoError(t, err)
	return ev
}

func TestRoutingDeterminism(t *testing.T) {
	f := newFixture(t, &fakeAssistant{reply: "hi"})

	first, ok := f.mediator.Route(models.PlatformInstagram, models.KindText)
	require.True(t, ok)

	for i := 0; i < 5; i++ {
		again, ok := f.mediator.Route(models.PlatformInstagram, models.KindText)
		require.True(t, ok)
		assert.Same(t, first, again)
	}

	_, ok = f.mediator.Route(models.PlatformTelegram, models.KindComment)
	assert.False(t, ok, "telegram has no public comments")
}

func TestDuplicateDeliveryProcessedOnce(t *testing.T) {
	f := newFixture(t, &fakeAssistant{reply: "we open at 9am"})

	ev := f.seedEvent(t, models.KindText, "123")

	// a redelivery of the same native event must not create a second row
	dup := *ev
	dup.ID = 0
	created, err := f.store.InsertIfAbsent(&dup)
	require.NoError(t, err)
	require.False(t, created)

	require.NoError(t, f.mediator.Drain(context.Background()))

	got := f.eventStatus(t, ev.ID)
	assert.Equal(t, models.StatusProcessed, got.Status)
	assert.NotNil(t, got.ProcessedAt)
	assert.Equal(t, []string{"we open at 9am"}, f.platform.sent)
}

func TestTransientFailureRetriesThenFails(t *testing.T) {
	assistant := &fakeAssistant{err: context.DeadlineExceeded}
	f := newFixture(t, assistant)

	ev := f.seedEvent(t, models.KindText, "123")

	for attempt := 1; attempt <= 3; attempt++ {
		require.NoError(t, f.mediator.Drain(context.Background()))

		got := f.eventStatus(t, ev.ID)
		assert.Equal(t, attempt, got.AttemptCount)
		if attempt < 3 {
			assert.Equal(t, models.StatusQueued, got.Status, "attempt %d should requeue", attempt)
		} else {
			assert.Equal(t, models.StatusFailed, got.Status)
		}
	}

	// a failed event is terminal: further drains must not touch it
	require.NoError(t, f.mediator.Drain(context.Background()))
	got := f.eventStatus(t, ev.ID)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, 3, got.AttemptCount)
	assert.Equal(t, 3, assistant.calls)
	assert.Empty(t, f.platform.sent)
}

func TestReactionProcessedWithoutReply(t *testing.T) {
	f := newFixture(t, &fakeAssistant{reply: "should never be used"})

	ev := f.seedEvent(t, models.KindReaction, "r-1")

	require.NoError(t, f.mediator.Drain(context.Background()))

	got := f.eventStatus(t, ev.ID)
	assert.Equal(t, models.StatusProcessed, got.Status)
	assert.Empty(t, f.platform.sent)
	assert.Empty(t, f.platform.commentReplies)
}

func TestUnroutableEventFailsWithoutRetry(t *testing.T) {
	f := newFixture(t, &fakeAssistant{reply: "hi"})

	ev := &models.Event{
		EventID:        models.EventKey(models.PlatformTelegram, "c-9"),
		ClientID:       "client-1",
		Platform:       models.PlatformTelegram,
		Kind:           models.KindComment,
		SenderID:       "user-9",
		ConversationID: "user-9",
		ReceivedAt:     time.Now().UTC(),
	}
	ev.Payload.Text = "nice"
	ev.Payload.CommentID = "c-9"
	_, err := f.store.InsertIfAbsent(ev)
	require.NoError(t, err)

	require.NoError(t, f.mediator.Drain(context.Background()))

	got := f.eventStatus(t, ev.ID)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	assert.Contains(t, got.FailReason, "no strategy")

	// permanent failures are never requeued
	require.NoError(t, f.mediator.Drain(context.Background()))
	got = f.eventStatus(t, ev.ID)
	assert.Equal(t, 1, got.AttemptCount)
}

func TestFallbackReplyWithoutAssistant(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.store.DB().Create(&models.ClientSettings{
		ClientID:         "client-1",
		AssistantEnabled: true,
		FallbackReply:    "Thanks for reaching out, we will reply soon.",
	}).Error)
	require.NoError(t, f.registry.Reload(f.store))

	ev := f.seedEvent(t, models.KindText, "123")

	require.NoError(t, f.mediator.Drain(context.Background()))

	got := f.eventStatus(t, ev.ID)
	assert.Equal(t, models.StatusProcessed, got.Status)
	assert.Equal(t, []string{"Thanks for reaching out, we will reply soon."}, f.platform.sent)
}

func TestAssistantDisabledStaysSilent(t *testing.T) {
	assistant := &fakeAssistant{reply: "should not be called"}
	f := newFixture(t, assistant)

	require.NoError(t, f.store.DB().Create(&models.ClientSettings{
		ClientID:         "client-1",
		AssistantEnabled: false,
	}).Error)
	require.NoError(t, f.registry.Reload(f.store))

	ev := f.seedEvent(t, models.KindText, "123")

	require.NoError(t, f.mediator.Drain(context.Background()))

	got := f.eventStatus(t, ev.ID)
	assert.Equal(t, models.StatusProcessed, got.Status)
	assert.Empty(t, f.platform.sent)
	assert.Zero(t, assistant.calls)
}

func TestMediaEventFeedsDescriptionToAssistant(t *testing.T) {
	assistant := &fakeAssistant{description: "a red running shoe", reply: "That model is in stock!"}
	f := newFixture(t, assistant)

	ev := f.seedEvent(t, models.KindMedia, "m-1")

	require.NoError(t, f.mediator.Drain(context.Background()))

	got := f.eventStatus(t, ev.ID)
	assert.Equal(t, models.StatusProcessed, got.Status)
	assert.Contains(t, assistant.lastInput, "a red running shoe")
	assert.Equal(t, []string{"That model is in stock!"}, f.platform.sent)
}

func TestCommentGetsPublicReply(t *testing.T) {
	assistant := &fakeAssistant{reply: "Thank you! DM us for details."}
	f := newFixture(t, assistant)

	ev := f.seedEvent(t, models.KindComment, "comment:c-1")

	require.NoError(t, f.mediator.Drain(context.Background()))

	got := f.eventStatus(t, ev.ID)
	assert.Equal(t, models.StatusProcessed, got.Status)
	assert.Equal(t, []string{"Thank you! DM us for details."}, f.platform.commentReplies)
	assert.Empty(t, f.platform.sent)
}

func TestBatchContinuesPastFailingEvent(t *testing.T) {
	f := newFixture(t, &fakeAssistant{reply: "hello"})

	// malformed event: text kind with empty payload is a permanent failure
	bad := &models.Event{
		EventID:        models.EventKey(models.PlatformInstagram, "bad"),
		ClientID:       "client-1",
		Platform:       models.PlatformInstagram,
		Kind:           models.KindText,
		SenderID:       "user-bad",
		ConversationID: "user-bad",
		ReceivedAt:     time.Now().UTC().Add(-time.Minute),
	}
	_, err := f.store.InsertIfAbsent(bad)
	require.NoError(t, err)

	good := f.seedEvent(t, models.KindText, "good")

	require.NoError(t, f.mediator.Drain(context.Background()))

	assert.Equal(t, models.StatusFailed, f.eventStatus(t, bad.ID).Status)
	assert.Equal(t, models.StatusProcessed, f.eventStatus(t, good.ID).Status)
	assert.Equal(t, []string{"hello"}, f.platform.sent)
}

func TestAssistantSeesConversationHistory(t *testing.T) {
	assistant := &fakeAssistant{reply: "sure"}
	f := newFixture(t, assistant)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		prior := &models.Event{
			EventID:        models.EventKey(models.PlatformInstagram, fmt.Sprintf("h-%d", i)),
			ClientID:       "client-1",
			Platform:       models.PlatformInstagram,
			Kind:           models.KindText,
			SenderID:       "user-1",
			ConversationID: "user-1",
			ReceivedAt:     base.Add(time.Duration(i) * time.Minute),
			Status:         models.StatusProcessed,
		}
		prior.Payload.Text = fmt.Sprintf("earlier message %d", i)
		_, err := f.store.InsertIfAbsent(prior)
		require.NoError(t, err)
	}

	ev := f.seedEvent(t, models.KindText, "current")

	require.NoError(t, f.mediator.Drain(context.Background()))

	assert.Equal(t, models.StatusProcessed, f.eventStatus(t, ev.ID).Status)
	require.Len(t, assistant.lastHistory, 3)
	assert.Equal(t, "earlier message 0", assistant.lastHistory[0].Text)
	assert.Equal(t, "earlier message 2", assistant.lastHistory[2].Text)
}

func TestPermanentErrorClassification(t *testing.T) {
	assert.True(t, IsPermanent(Permanentf("bad payload")))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", Permanentf("bad payload"))))
	assert.False(t, IsPermanent(context.DeadlineExceeded))
	assert.False(t, IsPermanent(fmt.Errorf("plain failure")))
	assert.Nil(t, Permanent(nil))
}
