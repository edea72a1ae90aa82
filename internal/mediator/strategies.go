package mediator

import (
	"context"

	"github.com/sirupsen/logrus"

	"social-relay-go/internal/collab"
	"social-relay-go/internal/models"
)

const (
	conversationWindow = 20
	commentWindow      = 5
)

// assistantStrategy answers direct text messages: it builds conversational
// context from recent events of the same conversation, generates a reply
// through the AI collaborator (or the client's fixed fallback when no
// assistant is configured), and sends it back on the originating platform.
type assistantStrategy struct {
	med *Mediator
}

func (s *assistantStrategy) Name() string { return "assistant" }

func (s *assistantStrategy) Handle(ctx context.Context, ev models.Event) error {
	if ev.Payload.Text == "" {
		return Permanentf("text event %s has empty payload", ev.EventID)
	}
	return s.reply(ctx, ev, ev.Payload.Text)
}

// reply generates and sends an answer for the given input text. It is shared
// with the media strategy, which substitutes the analyzed description.
func (s *assistantStrategy) reply(ctx context.Context, ev models.Event, input string) error {
	cfg := s.med.settings.Current().Client(ev.ClientID)
	if !cfg.AssistantEnabled {
		logrus.Debugf("Assistant disabled for client %s, leaving event %s unanswered", ev.ClientID, ev.EventID)
		return nil
	}

	reply, err := s.med.generate(ctx, ev, input, conversationWindow, cfg.FallbackReply)
	if err != nil {
		return err
	}
	if reply == "" {
		// no assistant and no fallback configured: silence is the outcome
		return nil
	}

	platform, err := s.med.platform(ev.Platform)
	if err != nil {
		return err
	}

	if _, err := platform.SendReply(ctx, ev.ConversationID, reply); err != nil {
		return err
	}
	if s.med.metrics != nil {
		s.med.metrics.RepliesSent.Inc()
	}
	return nil
}

// mediaStrategy handles media and shared content: the AI collaborator
// describes the media, and the description is fed through the text path.
type mediaStrategy struct {
	med  *Mediator
	text *assistantStrategy
}

func (s *mediaStrategy) Name() string { return "media" }

func (s *mediaStrategy) Handle(ctx context.Context, ev models.Event) error {
	if ev.Payload.MediaURL == "" {
		return Permanentf("media event %s has no media reference", ev.EventID)
	}

	if s.med.assistant == nil {
		logrus.Debugf("No assistant configured, leaving media event %s unanswered", ev.EventID)
		return nil
	}

	description, err := s.med.assistant.AnalyzeMedia(ctx, ev.Payload.MediaURL)
	if err != nil {
		if s.med.metrics != nil {
			s.med.metrics.AssistantFailures.Inc()
		}
		return err
	}

	input := "The user shared media showing: " + description
	if ev.Payload.Text != "" {
		input += "\nThe user also wrote: " + ev.Payload.Text
	}

	return s.text.reply(ctx, ev, input)
}

// commentStrategy answers public comments with a shorter context window and
// posts the reply under the comment rather than into a conversation.
type commentStrategy struct {
	med *Mediator
}

func (s *commentStrategy) Name() string { return "comment" }

func (s *commentStrategy) Handle(ctx context.Context, ev models.Event) error {
	if ev.Payload.CommentID == "" {
		return Permanentf("comment event %s has no comment id", ev.EventID)
	}
	if ev.Payload.Text == "" {
		return Permanentf("comment event %s has empty text", ev.EventID)
	}

	cfg := s.med.settings.Current().Client(ev.ClientID)
	if !cfg.AssistantEnabled {
		logrus.Debugf("Assistant disabled for client %s, leaving comment %s unanswered", ev.ClientID, ev.EventID)
		return nil
	}

	reply, err := s.med.generate(ctx, ev, ev.Payload.Text, commentWindow, cfg.FallbackReply)
	if err != nil {
		return err
	}
	if reply == "" {
		return nil
	}

	platform, err := s.med.platform(ev.Platform)
	if err != nil {
		return err
	}

	if _, err := platform.SendCommentReply(ctx, ev.Payload.CommentID, reply); err != nil {
		return err
	}
	if s.med.metrics != nil {
		s.med.metrics.RepliesSent.Inc()
	}
	return nil
}

// reactionStrategy records reactions without replying
type reactionStrategy struct{}

func (s *reactionStrategy) Name() string { return "reaction" }

func (s *reactionStrategy) Handle(ctx context.Context, ev models.Event) error {
	logrus.WithFields(logrus.Fields{
		"event_id": ev.EventID,
		"sender":   ev.SenderID,
		"reaction": ev.Payload.ReactionType,
	}).Info("Reaction recorded, no reply needed")
	return nil
}

// generate produces the reply text: via the AI collaborator when one is
// configured, otherwise the client's fixed fallback reply (which may be empty).
func (m *Mediator) generate(ctx context.Context, ev models.Event, input string, window int, fallback string) (string, error) {
	if m.assistant == nil {
		return fallback, nil
	}

	history, err := m.conversationHistory(ev, window)
	if err != nil {
		return "", err
	}

	reply, err := m.assistant.GenerateReply(ctx, history, input)
	if err != nil {
		if m.metrics != nil {
			m.metrics.AssistantFailures.Inc()
		}
		return "", err
	}
	return reply, nil
}

// conversationHistory loads prior same-conversation events as assistant context
func (m *Mediator) conversationHistory(ev models.Event, window int) ([]collab.Message, error) {
	events, err := m.store.RecentConversation(ev.ClientID, ev.ConversationID, ev.ReceivedAt, window)
	if err != nil {
		return nil, err
	}

	history := make([]collab.Message, 0, len(events))
	for _, prior := range events {
		if prior.Payload.Text == "" {
			continue
		}
		history = append(history, collab.Message{Role: "user", Text: prior.Payload.Text})
	}
	return history, nil
}
