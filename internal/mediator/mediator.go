package mediator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"social-relay-go/internal/collab"
	"social-relay-go/internal/metrics"
	"social-relay-go/internal/models"
	"social-relay-go/internal/settings"
	"social-relay-go/internal/store"
)

// RouteKey selects a handling strategy for an event
type RouteKey struct {
	Platform models.Platform
	Kind     models.Kind
}

// Strategy handles one claimed event. A nil error means the event is done,
// including "no reply needed". Errors wrapped with Permanent fail the event
// immediately; all other errors are retried up to the attempt limit.
type Strategy interface {
	Name() string
	Handle(ctx context.Context, ev models.Event) error
}

// Options carries the tunables of the drain worker
type Options struct {
	BatchSize           int
	MaxAttempts         int
	CollaboratorTimeout time.Duration
}

// Mediator claims batches of queued events and routes each to a handling
// strategy keyed by (platform, kind), recording terminal status per event.
type Mediator struct {
	store     *store.Store
	settings  *settings.Registry
	assistant collab.AssistantClient
	platforms map[models.Platform]collab.PlatformClient
	metrics   *metrics.Metrics
	routes    map[RouteKey]Strategy
	opts      Options
}

// New creates a mediator with the default routing table. The assistant may be
// nil, in which case text strategies fall back to the client's fixed reply.
func New(st *store.Store, reg *settings.Registry, assistant collab.AssistantClient, platforms map[models.Platform]collab.PlatformClient, m *metrics.Metrics, opts Options) *Mediator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.CollaboratorTimeout <= 0 {
		opts.CollaboratorTimeout = 60 * time.Second
	}

	med := &Mediator{
		store:     st,
		settings:  reg,
		assistant: assistant,
		platforms: platforms,
		metrics:   m,
		opts:      opts,
	}

	assistantStrat := &assistantStrategy{med: med}
	mediaStrat := &mediaStrategy{med: med, text: assistantStrat}
	commentStrat := &commentStrategy{med: med}
	reactionStrat := &reactionStrategy{}

	med.routes = map[RouteKey]Strategy{
		{models.PlatformInstagram, models.KindText}:          assistantStrat,
		{models.PlatformInstagram, models.KindMedia}:         mediaStrat,
		{models.PlatformInstagram, models.KindSharedContent}: mediaStrat,
		{models.PlatformInstagram, models.KindComment}:       commentStrat,
		{models.PlatformInstagram, models.KindReaction}:      reactionStrat,
		{models.PlatformTelegram, models.KindText}:           assistantStrat,
		{models.PlatformTelegram, models.KindMedia}:          mediaStrat,
		{models.PlatformTelegram, models.KindReaction}:       reactionStrat,
	}

	return med
}

// Route returns the strategy for a (platform, kind) pair. The table is fixed
// at construction, so routing is deterministic.
func (m *Mediator) Route(platform models.Platform, kind models.Kind) (Strategy, bool) {
	s, ok := m.routes[RouteKey{Platform: platform, Kind: kind}]
	return s, ok
}

// Drain claims a batch of queued events and processes each one. Per-event
// failures are contained and recorded; they never abort the batch.
func (m *Mediator) Drain(ctx context.Context) error {
	start := time.Now()

	events, err := m.store.ClaimBatch(m.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim batch: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	logrus.Infof("Claimed %d events for processing", len(events))

	for _, ev := range events {
		m.processEvent(ctx, ev)
	}

	if m.metrics != nil {
		m.metrics.DrainDuration.Observe(time.Since(start).Seconds())
	}
	logrus.Infof("Drain cycle completed in %v", time.Since(start))
	return nil
}

func (m *Mediator) processEvent(ctx context.Context, ev models.Event) {
	log := logrus.WithFields(logrus.Fields{
		"event_id": ev.EventID,
		"platform": ev.Platform,
		"kind":     ev.Kind,
		"attempt":  ev.AttemptCount,
	})

	err := m.handle(ctx, ev)

	switch {
	case err == nil:
		if markErr := m.store.MarkProcessed(ev.ID); markErr != nil {
			log.Errorf("Failed to record processed status: %v", markErr)
			return
		}
		if m.metrics != nil {
			m.metrics.EventsProcessed.Inc()
		}
		log.Info("Event processed")

	case IsPermanent(err):
		log.Errorf("Permanent failure: %v", err)
		if markErr := m.store.MarkFailed(ev.ID, err.Error()); markErr != nil {
			log.Errorf("Failed to record failed status: %v", markErr)
		}
		if m.metrics != nil {
			m.metrics.EventsFailed.Inc()
		}

	case ev.AttemptCount >= m.opts.MaxAttempts:
		log.Errorf("Transient failure, attempt limit reached: %v", err)
		reason := fmt.Sprintf("max attempts reached: %v", err)
		if markErr := m.store.MarkFailed(ev.ID, reason); markErr != nil {
			log.Errorf("Failed to record failed status: %v", markErr)
		}
		if m.metrics != nil {
			m.metrics.EventsFailed.Inc()
		}

	default:
		log.Warnf("Transient failure, requeueing: %v", err)
		if reqErr := m.store.Requeue(ev.ID, err.Error()); reqErr != nil {
			log.Errorf("Failed to requeue: %v", reqErr)
		}
		if m.metrics != nil {
			m.metrics.Retries.Inc()
		}
	}
}

// handle runs the routed strategy under the collaborator timeout, converting
// panics into permanent failures so one bad event cannot kill the worker.
func (m *Mediator) handle(ctx context.Context, ev models.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanentf("panic while handling event: %v", r)
		}
	}()

	strat, ok := m.Route(ev.Platform, ev.Kind)
	if !ok {
		return Permanentf("no strategy for platform=%s kind=%s", ev.Platform, ev.Kind)
	}

	cctx, cancel := context.WithTimeout(ctx, m.opts.CollaboratorTimeout)
	defer cancel()

	return strat.Handle(cctx, ev)
}

// platform returns the client for a platform or a permanent error
func (m *Mediator) platform(p models.Platform) (collab.PlatformClient, error) {
	client, ok := m.platforms[p]
	if !ok || client == nil {
		return nil, Permanentf("no platform client configured for %s", p)
	}
	return client, nil
}
