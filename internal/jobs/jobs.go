// Package jobs provides the bodies of the periodic background jobs wired into
// the scheduler: draining the event queue, retention cleanup, and mirroring
// recent platform content.
package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"social-relay-go/internal/collab"
	"social-relay-go/internal/mediator"
	"social-relay-go/internal/metrics"
	"social-relay-go/internal/models"
	"social-relay-go/internal/scheduler"
	"social-relay-go/internal/settings"
	"social-relay-go/internal/store"
)

// Job names, also the keys of the job run records
const (
	JobDrain       = "drain"
	JobCleanup     = "cleanup"
	JobContentSync = "content-sync"
)

// Drain returns the job body that pulls queued events through the mediator
func Drain(med *mediator.Mediator) scheduler.JobFunc {
	return func(ctx context.Context) error {
		return med.Drain(ctx)
	}
}

// Cleanup returns the job body that deletes processed events older than the
// retention window. Failed events are kept for inspection.
func Cleanup(st *store.Store, retention time.Duration, m *metrics.Metrics) scheduler.JobFunc {
	return func(ctx context.Context) error {
		cutoff := time.Now().UTC().Add(-retention)

		deleted, err := st.DeleteProcessedBefore(cutoff)
		if err != nil {
			return err
		}

		if deleted > 0 {
			logrus.Infof("Cleanup removed %d processed events older than %s", deleted, cutoff.Format(time.RFC3339))
			if m != nil {
				m.EventsCleaned.Add(float64(deleted))
			}
		}
		return nil
	}
}

// ContentSync returns the job body that mirrors each client's recent posts
// and stories into local storage for use as conversational context. Upserts
// are idempotent, so re-fetching the same content is harmless.
func ContentSync(st *store.Store, reg *settings.Registry, platforms map[models.Platform]collab.PlatformClient) scheduler.JobFunc {
	return func(ctx context.Context) error {
		clients := reg.Current().ClientIDs()
		if len(clients) == 0 {
			logrus.Debug("No clients configured, skipping content sync")
			return nil
		}

		var lastErr error
		for _, clientID := range clients {
			for name, platform := range platforms {
				if err := syncClient(ctx, st, platform, clientID); err != nil {
					logrus.Errorf("Content sync failed for client %s on %s: %v", clientID, name, err)
					lastErr = err
				}
			}
		}
		return lastErr
	}
}

func syncClient(ctx context.Context, st *store.Store, platform collab.PlatformClient, clientID string) error {
	posts, err := platform.FetchRecentPosts(ctx, clientID)
	if err != nil {
		return err
	}
	for i := range posts {
		if err := st.UpsertPost(&posts[i]); err != nil {
			return err
		}
	}

	stories, err := platform.FetchRecentStories(ctx, clientID)
	if err != nil {
		return err
	}
	for i := range stories {
		if err := st.UpsertStory(&stories[i]); err != nil {
			return err
		}
	}

	if len(posts) > 0 || len(stories) > 0 {
		logrus.Infof("Synced %d posts and %d stories for client %s", len(posts), len(stories), clientID)
	}
	return nil
}
