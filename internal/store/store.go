package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"social-relay-go/internal/models"
)

// claimScanFactor controls how many queued rows beyond the batch size the
// claim step scans, so the one-event-per-conversation restriction still fills
// a batch when a few conversations are backed up.
const claimScanFactor = 5

// Store is the sole source of truth for event processing state. All status
// transitions go through it.
type Store struct {
	db *gorm.DB
}

// New creates a Store on top of an initialized gorm connection
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for health checks
func (s *Store) DB() *gorm.DB {
	return s.db
}

// InsertIfAbsent persists a new event unless a row with the same event_id
// already exists. Redelivered webhook payloads are suppressed here.
func (s *Store) InsertIfAbsent(ev *models.Event) (bool, error) {
	if ev.Status == "" {
		ev.Status = models.StatusQueued
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}

	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(ev)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert event %s: %w", ev.EventID, res.Error)
	}

	return res.RowsAffected > 0, nil
}

// ClaimBatch atomically transitions up to limit QUEUED events to PROCESSING,
// oldest-received first, claiming at most one event per conversation and
// skipping conversations that already hold a PROCESSING row, so that
// per-conversation ordering holds even with concurrent workers. Each claim is
// a compare-and-set on status; rows another worker already claimed are
// skipped. attempt_count is incremented as part of the claim.
func (s *Store) ClaimBatch(limit int) ([]models.Event, error) {
	var busy []string
	err := s.db.Model(&models.Event{}).
		Where("status = ?", models.StatusProcessing).
		Distinct().
		Pluck("conversation_id", &busy).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query in-flight conversations: %w", err)
	}

	var candidates []models.Event
	err = s.db.
		Where("status = ?", models.StatusQueued).
		Order("received_at asc, id asc").
		Limit(limit * claimScanFactor).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query queued events: %w", err)
	}

	claimed := make([]models.Event, 0, limit)
	seen := make(map[string]bool, len(busy))
	for _, conv := range busy {
		seen[conv] = true
	}

	for _, ev := range candidates {
		if len(claimed) >= limit {
			break
		}
		if seen[ev.ConversationID] {
			continue
		}

		res := s.db.Model(&models.Event{}).
			Where("id = ? AND status = ?", ev.ID, models.StatusQueued).
			Updates(map[string]interface{}{
				"status":        models.StatusProcessing,
				"attempt_count": gorm.Expr("attempt_count + 1"),
			})
		if res.Error != nil || res.RowsAffected == 0 {
			// lost the claim race, or transient DB error; either way skip
			continue
		}

		seen[ev.ConversationID] = true
		ev.Status = models.StatusProcessing
		ev.AttemptCount++
		claimed = append(claimed, ev)
	}

	return claimed, nil
}

// MarkProcessed records a successful terminal outcome for a claimed event
func (s *Store) MarkProcessed(id uint) error {
	now := time.Now().UTC()
	res := s.db.Model(&models.Event{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":       models.StatusProcessed,
			"processed_at": &now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark event %d processed: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %d was not in PROCESSING state", id)
	}
	return nil
}

// MarkFailed records a permanent terminal outcome for a claimed event
func (s *Store) MarkFailed(id uint, reason string) error {
	res := s.db.Model(&models.Event{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":      models.StatusFailed,
			"fail_reason": reason,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark event %d failed: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %d was not in PROCESSING state", id)
	}
	return nil
}

// Requeue returns a claimed event to QUEUED for a later drain tick after a
// transient failure. The attempt count keeps the increment it got at claim
// time, so attempts stay monotonically non-decreasing.
func (s *Store) Requeue(id uint, reason string) error {
	res := s.db.Model(&models.Event{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":      models.StatusQueued,
			"fail_reason": reason,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to requeue event %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %d was not in PROCESSING state", id)
	}
	return nil
}

// DeleteProcessedBefore removes PROCESSED events whose processed_at is older
// than the cutoff. FAILED rows are retained for inspection and
// QUEUED/PROCESSING rows are never touched.
func (s *Store) DeleteProcessedBefore(cutoff time.Time) (int64, error) {
	res := s.db.
		Where("status = ? AND processed_at IS NOT NULL AND processed_at < ?", models.StatusProcessed, cutoff).
		Delete(&models.Event{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// EventByID fetches a single event
func (s *Store) EventByID(id uint) (*models.Event, error) {
	var ev models.Event
	if err := s.db.First(&ev, id).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

// Events lists events filtered by status with pagination, newest first.
// Filtering by FAILED gives the dead-letter view.
func (s *Store) Events(status models.Status, page, limit int) ([]models.Event, int64, error) {
	query := s.db.Model(&models.Event{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	offset := (page - 1) * limit
	var events []models.Event
	if err := query.Order("received_at DESC").Offset(offset).Limit(limit).Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch events: %w", err)
	}

	return events, total, nil
}

// RecentConversation returns the most recent events of one conversation in
// chronological order, for use as assistant context. Events received at or
// after the reference time are excluded.
func (s *Store) RecentConversation(clientID, conversationID string, before time.Time, limit int) ([]models.Event, error) {
	var events []models.Event
	err := s.db.
		Where("client_id = ? AND conversation_id = ? AND received_at < ?", clientID, conversationID, before).
		Order("received_at desc, id desc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation history: %w", err)
	}

	// reverse to chronological order
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// QueueDepth counts events currently waiting to be drained
func (s *Store) QueueDepth() (int64, error) {
	var n int64
	err := s.db.Model(&models.Event{}).Where("status = ?", models.StatusQueued).Count(&n).Error
	return n, err
}
