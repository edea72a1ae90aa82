package store

import (
	"fmt"

	"gorm.io/gorm/clause"

	"social-relay-go/internal/models"
)

// UpsertPost inserts or refreshes a mirrored post keyed by (client, native id)
func (s *Store) UpsertPost(post *models.Post) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "client_id"}, {Name: "native_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"caption", "media_url", "media_type", "like_count", "posted_at", "updated_at",
		}),
	}).Create(post).Error
	if err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", post.NativeID, err)
	}
	return nil
}

// UpsertStory inserts or refreshes a mirrored story keyed by (client, native id)
func (s *Store) UpsertStory(story *models.Story) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "client_id"}, {Name: "native_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"caption", "media_url", "media_type", "posted_at", "updated_at",
		}),
	}).Create(story).Error
	if err != nil {
		return fmt.Errorf("failed to upsert story %s: %w", story.NativeID, err)
	}
	return nil
}

// RecentPosts returns the latest mirrored posts for a client
func (s *Store) RecentPosts(clientID string, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.
		Where("client_id = ?", clientID).
		Order("posted_at desc").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts for client %s: %w", clientID, err)
	}
	return posts, nil
}

// AllClientSettings returns the persisted per-client configuration rows
func (s *Store) AllClientSettings() ([]models.ClientSettings, error) {
	var settings []models.ClientSettings
	if err := s.db.Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch client settings: %w", err)
	}
	return settings, nil
}
