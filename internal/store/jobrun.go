package store

import (
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"social-relay-go/internal/models"
)

// TryStartJob attempts to mark the named job as running. It returns false
// without error when the previous run of the same job name has not finished,
// which is the scheduler's signal to skip the tick. The transition is a
// compare-and-set on the running flag, so concurrent ticks cannot both win.
func (s *Store) TryStartJob(name string) (bool, error) {
	// make sure the job row exists before the CAS
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_name"}},
		DoNothing: true,
	}).Create(&models.JobRun{JobName: name}).Error
	if err != nil {
		return false, fmt.Errorf("failed to ensure job run row for %s: %w", name, err)
	}

	now := time.Now().UTC()
	res := s.db.Model(&models.JobRun{}).
		Where("job_name = ? AND running = ?", name, false).
		Updates(map[string]interface{}{
			"running":         true,
			"last_started_at": &now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to start job %s: %w", name, res.Error)
	}

	return res.RowsAffected > 0, nil
}

// FinishJob records the end of a job run. It is called even when the job
// returned an error or panicked, so a failed run never blocks future ticks.
func (s *Store) FinishJob(name, status string) error {
	now := time.Now().UTC()
	err := s.db.Model(&models.JobRun{}).
		Where("job_name = ?", name).
		Updates(map[string]interface{}{
			"running":          false,
			"last_finished_at": &now,
			"last_status":      status,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to finish job %s: %w", name, err)
	}
	return nil
}

// JobRun returns the run record for a named job
func (s *Store) JobRun(name string) (*models.JobRun, error) {
	var run models.JobRun
	if err := s.db.Where("job_name = ?", name).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// JobRuns returns all job run records
func (s *Store) JobRuns() ([]models.JobRun, error) {
	var runs []models.JobRun
	if err := s.db.Order("job_name asc").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch job runs: %w", err)
	}
	return runs, nil
}
