// Package journal persists a row per completed loop cycle so runs can be
// inspected after the text has scrolled off screen.
package journal

import (
	"context"
	"errors"

	"github.com/eleven-am/overlord/internal/loop"
	"github.com/eleven-am/overlord/internal/shared"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Entry{})
}

// Record implements loop.Recorder.
func (s *Store) Record(ctx context.Context, rec loop.CycleRecord) error {
	entry := &Entry{
		ID:         shared.NewID("cyc_"),
		RunID:      rec.RunID,
		Cycle:      rec.Cycle,
		Text:       rec.Text,
		Outcome:    string(rec.Outcome),
		LatencyMS:  rec.Latency.Milliseconds(),
		DurationMS: rec.Duration.Milliseconds(),
		FrameBytes: len(rec.Frame.Data),
		Appended:   rec.Appended,
		StartedAt:  rec.StartedAt,
	}
	if rec.Err != nil {
		entry.Error = rec.Err.Error()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Recent returns the newest entries first, optionally limited to one run.
func (s *Store) Recent(ctx context.Context, runID string, limit int) ([]*Entry, error) {
	q := s.db.WithContext(ctx).Order("started_at DESC").Order("cycle DESC")
	if runID != "" {
		q = q.Where("run_id = ?", runID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entries []*Entry
	err := q.Find(&entries).Error
	return entries, err
}

func (s *Store) Stats(ctx context.Context, runID string) (*Stats, error) {
	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&Entry{})
		if runID != "" {
			q = q.Where("run_id = ?", runID)
		}
		return q
	}

	var rows []struct {
		Outcome string
		Count   int64
	}
	if err := scoped().Select("outcome, count(*) AS count").Group("outcome").Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &Stats{ByOutcome: make(map[string]int64, len(rows))}
	for _, r := range rows {
		stats.ByOutcome[r.Outcome] = r.Count
		stats.Total += r.Count
	}

	if err := scoped().Where("appended = ?", true).Count(&stats.Appended).Error; err != nil {
		return nil, err
	}

	var avg *float64
	if err := scoped().Where("latency_ms > 0").Select("AVG(latency_ms)").Row().Scan(&avg); err != nil {
		return nil, err
	}
	if avg != nil {
		stats.AvgLatencyMS = *avg
	}
	return stats, nil
}

func (s *Store) DeleteRun(ctx context.Context, runID string) (int64, error) {
	result := s.db.WithContext(ctx).Delete(&Entry{}, "run_id = ?", runID)
	return result.RowsAffected, result.Error
}
