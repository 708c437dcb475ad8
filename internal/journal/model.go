package journal

import "time"

// Entry is one completed cycle of a loop run.
type Entry struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	RunID      string    `gorm:"not null;index" json:"run_id"`
	Cycle      uint64    `gorm:"not null" json:"cycle"`
	Text       string    `gorm:"not null" json:"text"`
	Outcome    string    `gorm:"not null;index" json:"outcome"`
	Error      string    `json:"error,omitempty"`
	LatencyMS  int64     `json:"latency_ms"`
	DurationMS int64     `json:"duration_ms"`
	FrameBytes int       `json:"frame_bytes"`
	Appended   bool      `json:"appended"`
	StartedAt  time.Time `gorm:"index" json:"started_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Entry) TableName() string {
	return "journal_entries"
}

type Stats struct {
	Total        int64            `json:"total"`
	ByOutcome    map[string]int64 `json:"by_outcome"`
	Appended     int64            `json:"appended"`
	AvgLatencyMS float64          `json:"avg_latency_ms"`
}
