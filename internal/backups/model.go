package backups

import "time"

// Frequency enumerates how often a schedule fires.
type Frequency string

const (
	FrequencyHourly Frequency = "HOURLY"
	FrequencyDaily  Frequency = "DAILY"
	FrequencyWeekly Frequency = "WEEKLY"
)

func (f Frequency) interval() time.Duration {
	switch f {
	case FrequencyHourly:
		return time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Schedule describes one tenant's recurring backup.
type Schedule struct {
	ID            int64
	TenantID      int64
	Frequency     Frequency
	RetentionDays int
	Active        bool
	LastRunAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Due reports whether the schedule should fire at the given instant.
func (s Schedule) Due(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.LastRunAt == nil {
		return true
	}
	return now.Sub(*s.LastRunAt) >= s.Frequency.interval()
}

// Artifact records one completed backup and where it landed.
type Artifact struct {
	ID         int64
	ScheduleID int64
	TenantID   int64
	Location   string
	CreatedAt  time.Time
}
