package periods

import "time"

// Kind enumerates the shapes an academic period can take.
type Kind string

const (
	KindSemester  Kind = "SEMESTER"
	KindTrimester Kind = "TRIMESTER"
)

// ValidNumber reports whether n is a legal period number for the kind.
func (k Kind) ValidNumber(n int) bool {
	switch k {
	case KindSemester:
		return n == 1 || n == 2
	case KindTrimester:
		return n >= 1 && n <= 3
	}
	return false
}

// Valid reports whether the kind itself is known.
func (k Kind) Valid() bool {
	return k == KindSemester || k == KindTrimester
}

// Status enumerates period states. Only OPEN and CLOSED are persisted;
// EXPIRED exists solely as a derived value.
type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusClosed  Status = "CLOSED"
	StatusExpired Status = "EXPIRED"
)

// Period is a time-bounded window during which grade entry is permitted.
type Period struct {
	ID             int64      `json:"id"`
	TenantID       int64      `json:"tenant_id"`
	AcademicYearID int64      `json:"academic_year_id"`
	Kind           Kind       `json:"kind"`
	Number         int        `json:"number"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        time.Time  `json:"end_date"`
	Status         Status     `json:"status"`
	ReopenedBy     *int64     `json:"reopened_by,omitempty"`
	ReopenedAt     *time.Time `json:"reopened_at,omitempty"`
	ReopenReason   string     `json:"reopen_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// EffectiveStatus derives the observable state: an OPEN period past its end
// date reads as EXPIRED. CLOSED is never affected by the clock.
func EffectiveStatus(persisted Status, endDate time.Time, now time.Time) Status {
	if persisted == StatusOpen && now.After(endDate) {
		return StatusExpired
	}
	return persisted
}

// Effective returns the period's derived status at the given instant.
func (p Period) Effective(now time.Time) Status {
	return EffectiveStatus(p.Status, p.EndDate, now)
}
