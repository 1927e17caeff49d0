package periods

import "time"

type createRequest struct {
	AcademicYearID int64     `json:"academic_year_id" validate:"required,gt=0"`
	Kind           string    `json:"kind" validate:"required,oneof=SEMESTER TRIMESTER"`
	Number         int       `json:"number" validate:"required,gte=1,lte=3"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required"`
}

type updateRequest struct {
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Status    *string    `json:"status,omitempty" validate:"omitempty,oneof=OPEN CLOSED"`
}

type reopenRequest struct {
	Reason     string     `json:"reason"`
	NewEndDate *time.Time `json:"new_end_date,omitempty"`
}

// periodResponse augments the stored row with the derived status.
type periodResponse struct {
	Period
	EffectiveStatus Status `json:"effective_status"`
}

func toResponse(p Period, now time.Time) periodResponse {
	return periodResponse{Period: p, EffectiveStatus: p.Effective(now)}
}

func toResponseList(items []Period, now time.Time) []periodResponse {
	out := make([]periodResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toResponse(p, now))
	}
	return out
}
