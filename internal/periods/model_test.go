package periods_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scholaris-erp/scholaris-erp/internal/periods"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestEffectiveStatus(t *testing.T) {
	end := date(2025, 3, 10)

	require.Equal(t, periods.StatusExpired,
		periods.EffectiveStatus(periods.StatusOpen, end, date(2025, 4, 1)))
	require.Equal(t, periods.StatusOpen,
		periods.EffectiveStatus(periods.StatusOpen, end, date(2025, 2, 1)))
	require.Equal(t, periods.StatusOpen,
		periods.EffectiveStatus(periods.StatusOpen, end, end), "end date itself is still open")
	require.Equal(t, periods.StatusClosed,
		periods.EffectiveStatus(periods.StatusClosed, end, date(2025, 2, 1)))
	require.Equal(t, periods.StatusClosed,
		periods.EffectiveStatus(periods.StatusClosed, end, date(2025, 4, 1)),
		"closed is never affected by the clock")
}

func TestKindValidNumber(t *testing.T) {
	cases := []struct {
		kind   periods.Kind
		number int
		ok     bool
	}{
		{periods.KindSemester, 1, true},
		{periods.KindSemester, 2, true},
		{periods.KindSemester, 3, false},
		{periods.KindSemester, 0, false},
		{periods.KindTrimester, 1, true},
		{periods.KindTrimester, 2, true},
		{periods.KindTrimester, 3, true},
		{periods.KindTrimester, 4, false},
		{periods.Kind("QUARTER"), 1, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, tc.kind.ValidNumber(tc.number),
			"kind=%s number=%d", tc.kind, tc.number)
	}
}
