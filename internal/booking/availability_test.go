package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mondaySession() *Session {
	return &Session{
		ID:                  1,
		DoctorID:            "doc-1",
		DayOfWeek:           time.Monday,
		StartTime:           NewTimeOfDay(9, 0),
		EndTime:             NewTimeOfDay(12, 0),
		ServiceMode:         ModeInPerson,
		MaxQueueSize:        10,
		ConsultationMinutes: 15,
		EffectiveFrom:       time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		Active:              true,
	}
}

func TestResolveAvailability(t *testing.T) {
	monday := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	t.Run("session fields pass through without override", func(t *testing.T) {
		resolved, err := ResolveAvailability(mondaySession(), nil, monday)
		require.NoError(t, err)
		require.Equal(t, NewTimeOfDay(9, 0), resolved.StartTime)
		require.Equal(t, NewTimeOfDay(12, 0), resolved.EndTime)
		require.Equal(t, 10, resolved.MaxQueueSize)
		require.Equal(t, 15, resolved.ConsultationMinutes)
	})

	t.Run("weekday mismatch", func(t *testing.T) {
		_, err := ResolveAvailability(mondaySession(), nil, tuesday)
		require.ErrorIs(t, err, ErrSessionNotAvailable)
	})

	t.Run("before effective from", func(t *testing.T) {
		s := mondaySession()
		s.EffectiveFrom = time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
		_, err := ResolveAvailability(s, nil, monday)
		require.ErrorIs(t, err, ErrSessionNotAvailable)
	})

	t.Run("after effective until", func(t *testing.T) {
		s := mondaySession()
		until := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
		s.EffectiveUntil = &until
		_, err := ResolveAvailability(s, nil, monday)
		require.ErrorIs(t, err, ErrSessionNotAvailable)
	})

	t.Run("cancelled override wins over field overrides", func(t *testing.T) {
		start := NewTimeOfDay(10, 0)
		_, err := ResolveAvailability(mondaySession(), &SessionOverride{
			SessionID: 1,
			Date:      monday,
			Cancelled: true,
			StartTime: &start,
		}, monday)
		require.ErrorIs(t, err, ErrSessionCancelled)
	})

	t.Run("override replaces only its non-nil fields", func(t *testing.T) {
		start := NewTimeOfDay(10, 30)
		capacity := 4
		resolved, err := ResolveAvailability(mondaySession(), &SessionOverride{
			SessionID:    1,
			Date:         monday,
			StartTime:    &start,
			MaxQueueSize: &capacity,
		}, monday)
		require.NoError(t, err)
		require.Equal(t, NewTimeOfDay(10, 30), resolved.StartTime)
		require.Equal(t, NewTimeOfDay(12, 0), resolved.EndTime)
		require.Equal(t, 4, resolved.MaxQueueSize)
	})

	t.Run("time portion of the date is ignored", func(t *testing.T) {
		lateMonday := time.Date(2026, time.March, 2, 23, 45, 0, 0, time.UTC)
		resolved, err := ResolveAvailability(mondaySession(), nil, lateMonday)
		require.NoError(t, err)
		require.Equal(t, monday, resolved.Date)
	})
}

func TestEstimatedStart(t *testing.T) {
	monday := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	resolved, err := ResolveAvailability(mondaySession(), nil, monday)
	require.NoError(t, err)

	// 09:00 start, 15 minutes per consultation: queue 3 begins at 09:30.
	require.Equal(t, time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC), resolved.EstimatedStart(1))
	require.Equal(t, time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC), resolved.EstimatedStart(3))

	require.Equal(t, 0, resolved.EstimatedWaitMinutes(1))
	require.Equal(t, 30, resolved.EstimatedWaitMinutes(3))
}

func TestTimeOfDay(t *testing.T) {
	parsed, err := ParseTimeOfDay("09:05")
	require.NoError(t, err)
	require.Equal(t, NewTimeOfDay(9, 5), parsed)
	require.Equal(t, "09:05", parsed.String())

	_, err = ParseTimeOfDay("25:00")
	require.Error(t, err)
	_, err = ParseTimeOfDay("9am")
	require.Error(t, err)

	require.True(t, NewTimeOfDay(9, 0).Before(NewTimeOfDay(9, 1)))
	require.False(t, NewTimeOfDay(9, 1).Before(NewTimeOfDay(9, 1)))
}
