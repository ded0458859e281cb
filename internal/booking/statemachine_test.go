package booking

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to AppointmentStatus }{
		{StatusBooked, StatusCheckedIn},
		{StatusBooked, StatusCancelled},
		{StatusBooked, StatusNoShow},
		{StatusCheckedIn, StatusInProgress},
		{StatusCheckedIn, StatusCancelled},
		{StatusCheckedIn, StatusNoShow},
		{StatusInProgress, StatusCompleted},
	}
	for _, tc := range allowed {
		require.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	denied := []struct{ from, to AppointmentStatus }{
		{StatusBooked, StatusInProgress},
		{StatusBooked, StatusCompleted},
		{StatusCheckedIn, StatusCompleted},
		{StatusInProgress, StatusCancelled},
		{StatusInProgress, StatusNoShow},
		{StatusCompleted, StatusBooked},
		{StatusCancelled, StatusBooked},
		{StatusNoShow, StatusCheckedIn},
		{StatusBooked, StatusBooked},
	}
	for _, tc := range denied {
		require.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	require.True(t, IsTerminal(StatusCompleted))
	require.True(t, IsTerminal(StatusCancelled))
	require.True(t, IsTerminal(StatusNoShow))
	require.False(t, IsTerminal(StatusBooked))
	require.False(t, IsTerminal(StatusCheckedIn))
	require.False(t, IsTerminal(StatusInProgress))
}

func TestInWaitingRoom(t *testing.T) {
	require.True(t, InWaitingRoom(StatusCheckedIn))
	require.True(t, InWaitingRoom(StatusInProgress))
	require.False(t, InWaitingRoom(StatusBooked))
	require.False(t, InWaitingRoom(StatusCompleted))
	require.False(t, InWaitingRoom(StatusCancelled))
	require.False(t, InWaitingRoom(StatusNoShow))
}
