package service

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

func TestBuildScheduleWeeklySessions(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	end, days, err := BuildSchedule(start, 3, 2, time.UTC)
	require.NoError(t, err)
	assert.True(t, end.Equal(time.Date(2024, 1, 22, 10, 0, 0, 0, time.UTC)))
	require.Len(t, days, 3)

	expected := []string{"2024-01-01", "2024-01-08", "2024-01-15"}
	for i, day := range days {
		assert.Equal(t, expected[i], day.Date)
		assert.Equal(t, "10:00", day.StartTime)
		assert.Equal(t, "12:00", day.EndTime)
	}
}

func TestBuildScheduleCountMatchesWeeks(t *testing.T) {
	start := time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)
	for weeks := 0; weeks <= 12; weeks++ {
		end, days, err := BuildSchedule(start, weeks, 1, time.UTC)
		require.NoError(t, err)
		assert.Len(t, days, weeks)
		assert.True(t, end.Equal(start.AddDate(0, 0, 7*weeks)))
	}
}

func TestBuildScheduleKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	start := time.Date(2024, 3, 24, 18, 0, 0, 0, loc)

	_, days, err := BuildSchedule(start, 2, 1, loc)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-31", days[1].Date)
	assert.Equal(t, "18:00", days[1].StartTime)
	assert.Equal(t, "19:00", days[1].EndTime)
}

func TestBuildScheduleRejectsMidnightCrossing(t *testing.T) {
	start := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)

	_, _, err := BuildSchedule(start, 2, 2, time.UTC)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "lesson session must end on the same day", appErr.Message)
}

func TestBuildScheduleZeroWeeks(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	end, days, err := BuildSchedule(start, 0, 2, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, days)
	assert.True(t, end.Equal(start))
}

func TestBuildScheduleEndUsesWallClockOnTransitionDay(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	// Clocks jump from 02:00 to 03:00 on 2024-03-31.
	start := time.Date(2024, 3, 31, 1, 30, 0, 0, loc)

	_, days, err := BuildSchedule(start, 1, 2, loc)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2024-03-31", days[0].Date)
	assert.Equal(t, "01:30", days[0].StartTime)
	assert.Equal(t, "03:30", days[0].EndTime)

	// The autumn fallback adds an hour that must not stretch the session either.
	start = time.Date(2024, 10, 20, 1, 30, 0, 0, loc)
	_, days, err = BuildSchedule(start, 2, 2, loc)
	require.NoError(t, err)
	assert.Equal(t, "2024-10-27", days[1].Date)
	assert.Equal(t, "01:30", days[1].StartTime)
	assert.Equal(t, "03:30", days[1].EndTime)
}

func TestBuildScheduleRejectsLateStartOnTransitionDay(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	start := time.Date(2024, 3, 31, 22, 30, 0, 0, loc)

	_, _, err = BuildSchedule(start, 1, 2, loc)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
