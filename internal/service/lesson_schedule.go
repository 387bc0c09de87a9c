package service

import (
	"time"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

const (
	scheduleDateLayout = "2006-01-02"
	scheduleTimeLayout = "15:04"
)

// BuildSchedule derives a lesson's end date and its weekly sessions.
// One session is produced per week offset 0..weeks-1, starting at start's time of day in loc
// and lasting hours of wall-clock time, so DST shifts never move a session's end.
// Sessions that would run past midnight are rejected.
func BuildSchedule(start time.Time, weeks, hours int, loc *time.Location) (time.Time, []models.LessonDay, error) {
	if loc == nil {
		loc = time.UTC
	}
	if weeks < 0 || hours < 0 {
		return time.Time{}, nil, appErrors.Clone(appErrors.ErrValidation, "lesson durations must not be negative")
	}

	local := start.In(loc)
	// Wall-clock arithmetic runs in UTC, which has no offset changes.
	wall := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
	length := time.Duration(hours) * time.Hour
	if !sameDay(wall, wall.Add(length)) {
		return time.Time{}, nil, appErrors.Clone(appErrors.ErrValidation, "lesson session must end on the same day")
	}

	days := make([]models.LessonDay, 0, weeks)
	for week := 0; week < weeks; week++ {
		day := wall.AddDate(0, 0, 7*week)
		days = append(days, models.LessonDay{
			Date:      day.Format(scheduleDateLayout),
			StartTime: day.Format(scheduleTimeLayout),
			EndTime:   day.Add(length).Format(scheduleTimeLayout),
		})
	}

	return local.AddDate(0, 0, 7*weeks), days, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
