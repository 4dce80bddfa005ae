package productivity

import (
	"time"

	"github.com/benvon/taskpulse/internal/models"
)

// LookbackDays bounds how far back a streak is searched
const LookbackDays = 30

// Streak counts consecutive qualifying days ending today, or ending yesterday
// when today has no completions yet. history holds the user's most recent
// aggregate rows; today must already be truncated to a calendar day.
//
// A day without a row breaks the streak the same way a zero row does.
func Streak(history []models.DailyAggregate, today time.Time) int {
	if len(history) == 0 {
		return 0
	}

	byDay := make(map[string]models.DailyAggregate, len(history))
	for _, row := range history {
		byDay[models.DayKey(row.Day)] = row
	}

	anchor := today
	if row, ok := byDay[models.DayKey(today)]; !ok || !row.Qualifies() {
		anchor = today.AddDate(0, 0, -1)
	}

	streak := 0
	for i := 0; i < LookbackDays; i++ {
		day := anchor.AddDate(0, 0, -i)
		row, ok := byDay[models.DayKey(day)]
		if !ok || !row.Qualifies() {
			break
		}
		streak++
	}
	return streak
}
