// Package productivity derives the daily productivity score and completion
// streak from a user's daily aggregate rows.
package productivity

import "math"

// Score weights
const (
	completionPoints     = 4
	completionRateWeight = 30
	streakPoints         = 2
	streakCap            = 20
	todayPoints          = 3
	todayCap             = 10
	maxScore             = 100
)

// ScoreInput holds the counters a score is derived from
type ScoreInput struct {
	TasksCompleted int
	TasksCreated   int
	StreakDays     int
	TodayCompleted int
}

// Score maps the day's counters to an integer in [0, 100].
// Negative inputs are treated as zero.
func Score(in ScoreInput) int {
	completed := nonNegative(in.TasksCompleted)
	created := nonNegative(in.TasksCreated)
	streak := nonNegative(in.StreakDays)
	today := nonNegative(in.TodayCompleted)

	completionScore := float64(completed * completionPoints)

	rate := float64(completed) / float64(max(created, 1))
	completionRateScore := math.Min(rate, 1) * completionRateWeight

	consistencyScore := float64(min(streak*streakPoints, streakCap))
	todayScore := float64(min(today*todayPoints, todayCap))

	total := completionScore + completionRateScore + consistencyScore + todayScore
	return int(math.Round(math.Min(maxScore, total)))
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	// Large counters would overflow the multiplications above; anything past
	// this bound already saturates every term.
	if n > 1<<20 {
		return 1 << 20
	}
	return n
}
