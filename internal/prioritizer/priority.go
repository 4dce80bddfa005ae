// Package prioritizer re-ranks a user's open tasks.
//
// The heuristic strategy is deterministic: given the same tasks and the same
// instant it always produces the same priorities. The assisted strategy asks
// a language model and is only offered when one is configured.
package prioritizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/benvon/taskpulse/internal/models"
)

const (
	workdayStartHour = 9
	workdayEndHour   = 17
)

var workCategoryTokens = []string{"work", "professional", "business", "project"}

// ComputePriority returns the priority a task should have at now
func ComputePriority(task models.Task, now time.Time) int {
	p, _ := computePriority(task, now)
	return p
}

func computePriority(task models.Task, now time.Time) (int, string) {
	p := task.Priority
	var reasons []string

	if task.DueDate != nil {
		daysUntilDue := task.DueDate.Sub(now).Hours() / 24
		switch {
		case daysUntilDue < 0:
			p = models.PriorityUrgent
			reasons = append(reasons, "overdue")
		case daysUntilDue <= 1:
			p = max(p, models.PriorityHigh)
			reasons = append(reasons, "due within a day")
		case daysUntilDue <= 3:
			p = max(p, models.PriorityMedium)
			reasons = append(reasons, "due within three days")
		}
	}

	if inWorkHours(now) && isWorkCategory(task.CategoryName()) {
		p = max(p, models.PriorityMedium)
		reasons = append(reasons, "work category during work hours")
	}

	if !models.ValidPriority(p) {
		panic(fmt.Sprintf("prioritizer: computed priority %d out of range for task %s", p, task.ID))
	}
	return p, strings.Join(reasons, ", ")
}

func inWorkHours(now time.Time) bool {
	h := now.Hour()
	return h >= workdayStartHour && h <= workdayEndHour
}

func isWorkCategory(name string) bool {
	name = strings.ToLower(name)
	for _, token := range workCategoryTokens {
		if strings.Contains(name, token) {
			return true
		}
	}
	return false
}
