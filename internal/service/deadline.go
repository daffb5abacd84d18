package service

import (
	"fmt"
	"time"

	"github.com/mtlprog/worklog/internal/domain"
)

// DueReminderWindow is how far ahead due reminders look.
const DueReminderWindow = 72 * time.Hour

// IsOverdue reports whether an open task is past its due date.
func IsOverdue(task *domain.Task, now time.Time) bool {
	if task.DueDate == nil || task.Status.IsTerminal() {
		return false
	}
	return task.DueDate.Before(now)
}

// TimeRemaining formats the time left until due in days and hours.
// Past due dates yield "overdue".
func TimeRemaining(due, now time.Time) string {
	left := due.Sub(now)
	if left <= 0 {
		return "overdue"
	}
	days := int(left / (24 * time.Hour))
	hours := int((left % (24 * time.Hour)) / time.Hour)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", int(left/time.Minute))
	}
}
