package domain

import "time"

// WorkStatus is the state of a work log entry.
type WorkStatus string

const (
	WorkStatusInProgress WorkStatus = "in_progress"
	WorkStatusCompleted  WorkStatus = "completed"
)

// WorkLog is a timestamped record of time spent by a user.
type WorkLog struct {
	ID                 int64
	UserID             int64
	TaskID             *int64
	ProjectID          *int64
	TeamID             *int64
	Content            string
	StartTime          time.Time
	EndTime            *time.Time
	Duration           float64
	WorkStatus         WorkStatus
	ProgressPercentage int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsOpen reports whether the entry has not been finalized yet.
func (w *WorkLog) IsOpen() bool {
	return w.EndTime == nil
}

// HoursBetween returns max(0, end-start) in hours.
func HoursBetween(start, end time.Time) float64 {
	d := end.Sub(start).Hours()
	if d < 0 {
		return 0
	}
	return d
}
