package service_test

import (
	"testing"
	"time"

	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/lifecycle"
	"github.com/mtlprog/worklog/internal/service"
	"github.com/stretchr/testify/assert"
)

func fixedMachineFunc(clock *time.Time) *lifecycle.Machine {
	return lifecycle.NewMachine(func() time.Time { return *clock })
}

func TestTimeRemaining(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "2d 3h", service.TimeRemaining(now.Add(51*time.Hour), now))
	assert.Equal(t, "5h", service.TimeRemaining(now.Add(5*time.Hour+10*time.Minute), now))
	assert.Equal(t, "20m", service.TimeRemaining(now.Add(20*time.Minute), now))
	assert.Equal(t, "overdue", service.TimeRemaining(now.Add(-time.Minute), now))
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	open := &domain.Task{Status: domain.TaskStatusInProgress, DueDate: &past}
	assert.True(t, service.IsOverdue(open, now))

	done := &domain.Task{Status: domain.TaskStatusCompleted, DueDate: &past}
	assert.False(t, service.IsOverdue(done, now))

	assert.False(t, service.IsOverdue(&domain.Task{Status: domain.TaskStatusPending}, now))
}
