package notification_test

import (
	"context"
	"testing"

	"github.com/mtlprog/worklog/internal/dispatch"
	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inlineScheduler struct {
	names  []string
	reject bool
}

func (s *inlineScheduler) Schedule(name string, fn dispatch.Job) bool {
	if s.reject {
		return false
	}
	s.names = append(s.names, name)
	_ = fn(context.Background())
	return true
}

func TestPublisher_Publish(t *testing.T) {
	f := newRouterFixture()
	sched := &inlineScheduler{}
	p := notification.NewPublisher(f.router, sched)

	p.Publish(nil)
	assert.Empty(t, sched.names)

	p.Publish([]domain.Event{{
		Kind:    domain.EventTaskCommentAdded,
		TaskID:  2,
		ActorID: 7,
		Comment: "done?",
		Task:    domain.Task{ID: 2, Title: "Docs", TeamID: 1, CreatorID: 1},
	}})
	assert.Equal(t, []string{"task_events"}, sched.names)
	require.Len(t, f.messages.created, 1)
	assert.Equal(t, []int64{1, 8}, f.messages.created[0].Recipients)
	assert.Equal(t, "alice commented on task #2: done?", f.messages.created[0].Content)
}

func TestPublisher_DroppedJobDoesNotPanic(t *testing.T) {
	f := newRouterFixture()
	p := notification.NewPublisher(f.router, &inlineScheduler{reject: true})

	p.Publish([]domain.Event{{Kind: domain.EventTaskCreated, TaskID: 1}})
	p.MembershipChanged(notification.MembershipChange{Kind: domain.NotifyTeamMemberLeft})
	assert.Empty(t, f.messages.created)
}
