package reminder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/notification"
	"github.com/mtlprog/worklog/internal/reminder"
	"github.com/mtlprog/worklog/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeTasks struct {
	due     []*domain.Task
	dueErr  error
	summary repository.TeamSummaryResult
	from    time.Time
	until   time.Time
}

func (f *fakeTasks) FindDueSoon(_ context.Context, now, until time.Time) ([]*domain.Task, error) {
	f.from, f.until = now, until
	return f.due, f.dueErr
}

func (f *fakeTasks) TeamSummary(context.Context, int64, time.Time, time.Time) (*repository.TeamSummaryResult, error) {
	s := f.summary
	return &s, nil
}

type fakeTeams struct {
	teams   []*domain.Team
	admins  map[int64][]int64
	missing map[int64][]int64
}

func (f *fakeTeams) List(context.Context) ([]*domain.Team, error) { return f.teams, nil }

func (f *fakeTeams) AdminIDs(_ context.Context, teamID int64) ([]int64, error) {
	return f.admins[teamID], nil
}

func (f *fakeTeams) ActiveMembersWithoutWorkLog(_ context.Context, teamID int64, _ time.Time) ([]int64, error) {
	return f.missing[teamID], nil
}

type fakeDispatcher struct {
	sent   []notification.Notification
	onSend func(notification.Notification)
}

func (f *fakeDispatcher) Dispatch(_ context.Context, n notification.Notification) (*domain.Message, error) {
	if len(n.Recipients) == 0 {
		return nil, nil
	}
	f.sent = append(f.sent, n)
	if f.onSend != nil {
		f.onSend(n)
	}
	return &domain.Message{ID: int64(len(f.sent)), Recipients: n.Recipients}, nil
}

func (f *fakeDispatcher) kinds() []domain.NotificationKind {
	var kinds []domain.NotificationKind
	for _, n := range f.sent {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

// ReminderTestSuite is the test suite for the reminder Service.
type ReminderTestSuite struct {
	suite.Suite
	now        time.Time
	tasks      *fakeTasks
	teams      *fakeTeams
	dispatcher *fakeDispatcher
	svc        *reminder.Service
}

func (s *ReminderTestSuite) SetupTest() {
	s.now = time.Date(2025, 6, 2, 17, 30, 0, 0, time.UTC)
	s.tasks = &fakeTasks{}
	s.teams = &fakeTeams{
		teams:   []*domain.Team{{ID: 1, Name: "Platform"}, {ID: 2, Name: "Mobile"}},
		admins:  map[int64][]int64{1: {10}},
		missing: map[int64][]int64{1: {3, 4}, 2: {4, 5}},
	}
	s.dispatcher = &fakeDispatcher{}
	s.svc = reminder.NewService(s.tasks, s.teams, s.dispatcher, func() time.Time { return s.now })
}

func (s *ReminderTestSuite) TestRunOnce_SequentialCategories() {
	due := s.now.Add(26 * time.Hour)
	s.tasks.due = []*domain.Task{
		{ID: 8, Title: "Renew cert", TeamID: 1, AssigneeID: domain.Int64Ptr(3), DueDate: &due},
	}

	s.Require().NoError(s.svc.RunOnce(context.Background()))

	s.Equal([]domain.NotificationKind{
		domain.NotifyTaskDueReminder,
		domain.NotifyWorklogReminder,
		domain.NotifyDailySummary,
	}, s.dispatcher.kinds())
	s.Equal(s.now.Add(72*time.Hour), s.tasks.until)
}

func (s *ReminderTestSuite) TestRun_FirstPassIsImmediate() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.dispatcher.onSend = func(n notification.Notification) {
		if n.Kind == domain.NotifyDailySummary {
			cancel()
		}
	}

	done := make(chan error, 1)
	go func() { done <- s.svc.Run(ctx, time.Hour) }()

	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("no reminder pass before the first tick")
	}
	s.Contains(s.dispatcher.kinds(), domain.NotifyWorklogReminder)
}

func (s *ReminderTestSuite) TestDueReminder_Vars() {
	due := s.now.Add(26 * time.Hour)
	s.tasks.due = []*domain.Task{
		{ID: 8, Title: "Renew cert", TeamID: 1, AssigneeID: domain.Int64Ptr(3), DueDate: &due},
		{ID: 9, Title: "Orphan", TeamID: 1, DueDate: &due},
	}

	sent, err := s.svc.SendDueReminders(context.Background(), s.now)
	s.Require().NoError(err)
	s.Equal(1, sent)

	n := s.dispatcher.sent[0]
	s.Equal([]int64{3}, n.Recipients)
	s.Equal("1d 2h", n.Vars["time_remaining"])
	s.Equal("8", n.Vars["task_id"])
	s.Equal("2025-06-03 19:30 UTC", n.Vars["due_date"])
}

func (s *ReminderTestSuite) TestWorklogReminder_OneMessageDeduplicated() {
	sent, err := s.svc.SendWorklogReminders(context.Background(), s.now)
	s.Require().NoError(err)
	s.Equal(3, sent)

	s.Require().Len(s.dispatcher.sent, 1)
	s.Equal([]int64{3, 4, 5}, s.dispatcher.sent[0].Recipients)
	s.Equal("2025-06-02", s.dispatcher.sent[0].Vars["reminder_date"])
}

func (s *ReminderTestSuite) TestWorklogReminder_EveryoneLogged() {
	s.teams.missing = nil

	sent, err := s.svc.SendWorklogReminders(context.Background(), s.now)
	s.Require().NoError(err)
	s.Equal(0, sent)
	s.Empty(s.dispatcher.sent)
}

func (s *ReminderTestSuite) TestDailySummary_OnlyTeamsWithAdmins() {
	s.tasks.summary = repository.TeamSummaryResult{
		CompletedCount:  2,
		InProgressCount: 5,
		OverdueCount:    1,
		LoggedHours:     12.5,
	}

	sent, err := s.svc.SendDailySummaries(context.Background(), s.now)
	s.Require().NoError(err)
	s.Equal(1, sent)

	n := s.dispatcher.sent[0]
	s.Equal([]int64{10}, n.Recipients)
	s.Equal("Platform", n.Vars["team_name"])
	s.Equal("12.50", n.Vars["logged_hours"])
	s.Equal("2", n.Vars["completed_count"])
}

func (s *ReminderTestSuite) TestRunOnce_ContinuesAfterFailure() {
	s.tasks.dueErr = errors.New("db down")

	err := s.svc.RunOnce(context.Background())
	s.Error(err)
	s.Equal([]domain.NotificationKind{
		domain.NotifyWorklogReminder,
		domain.NotifyDailySummary,
	}, s.dispatcher.kinds())
}

func TestReminderTestSuite(t *testing.T) {
	suite.Run(t, new(ReminderTestSuite))
}

func TestRun_StopsOnCancel(t *testing.T) {
	svc := reminder.NewService(&fakeTasks{}, &fakeTeams{}, &fakeDispatcher{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reminder loop did not stop")
	}
}

func TestRun_RejectsNonPositiveInterval(t *testing.T) {
	svc := reminder.NewService(&fakeTasks{}, &fakeTeams{}, &fakeDispatcher{}, nil)
	assert.ErrorIs(t, svc.Run(context.Background(), 0), domain.ErrValidation)
}
