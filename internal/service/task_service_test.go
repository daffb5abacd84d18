package service_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/worklog/internal/database"
	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/lifecycle"
	"github.com/mtlprog/worklog/internal/repository"
	"github.com/mtlprog/worklog/internal/service"
	"github.com/stretchr/testify/suite"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Publish(events []domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, events...)
}

func (n *recordingNotifier) kinds() []domain.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]domain.EventKind, 0, len(n.events))
	for _, e := range n.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// TaskServiceTestSuite is the test suite for TaskService.
type TaskServiceTestSuite struct {
	suite.Suite
	pool        *pgxpool.Pool
	taskService *service.TaskService
	taskRepo    *repository.TaskRepository
	taskLogRepo *repository.TaskLogRepository
	workLogRepo *repository.WorkLogRepository
	notifier    *recordingNotifier
	now         time.Time

	// Test fixtures
	teamID  int64
	adminID int64
	aliceID int64
	bobID   int64
	eveID   int64
}

// SetupSuite runs once before all tests.
func (s *TaskServiceTestSuite) SetupSuite() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		s.T().Skip("DATABASE_URL is not set")
	}

	ctx := context.Background()

	db, err := database.New(ctx, databaseURL)
	s.Require().NoError(err, "failed to connect to database")
	s.pool = db.Pool()

	err = database.RunMigrations(ctx, s.pool)
	s.Require().NoError(err, "failed to run migrations")

	s.taskRepo = repository.NewTaskRepository(s.pool)
	s.taskLogRepo = repository.NewTaskLogRepository(s.pool)
	s.workLogRepo = repository.NewWorkLogRepository(s.pool)
}

// SetupTest runs before each test.
func (s *TaskServiceTestSuite) SetupTest() {
	ctx := context.Background()

	_, err := s.pool.Exec(ctx, `TRUNCATE users, teams, team_members, tasks, task_logs,
		task_status_changes, task_comments, work_logs, messages RESTART IDENTITY CASCADE`)
	s.Require().NoError(err, "failed to truncate tables")

	s.Require().NoError(s.pool.QueryRow(ctx,
		`INSERT INTO teams (name) VALUES ('Platform') RETURNING id`).Scan(&s.teamID))

	s.adminID = s.createUser(ctx, "admin", domain.TeamRoleAdmin)
	s.aliceID = s.createUser(ctx, "alice", domain.TeamRoleMember)
	s.bobID = s.createUser(ctx, "bob", domain.TeamRoleMember)
	s.Require().NoError(s.pool.QueryRow(ctx,
		`INSERT INTO users (username, token) VALUES ('eve', 'token-eve') RETURNING id`).Scan(&s.eveID))

	s.now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s.notifier = &recordingNotifier{}
	machine := lifecycle.NewMachine(func() time.Time { return s.now })

	s.taskService = service.NewTaskService(
		s.pool,
		machine,
		s.taskRepo,
		s.taskLogRepo,
		s.workLogRepo,
		repository.NewTeamRepository(s.pool),
		s.notifier,
	)
}

// TearDownSuite runs once after all tests.
func (s *TaskServiceTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *TaskServiceTestSuite) createUser(ctx context.Context, name string, role domain.TeamRole) int64 {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, token) VALUES ($1, $2) RETURNING id`,
		name, "token-"+name,
	).Scan(&id)
	s.Require().NoError(err)

	_, err = s.pool.Exec(ctx,
		`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, $3)`,
		s.teamID, id, role,
	)
	s.Require().NoError(err)
	return id
}

func (s *TaskServiceTestSuite) createTask(ctx context.Context, title string) *domain.Task {
	task, err := s.taskService.CreateTask(ctx, s.adminID, lifecycle.CreateInput{
		Title:  title,
		TeamID: s.teamID,
	})
	s.Require().NoError(err)
	return task
}

func (s *TaskServiceTestSuite) auditCounts(ctx context.Context, taskID int64) (int, int) {
	logs, changes, err := s.taskLogRepo.CountForTask(ctx, taskID)
	s.Require().NoError(err)
	return logs, changes
}

func (s *TaskServiceTestSuite) TestCreateTask_WritesAuditRow() {
	ctx := context.Background()

	task := s.createTask(ctx, "Write release notes")
	s.NotZero(task.ID)
	s.Equal(domain.TaskStatusPending, task.Status)
	s.Equal(domain.TaskPriorityMedium, task.Priority)

	logs, changes := s.auditCounts(ctx, task.ID)
	s.Equal(1, logs)
	s.Equal(0, changes)
	s.Equal([]domain.EventKind{domain.EventTaskCreated}, s.notifier.kinds())
}

func (s *TaskServiceTestSuite) TestCreateTask_NonMember() {
	ctx := context.Background()

	_, err := s.taskService.CreateTask(ctx, s.eveID, lifecycle.CreateInput{Title: "x", TeamID: s.teamID})
	s.ErrorIs(err, domain.ErrNotTeamMember)
}

func (s *TaskServiceTestSuite) TestQuickCreate_MemberBecomesAssignee() {
	ctx := context.Background()

	task, err := s.taskService.QuickCreateTask(ctx, s.aliceID, "Fix login", domain.TaskPriorityHigh, 0)
	s.Require().NoError(err)
	s.Equal(s.teamID, task.TeamID)
	s.Require().NotNil(task.AssigneeID)
	s.Equal(s.aliceID, *task.AssigneeID)
	s.Equal(domain.TaskStatusAssigned, task.Status)

	task, err = s.taskService.QuickCreateTask(ctx, s.adminID, "Plan sprint", "", 0)
	s.Require().NoError(err)
	s.Nil(task.AssigneeID)
	s.Equal(domain.TaskStatusPending, task.Status)
}

func (s *TaskServiceTestSuite) TestAssignStartComplete_TracksHours() {
	ctx := context.Background()
	task := s.createTask(ctx, "Migrate billing")

	assigned, err := s.taskService.AssignTask(ctx, task.ID, s.adminID, s.aliceID)
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusAssigned, assigned.Status)

	started, err := s.taskService.StartTask(ctx, task.ID, s.aliceID)
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusInProgress, started.Status)
	s.Require().NotNil(started.StartedAt)

	s.now = s.now.Add(2 * time.Hour)
	completed, err := s.taskService.CompleteTask(ctx, task.ID, s.aliceID)
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusCompleted, completed.Status)
	s.InDelta(2.0, completed.ActualHours, 1e-6)

	stored, err := s.taskRepo.GetByID(ctx, task.ID)
	s.Require().NoError(err)
	s.InDelta(2.0, stored.ActualHours, 1e-6)
	s.NotNil(stored.CompletedAt)

	changes, err := s.taskLogRepo.ListStatusChanges(ctx, task.ID, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(changes, 3)
	s.Equal(domain.TaskStatusInProgress, changes[0].OldStatus)
	s.Equal(domain.TaskStatusCompleted, changes[0].NewStatus)
	s.Equal(domain.TaskStatusPending, changes[2].OldStatus)
	s.Equal(domain.ReasonAutoCorrection, changes[2].Reason)

	workLogs, err := s.workLogRepo.ListByTask(ctx, task.ID)
	s.Require().NoError(err)
	s.Require().Len(workLogs, 1)
	s.Equal(s.aliceID, workLogs[0].UserID)
	s.Equal(domain.WorkStatusCompleted, workLogs[0].WorkStatus)
	s.InDelta(2.0, workLogs[0].Duration, 1e-6)
	s.Equal(100, workLogs[0].ProgressPercentage)
}

func (s *TaskServiceTestSuite) TestStartTask_OnlyAssignee() {
	ctx := context.Background()
	task := s.createTask(ctx, "Rotate keys")

	_, err := s.taskService.AssignTask(ctx, task.ID, s.adminID, s.aliceID)
	s.Require().NoError(err)

	_, err = s.taskService.StartTask(ctx, task.ID, s.bobID)
	s.ErrorIs(err, domain.ErrNotAssignee)
}

func (s *TaskServiceTestSuite) TestAssignTask_NonMemberAssignee() {
	ctx := context.Background()
	task := s.createTask(ctx, "Rotate keys")

	_, err := s.taskService.AssignTask(ctx, task.ID, s.adminID, s.eveID)
	s.ErrorIs(err, domain.ErrValidation)
}

func (s *TaskServiceTestSuite) TestApproveCompleted_LeavesNoTrace() {
	ctx := context.Background()
	task := s.createTask(ctx, "Ship it")

	_, err := s.taskService.AssignTask(ctx, task.ID, s.adminID, s.aliceID)
	s.Require().NoError(err)
	_, err = s.taskService.StartTask(ctx, task.ID, s.aliceID)
	s.Require().NoError(err)
	_, err = s.taskService.CompleteTask(ctx, task.ID, s.aliceID)
	s.Require().NoError(err)

	logsBefore, changesBefore := s.auditCounts(ctx, task.ID)

	_, err = s.taskService.ApproveTask(ctx, task.ID, s.adminID, "")
	s.ErrorIs(err, domain.ErrInvalidTransition)

	logsAfter, changesAfter := s.auditCounts(ctx, task.ID)
	s.Equal(logsBefore, logsAfter)
	s.Equal(changesBefore, changesAfter)
}

func (s *TaskServiceTestSuite) TestRejectAndResubmit() {
	ctx := context.Background()
	task := s.createTask(ctx, "Write docs")

	_, err := s.taskService.AssignTask(ctx, task.ID, s.adminID, s.aliceID)
	s.Require().NoError(err)
	_, err = s.taskService.StartTask(ctx, task.ID, s.aliceID)
	s.Require().NoError(err)
	_, err = s.taskService.SubmitReview(ctx, task.ID, s.aliceID, "ready")
	s.Require().NoError(err)

	_, err = s.taskService.RejectTask(ctx, task.ID, s.bobID, "no")
	s.ErrorIs(err, domain.ErrForbidden)

	rejected, err := s.taskService.RejectTask(ctx, task.ID, s.adminID, "needs examples")
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusInProgress, rejected.Status)

	changes, err := s.taskLogRepo.ListStatusChanges(ctx, task.ID, 1, 0)
	s.Require().NoError(err)
	s.Require().Len(changes, 1)
	s.Equal(domain.TaskStatusReview, changes[0].OldStatus)
	s.Equal("needs examples", changes[0].Reason)

	_, err = s.taskService.SubmitReview(ctx, task.ID, s.aliceID, "")
	s.Require().NoError(err)
	s.now = s.now.Add(90 * time.Minute)
	approved, err := s.taskService.ApproveTask(ctx, task.ID, s.adminID, "great")
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusCompleted, approved.Status)
	s.InDelta(1.5, approved.ActualHours, 1e-6)
}

func (s *TaskServiceTestSuite) TestUpdateTask_AutoCorrectsStatus() {
	ctx := context.Background()
	task := s.createTask(ctx, "Refactor auth")

	updated, err := s.taskService.UpdateTask(ctx, task.ID, s.adminID, lifecycle.PatchInput{
		Assignee: &lifecycle.AssigneeChange{ID: domain.Int64Ptr(s.bobID)},
	})
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusAssigned, updated.Status)

	updated, err = s.taskService.UpdateTask(ctx, task.ID, s.adminID, lifecycle.PatchInput{
		Assignee: &lifecycle.AssigneeChange{},
	})
	s.Require().NoError(err)
	s.Nil(updated.AssigneeID)
	s.Equal(domain.TaskStatusPending, updated.Status)

	_, changes := s.auditCounts(ctx, task.ID)
	s.Equal(2, changes)
}

func (s *TaskServiceTestSuite) TestUpdateTask_ForbiddenForOutsider() {
	ctx := context.Background()
	task := s.createTask(ctx, "Refactor auth")
	title := "Hijacked"

	_, err := s.taskService.UpdateTask(ctx, task.ID, s.bobID, lifecycle.PatchInput{Title: &title})
	s.ErrorIs(err, domain.ErrForbidden)
}

func (s *TaskServiceTestSuite) TestUpdateTask_StatusOutOfReviewNeedsReviewer() {
	ctx := context.Background()
	task := s.createTask(ctx, "Rotate secrets")

	_, err := s.taskService.AssignTask(ctx, task.ID, s.adminID, s.aliceID)
	s.Require().NoError(err)
	_, err = s.taskService.StartTask(ctx, task.ID, s.aliceID)
	s.Require().NoError(err)
	_, err = s.taskService.SubmitReview(ctx, task.ID, s.aliceID, "")
	s.Require().NoError(err)

	completed := domain.TaskStatusCompleted
	_, err = s.taskService.UpdateTask(ctx, task.ID, s.aliceID, lifecycle.PatchInput{Status: &completed})
	s.ErrorIs(err, domain.ErrForbidden)

	current, err := s.taskRepo.GetByID(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusReview, current.Status)

	// other fields stay editable by the assignee during review
	title := "Rotate secrets (prod)"
	_, err = s.taskService.UpdateTask(ctx, task.ID, s.aliceID, lifecycle.PatchInput{Title: &title})
	s.Require().NoError(err)

	updated, err := s.taskService.UpdateTask(ctx, task.ID, s.adminID, lifecycle.PatchInput{Status: &completed})
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusCompleted, updated.Status)
}

func (s *TaskServiceTestSuite) TestAddComment() {
	ctx := context.Background()
	task := s.createTask(ctx, "Review PR")

	comment, err := s.taskService.AddComment(ctx, task.ID, s.bobID, "  looks good  ")
	s.Require().NoError(err)
	s.NotZero(comment.ID)
	s.Equal("looks good", comment.Content)

	logs, err := s.taskLogRepo.ListLogs(ctx, task.ID, 1, 0)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal(domain.LogActionCommentAdded, logs[0].Action)

	_, err = s.taskService.AddComment(ctx, task.ID, s.bobID, "   ")
	s.ErrorIs(err, domain.ErrValidation)
}

func (s *TaskServiceTestSuite) TestActivity_MergesStreams() {
	ctx := context.Background()
	task := s.createTask(ctx, "Merge streams")

	_, err := s.taskService.ClaimTask(ctx, task.ID, s.aliceID)
	s.Require().NoError(err)

	entries, err := s.taskService.TaskActivity(ctx, task.ID, s.bobID, 0, 0)
	s.Require().NoError(err)
	// created + claimed + status_change logs and one status change row
	s.Len(entries, 4)

	_, err = s.taskService.TaskActivity(ctx, task.ID, s.eveID, 0, 0)
	s.ErrorIs(err, domain.ErrNotTeamMember)
}

// TestConcurrentClaims tests that exactly one of several racing claims wins.
func (s *TaskServiceTestSuite) TestConcurrentClaims() {
	ctx := context.Background()
	task := s.createTask(ctx, "Hot potato")

	claimers := []int64{s.aliceID, s.bobID, s.adminID}
	var wg sync.WaitGroup
	results := make(chan error, len(claimers))

	for _, id := range claimers {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := s.taskService.ClaimTask(ctx, task.ID, userID)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		s.ErrorIs(err, domain.ErrTaskAlreadyClaimed)
	}
	s.Equal(1, successes)

	_, changes := s.auditCounts(ctx, task.ID)
	s.Equal(1, changes)
}

func (s *TaskServiceTestSuite) TestDeletedTaskIsNotFound() {
	ctx := context.Background()
	task := s.createTask(ctx, "Gone")

	_, err := s.pool.Exec(ctx, `UPDATE tasks SET is_deleted = true WHERE id = $1`, task.ID)
	s.Require().NoError(err)

	_, err = s.taskService.ClaimTask(ctx, task.ID, s.aliceID)
	s.ErrorIs(err, domain.ErrTaskNotFound)

	_, err = s.taskService.GetTask(ctx, task.ID, s.aliceID)
	s.ErrorIs(err, domain.ErrTaskNotFound)
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
