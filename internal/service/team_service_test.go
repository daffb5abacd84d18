package service_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/worklog/internal/database"
	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/notification"
	"github.com/mtlprog/worklog/internal/repository"
	"github.com/mtlprog/worklog/internal/service"
	"github.com/stretchr/testify/suite"
)

type recordingMembership struct {
	mu      sync.Mutex
	changes []notification.MembershipChange
}

func (r *recordingMembership) MembershipChanged(c notification.MembershipChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

// TeamServiceTestSuite is the test suite for TeamService.
type TeamServiceTestSuite struct {
	suite.Suite
	pool     *pgxpool.Pool
	teamRepo *repository.TeamRepository
	svc      *service.TeamService
	notifier *recordingMembership

	teamID  int64
	adminID int64
	userID  int64
}

func (s *TeamServiceTestSuite) SetupSuite() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		s.T().Skip("DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, databaseURL)
	s.Require().NoError(err, "failed to connect to database")
	s.pool = db.Pool()
	s.Require().NoError(database.RunMigrations(ctx, s.pool))

	s.teamRepo = repository.NewTeamRepository(s.pool)
}

func (s *TeamServiceTestSuite) SetupTest() {
	ctx := context.Background()

	_, err := s.pool.Exec(ctx, `TRUNCATE users, teams, team_members, tasks, task_logs,
		task_status_changes, task_comments, work_logs, messages RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)

	s.Require().NoError(s.pool.QueryRow(ctx,
		`INSERT INTO teams (name) VALUES ('Platform') RETURNING id`).Scan(&s.teamID))
	s.Require().NoError(s.pool.QueryRow(ctx,
		`INSERT INTO users (username, token) VALUES ('admin', 'token-admin') RETURNING id`).Scan(&s.adminID))
	s.Require().NoError(s.pool.QueryRow(ctx,
		`INSERT INTO users (username, token) VALUES ('carol', 'token-carol') RETURNING id`).Scan(&s.userID))
	_, err = s.pool.Exec(ctx,
		`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, 'admin')`, s.teamID, s.adminID)
	s.Require().NoError(err)

	s.notifier = &recordingMembership{}
	s.svc = service.NewTeamService(s.teamRepo, repository.NewUserRepository(s.pool), s.notifier)
}

func (s *TeamServiceTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *TeamServiceTestSuite) TestAddAndRemoveMember() {
	ctx := context.Background()

	s.Require().NoError(s.svc.AddMember(ctx, s.teamID, s.adminID, s.userID, ""))
	member, err := s.teamRepo.IsMember(ctx, s.teamID, s.userID)
	s.Require().NoError(err)
	s.True(member)

	err = s.svc.AddMember(ctx, s.teamID, s.adminID, s.userID, domain.TeamRoleMember)
	s.ErrorIs(err, domain.ErrValidation)

	s.Require().NoError(s.svc.RemoveMember(ctx, s.teamID, s.userID, s.userID))
	member, err = s.teamRepo.IsMember(ctx, s.teamID, s.userID)
	s.Require().NoError(err)
	s.False(member)

	s.Require().Len(s.notifier.changes, 2)
	s.Equal(domain.NotifyTeamMemberJoined, s.notifier.changes[0].Kind)
	s.Equal("Platform", s.notifier.changes[0].Team.Name)
	s.Equal(domain.NotifyTeamMemberLeft, s.notifier.changes[1].Kind)
}

func (s *TeamServiceTestSuite) TestOnlyAdminsAddMembers() {
	ctx := context.Background()

	err := s.svc.AddMember(ctx, s.teamID, s.userID, s.userID, domain.TeamRoleMember)
	s.ErrorIs(err, domain.ErrNotTeamMember)

	s.Require().NoError(s.svc.AddMember(ctx, s.teamID, s.adminID, s.userID, domain.TeamRoleMember))
	err = s.svc.RemoveMember(ctx, s.teamID, s.userID, s.adminID)
	s.ErrorIs(err, domain.ErrForbidden)
	s.Len(s.notifier.changes, 1)
}

func (s *TeamServiceTestSuite) TestAddMember_Validation() {
	ctx := context.Background()

	s.ErrorIs(s.svc.AddMember(ctx, s.teamID, s.adminID, s.userID, "owner"), domain.ErrValidation)
	s.ErrorIs(s.svc.AddMember(ctx, 999, s.adminID, s.userID, ""), domain.ErrTeamNotFound)
	s.ErrorIs(s.svc.AddMember(ctx, s.teamID, s.adminID, 999, ""), domain.ErrUserNotFound)

	_, err := s.pool.Exec(ctx, `UPDATE users SET is_active = false WHERE id = $1`, s.userID)
	s.Require().NoError(err)
	s.ErrorIs(s.svc.AddMember(ctx, s.teamID, s.adminID, s.userID, ""), domain.ErrUserInactive)
}

func TestTeamServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TeamServiceTestSuite))
}
