package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/notification"
	"github.com/mtlprog/worklog/internal/repository"
)

// MembershipNotifier announces team joins and leaves. It must not block.
type MembershipNotifier interface {
	MembershipChanged(c notification.MembershipChange)
}

type noopMembershipNotifier struct{}

func (noopMembershipNotifier) MembershipChanged(notification.MembershipChange) {}

// TeamService manages team membership.
type TeamService struct {
	teamRepo *repository.TeamRepository
	userRepo *repository.UserRepository
	access   *Access
	notifier MembershipNotifier
}

// NewTeamService creates a new TeamService. A nil notifier drops announcements.
func NewTeamService(teamRepo *repository.TeamRepository, userRepo *repository.UserRepository, notifier MembershipNotifier) *TeamService {
	if notifier == nil {
		notifier = noopMembershipNotifier{}
	}
	return &TeamService{
		teamRepo: teamRepo,
		userRepo: userRepo,
		access:   NewAccess(teamRepo),
		notifier: notifier,
	}
}

func (s *TeamService) requireAdmin(ctx context.Context, teamID, actorID int64) error {
	role, err := s.access.RequireMember(ctx, teamID, actorID)
	if err != nil {
		return err
	}
	if role != domain.TeamRoleAdmin {
		return fmt.Errorf("%w: only a team admin can manage members of team %d", domain.ErrForbidden, teamID)
	}
	return nil
}

// AddMember adds an active user to the team. Only team admins may do this.
func (s *TeamService) AddMember(ctx context.Context, teamID, actorID, userID int64, role domain.TeamRole) error {
	if role == "" {
		role = domain.TeamRoleMember
	}
	if !role.IsValid() {
		return fmt.Errorf("%w: invalid role %q", domain.ErrValidation, role)
	}

	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, teamID, actorID); err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return fmt.Errorf("%w: user %d", domain.ErrUserInactive, userID)
	}

	if err := s.teamRepo.AddMember(ctx, teamID, userID, role); err != nil {
		return err
	}

	slog.Info("team member added", "team_id", teamID, "user_id", userID, "actor_id", actorID, "role", role)

	s.notifier.MembershipChanged(notification.MembershipChange{
		Kind:     domain.NotifyTeamMemberJoined,
		Team:     *team,
		MemberID: userID,
		ActorID:  actorID,
	})
	return nil
}

// RemoveMember removes a user from the team. Admins may remove anyone;
// members may only leave themselves.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, actorID, userID int64) error {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if actorID != userID {
		if err := s.requireAdmin(ctx, teamID, actorID); err != nil {
			return err
		}
	}

	if err := s.teamRepo.RemoveMember(ctx, teamID, userID); err != nil {
		return err
	}

	slog.Info("team member removed", "team_id", teamID, "user_id", userID, "actor_id", actorID)

	s.notifier.MembershipChanged(notification.MembershipChange{
		Kind:     domain.NotifyTeamMemberLeft,
		Team:     *team,
		MemberID: userID,
		ActorID:  actorID,
	})
	return nil
}
