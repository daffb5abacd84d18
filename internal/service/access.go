package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/lifecycle"
)

// MembershipChecker answers "what is user X's role in team Y".
// It returns an error wrapping domain.ErrNotTeamMember for non-members.
type MembershipChecker interface {
	Role(ctx context.Context, teamID, userID int64) (domain.TeamRole, error)
}

// Access handles permission checks for task operations.
type Access struct {
	teams MembershipChecker
}

// NewAccess creates a new Access.
func NewAccess(teams MembershipChecker) *Access {
	return &Access{teams: teams}
}

// RequireMember returns the actor's role or an ErrNotTeamMember error.
func (a *Access) RequireMember(ctx context.Context, teamID, actorID int64) (domain.TeamRole, error) {
	return a.teams.Role(ctx, teamID, actorID)
}

// requireAssignable checks that a prospective assignee belongs to the team.
func (a *Access) requireAssignable(ctx context.Context, teamID, assigneeID int64) error {
	_, err := a.teams.Role(ctx, teamID, assigneeID)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotTeamMember) {
		return fmt.Errorf("%w: assignee %d is not a member of team %d", domain.ErrValidation, assigneeID, teamID)
	}
	return err
}

// CanCreate validates that the actor may create a task in the team.
func (a *Access) CanCreate(ctx context.Context, teamID, actorID int64, assigneeID *int64) error {
	if _, err := a.RequireMember(ctx, teamID, actorID); err != nil {
		return err
	}
	if assigneeID != nil {
		return a.requireAssignable(ctx, teamID, *assigneeID)
	}
	return nil
}

// CanView validates that the actor may read the task and its history.
func (a *Access) CanView(ctx context.Context, task *domain.Task, actorID int64) error {
	_, err := a.RequireMember(ctx, task.TeamID, actorID)
	return err
}

// CanClaim validates that the actor may claim the task.
func (a *Access) CanClaim(ctx context.Context, task *domain.Task, actorID int64) error {
	return a.CanView(ctx, task, actorID)
}

// CanComment validates that the actor may comment on the task.
func (a *Access) CanComment(ctx context.Context, task *domain.Task, actorID int64) error {
	return a.CanView(ctx, task, actorID)
}

// CanAssign validates that the actor may assign the task to assigneeID.
func (a *Access) CanAssign(ctx context.Context, task *domain.Task, actorID, assigneeID int64) error {
	if _, err := a.RequireMember(ctx, task.TeamID, actorID); err != nil {
		return err
	}
	return a.requireAssignable(ctx, task.TeamID, assigneeID)
}

// CanWork validates that the actor is the assignee. Used for start,
// submit-review and complete.
func (a *Access) CanWork(task *domain.Task, actorID int64) error {
	if !task.IsAssignedTo(actorID) {
		return fmt.Errorf("%w: user %d is not the assignee of task %d", domain.ErrNotAssignee, actorID, task.ID)
	}
	return nil
}

// CanReview validates that the actor may approve or reject: a team admin or the creator.
func (a *Access) CanReview(ctx context.Context, task *domain.Task, actorID int64) error {
	role, err := a.RequireMember(ctx, task.TeamID, actorID)
	if err != nil {
		return err
	}
	if role != domain.TeamRoleAdmin && !task.IsCreatedBy(actorID) {
		return fmt.Errorf("%w: only a team admin or the creator can review task %d", domain.ErrForbidden, task.ID)
	}
	return nil
}

// CanPatch validates that the actor may edit the task: creator, assignee or
// team admin. Setting a status that leaves REVIEW also requires CanReview.
func (a *Access) CanPatch(ctx context.Context, task *domain.Task, actorID int64, in lifecycle.PatchInput) error {
	role, err := a.RequireMember(ctx, task.TeamID, actorID)
	if err != nil {
		return err
	}
	if role != domain.TeamRoleAdmin && !task.IsCreatedBy(actorID) && !task.IsAssignedTo(actorID) {
		return fmt.Errorf("%w: user %d cannot edit task %d", domain.ErrForbidden, actorID, task.ID)
	}
	if leavesReview(task, in) {
		if err := a.CanReview(ctx, task, actorID); err != nil {
			return err
		}
	}
	if in.Assignee != nil && in.Assignee.ID != nil {
		return a.requireAssignable(ctx, task.TeamID, *in.Assignee.ID)
	}
	return nil
}

// leavesReview reports whether the patch moves a task out of REVIEW by an
// explicit status, which is a review decision.
func leavesReview(task *domain.Task, in lifecycle.PatchInput) bool {
	return task.Status == domain.TaskStatusReview && in.Status != nil && *in.Status != domain.TaskStatusReview
}
