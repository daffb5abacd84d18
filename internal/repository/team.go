package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/worklog/internal/domain"
)

// TeamRepository answers membership and role questions about teams.
type TeamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository creates a new TeamRepository.
func NewTeamRepository(pool *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{pool: pool}
}

// GetByID retrieves a team by ID.
func (r *TeamRepository) GetByID(ctx context.Context, teamID int64) (*domain.Team, error) {
	query, args, err := psql.
		Select("id", "name").
		From("teams").
		Where(sq.Eq{"id": teamID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for team %d: %w", teamID, err)
	}

	var team domain.Team
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&team.ID, &team.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, fmt.Errorf("query team: %w", err)
	}

	return &team, nil
}

// List returns all teams ordered by ID.
func (r *TeamRepository) List(ctx context.Context) ([]*domain.Team, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM teams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	defer rows.Close()

	var teams []*domain.Team
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.ID, &team.Name); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, &team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return teams, nil
}

// Role returns the user's role in the team, or ErrNotTeamMember.
func (r *TeamRepository) Role(ctx context.Context, teamID, userID int64) (domain.TeamRole, error) {
	query, args, err := psql.
		Select("role").
		From("team_members").
		Where(sq.Eq{"team_id": teamID, "user_id": userID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build Role query: %w", err)
	}

	var role domain.TeamRole
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: user %d, team %d", domain.ErrNotTeamMember, userID, teamID)
		}
		return "", fmt.Errorf("query team role: %w", err)
	}

	return role, nil
}

// IsMember reports whether the user belongs to the team.
func (r *TeamRepository) IsMember(ctx context.Context, teamID, userID int64) (bool, error) {
	_, err := r.Role(ctx, teamID, userID)
	if errors.Is(err, domain.ErrNotTeamMember) {
		return false, nil
	}
	return err == nil, err
}

// IsAdmin reports whether the user is an admin of the team.
func (r *TeamRepository) IsAdmin(ctx context.Context, teamID, userID int64) (bool, error) {
	role, err := r.Role(ctx, teamID, userID)
	if errors.Is(err, domain.ErrNotTeamMember) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return role == domain.TeamRoleAdmin, nil
}

// MemberIDs returns the IDs of all members of the team.
func (r *TeamRepository) MemberIDs(ctx context.Context, teamID int64) ([]int64, error) {
	return r.memberIDs(ctx, sq.Eq{"team_id": teamID})
}

// AdminIDs returns the IDs of the team's admins.
func (r *TeamRepository) AdminIDs(ctx context.Context, teamID int64) ([]int64, error) {
	return r.memberIDs(ctx, sq.Eq{"team_id": teamID, "role": domain.TeamRoleAdmin})
}

func (r *TeamRepository) memberIDs(ctx context.Context, where sq.Eq) ([]int64, error) {
	query, args, err := psql.
		Select("user_id").
		From("team_members").
		Where(where).
		OrderBy("user_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build member query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query team members: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect team members: %w", err)
	}
	return ids, nil
}

// FirstTeamOf returns the team the user joined first.
func (r *TeamRepository) FirstTeamOf(ctx context.Context, userID int64) (int64, error) {
	query, args, err := psql.
		Select("team_id").
		From("team_members").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("joined_at ASC", "team_id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build FirstTeamOf query: %w", err)
	}

	var teamID int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&teamID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: user %d has not joined any team", domain.ErrValidation, userID)
		}
		return 0, fmt.Errorf("query first team: %w", err)
	}
	return teamID, nil
}

// ActiveMembersWithoutWorkLog returns active members of the team that have
// no work log starting on or after since.
func (r *TeamRepository) ActiveMembersWithoutWorkLog(ctx context.Context, teamID int64, since time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tm.user_id
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id AND u.is_active
		WHERE tm.team_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM work_logs w
			WHERE w.user_id = tm.user_id AND w.start_time >= $2
		  )
		ORDER BY tm.user_id
	`, teamID, since)
	if err != nil {
		return nil, fmt.Errorf("query members without work log: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect members without work log: %w", err)
	}
	return ids, nil
}

// AddMember adds the user to the team. Adding an existing member is a validation error.
func (r *TeamRepository) AddMember(ctx context.Context, teamID, userID int64, role domain.TeamRole) error {
	query, args, err := psql.
		Insert("team_members").
		Columns("team_id", "user_id", "role").
		Values(teamID, userID, role).
		Suffix("ON CONFLICT (team_id, user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build AddMember query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("add team member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d is already a member of team %d", domain.ErrValidation, userID, teamID)
	}
	return nil
}

// RemoveMember removes the user from the team.
func (r *TeamRepository) RemoveMember(ctx context.Context, teamID, userID int64) error {
	query, args, err := psql.
		Delete("team_members").
		Where(sq.Eq{"team_id": teamID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build RemoveMember query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("remove team member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d, team %d", domain.ErrNotTeamMember, userID, teamID)
	}
	return nil
}
