package handler

import (
	"net/http"

	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/handler/dto"
)

// handleAddMember adds a user to a team.
// @Summary Add team member
// @Description Team admins only. Members of the team are notified.
// @Tags teams
// @Accept json
// @Param id path int true "Team ID"
// @Param request body dto.AddMemberRequest true "Member to add"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /teams/{id}/members [post]
func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	teamID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	var req dto.AddMemberRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.UserID <= 0 {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "user_id is required")
		return
	}

	if err := h.teamService.AddMember(r.Context(), teamID, userID, req.UserID, domain.TeamRole(req.Role)); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveMember removes a user from a team.
// @Summary Remove team member
// @Description Team admins may remove anyone; members may remove themselves.
// @Tags teams
// @Param id path int true "Team ID"
// @Param user_id path int true "User ID"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /teams/{id}/members/{user_id} [delete]
func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	teamID, ok := extractID(w, r, "id")
	if !ok {
		return
	}
	memberID, ok := extractID(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.teamService.RemoveMember(r.Context(), teamID, userID, memberID); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
