package dto_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/handler/dto"
	"github.com/stretchr/testify/assert"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrTaskNotFound, http.StatusNotFound, "TASK_NOT_FOUND"},
		{fmt.Errorf("get message 4: %w", domain.ErrMessageNotFound), http.StatusNotFound, "MESSAGE_NOT_FOUND"},
		{domain.ErrTaskAlreadyClaimed, http.StatusConflict, "TASK_ALREADY_CLAIMED"},
		{fmt.Errorf("%w: COMPLETED -> PENDING", domain.ErrInvalidTransition), http.StatusConflict, "INVALID_TRANSITION"},
		{domain.ErrNotAssignee, http.StatusForbidden, "NOT_ASSIGNEE"},
		{domain.ErrNotTeamMember, http.StatusForbidden, "NOT_TEAM_MEMBER"},
		{domain.ErrEmptyReason, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{domain.ErrInvalidPriority, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{domain.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code, _ := dto.MapDomainError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestMapDomainError_HidesInternalMessage(t *testing.T) {
	_, _, msg := dto.MapDomainError(errors.New("pq: relation does not exist"))
	assert.Equal(t, "Internal server error", msg)
}
