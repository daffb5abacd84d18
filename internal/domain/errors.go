package domain

import (
	"errors"
	"fmt"
)

// Domain-specific errors for business logic validation.
var (
	// Task errors
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskAlreadyClaimed = errors.New("task already claimed")
	ErrInvalidTransition  = errors.New("invalid status transition")

	// Permission errors
	ErrForbidden     = errors.New("forbidden")
	ErrNotTeamMember = errors.New("not a team member")
	ErrNotAssignee   = errors.New("not task assignee")

	// Identity errors
	ErrUserNotFound = errors.New("user not found")
	ErrUserInactive = errors.New("user is inactive")
	ErrInvalidToken = errors.New("invalid authentication token")
	ErrTeamNotFound = errors.New("team not found")

	// Work log errors
	ErrWorkLogNotFound = errors.New("work log not found")

	// Messaging errors
	ErrMessageNotFound  = errors.New("message not found")
	ErrTemplateNotFound = errors.New("message template not found")
	ErrDeliveryFailed   = errors.New("delivery failed")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidStatus   = fmt.Errorf("%w: invalid task status", ErrValidation)
	ErrInvalidPriority = fmt.Errorf("%w: invalid task priority", ErrValidation)
	ErrEmptyComment    = fmt.Errorf("%w: comment is required", ErrValidation)
	ErrEmptyReason     = fmt.Errorf("%w: reason is required", ErrValidation)
)
