package lifecycle

import "github.com/mtlprog/worklog/internal/domain"

// transitions lists the legal status edges. Terminal statuses have none.
var transitions = map[domain.TaskStatus][]domain.TaskStatus{
	domain.TaskStatusPending: {
		domain.TaskStatusAssigned,
		domain.TaskStatusInProgress,
		domain.TaskStatusCancelled,
	},
	domain.TaskStatusAssigned: {
		domain.TaskStatusPending,
		domain.TaskStatusInProgress,
		domain.TaskStatusCancelled,
	},
	domain.TaskStatusInProgress: {
		domain.TaskStatusReview,
		domain.TaskStatusCompleted,
		domain.TaskStatusCancelled,
	},
	domain.TaskStatusReview: {
		domain.TaskStatusCompleted,
		domain.TaskStatusInProgress,
		domain.TaskStatusCancelled,
	},
}

// CanTransition reports whether from -> to is a legal status edge.
func CanTransition(from, to domain.TaskStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
