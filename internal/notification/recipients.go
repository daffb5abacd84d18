package notification

import (
	"slices"

	"github.com/mtlprog/worklog/internal/domain"
)

// Audience is everything recipient resolution may draw on.
// Members and Admins are only consulted by the kinds that need them.
type Audience struct {
	ActorID    int64
	CreatorID  int64
	AssigneeID *int64
	Members    []int64
	Admins     []int64
	// Exclude lists users left out besides the actor.
	Exclude []int64
}

// needsMembers reports whether resolving kind reads Audience.Members.
func needsMembers(kind domain.NotificationKind) bool {
	switch kind {
	case domain.NotifyTaskCreated, domain.NotifyTaskStatusChanged, domain.NotifyTaskCommentAdded,
		domain.NotifyTeamMemberJoined, domain.NotifyTeamMemberLeft:
		return true
	}
	return false
}

// needsAdmins reports whether resolving kind reads Audience.Admins.
func needsAdmins(kind domain.NotificationKind) bool {
	return kind == domain.NotifyTaskCompleted || kind == domain.NotifyWorklogSubmitted
}

// Recipients resolves who receives a notification of the given kind. The
// actor never receives its own notification. The result is sorted and
// free of duplicates.
func Recipients(kind domain.NotificationKind, a Audience) []int64 {
	var ids []int64

	switch kind {
	case domain.NotifyTaskCreated:
		ids = append(ids, a.Members...)
	case domain.NotifyTaskAssigned:
		if a.AssigneeID != nil {
			ids = append(ids, *a.AssigneeID)
			if a.CreatorID != *a.AssigneeID && a.CreatorID != a.ActorID {
				ids = append(ids, a.CreatorID)
			}
		}
	case domain.NotifyTaskStatusChanged, domain.NotifyTaskCommentAdded:
		ids = append(ids, a.CreatorID)
		if a.AssigneeID != nil {
			ids = append(ids, *a.AssigneeID)
		}
		ids = append(ids, a.Members...)
	case domain.NotifyTaskCompleted:
		ids = append(ids, a.CreatorID)
		ids = append(ids, a.Admins...)
	case domain.NotifyTeamMemberJoined, domain.NotifyTeamMemberLeft:
		ids = append(ids, a.Members...)
	case domain.NotifyWorklogSubmitted:
		ids = append(ids, a.Admins...)
	}

	ids = slices.DeleteFunc(ids, func(id int64) bool {
		return id <= 0 || id == a.ActorID || slices.Contains(a.Exclude, id)
	})
	slices.Sort(ids)
	return slices.Compact(ids)
}
