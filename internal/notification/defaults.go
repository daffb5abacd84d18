package notification

import (
	"github.com/mtlprog/worklog/internal/domain"
)

// defaultTemplates back notification kinds whose template row is missing or
// inactive. They mirror the seeded rows.
var defaultTemplates = map[domain.NotificationKind]domain.MessageTemplate{
	domain.NotifyTaskCreated: {
		TitleTemplate:   "New task: {{ task_title }}",
		ContentTemplate: `{{ actor_name }} created task #{{ task_id }} "{{ task_title }}" with priority {{ priority }}.`,
		MessageType:     domain.MessageTypeTask,
		Priority:        domain.MessagePriorityNormal,
	},
	domain.NotifyTaskAssigned: {
		TitleTemplate:   "Task assigned: {{ task_title }}",
		ContentTemplate: `{{ actor_name }} assigned task #{{ task_id }} "{{ task_title }}" (priority {{ priority }}, due {{ due_date }}).`,
		MessageType:     domain.MessageTypeTask,
		Priority:        domain.MessagePriorityHigh,
		SendViaDesktop:  true,
	},
	domain.NotifyTaskStatusChanged: {
		TitleTemplate:   "Task status changed: {{ task_title }}",
		ContentTemplate: `{{ actor_name }} moved task #{{ task_id }} "{{ task_title }}" from {{ old_status }} to {{ new_status }}. {{ reason }}`,
		MessageType:     domain.MessageTypeTask,
		Priority:        domain.MessagePriorityNormal,
	},
	domain.NotifyTaskCommentAdded: {
		TitleTemplate:   "New comment on {{ task_title }}",
		ContentTemplate: "{{ actor_name }} commented on task #{{ task_id }}: {{ comment }}",
		MessageType:     domain.MessageTypeTask,
		Priority:        domain.MessagePriorityNormal,
	},
	domain.NotifyTaskCompleted: {
		TitleTemplate:   "Task completed: {{ task_title }}",
		ContentTemplate: `Task #{{ task_id }} "{{ task_title }}" was completed by {{ actor_name }} in {{ actual_hours }} hours.`,
		MessageType:     domain.MessageTypeTask,
		Priority:        domain.MessagePriorityNormal,
		SendViaDesktop:  true,
	},
	domain.NotifyTeamMemberJoined: {
		TitleTemplate:   "{{ member_name }} joined {{ team_name }}",
		ContentTemplate: "{{ member_name }} is now a member of team {{ team_name }}.",
		MessageType:     domain.MessageTypeTeam,
		Priority:        domain.MessagePriorityLow,
	},
	domain.NotifyTeamMemberLeft: {
		TitleTemplate:   "{{ member_name }} left {{ team_name }}",
		ContentTemplate: "{{ member_name }} is no longer a member of team {{ team_name }}.",
		MessageType:     domain.MessageTypeTeam,
		Priority:        domain.MessagePriorityLow,
	},
	domain.NotifyWorklogSubmitted: {
		TitleTemplate:   "Work log submitted by {{ actor_name }}",
		ContentTemplate: "{{ actor_name }} logged {{ duration }} hours: {{ content }}",
		MessageType:     domain.MessageTypeWorklog,
		Priority:        domain.MessagePriorityLow,
	},
	domain.NotifyTaskDueReminder: {
		TitleTemplate:   "Task due soon: {{ task_title }}",
		ContentTemplate: `Task #{{ task_id }} "{{ task_title }}" is due {{ due_date }} ({{ time_remaining }} left).`,
		MessageType:     domain.MessageTypeReminder,
		Priority:        domain.MessagePriorityUrgent,
		SendViaDesktop:  true,
	},
	domain.NotifyWorklogReminder: {
		TitleTemplate:   "Work log reminder",
		ContentTemplate: "You have not logged any work today ({{ reminder_date }}). Please record what you worked on.",
		MessageType:     domain.MessageTypeReminder,
		Priority:        domain.MessagePriorityNormal,
		SendViaDesktop:  true,
	},
	domain.NotifyDailySummary: {
		TitleTemplate:   "Daily summary for {{ team_name }}",
		ContentTemplate: "Team {{ team_name }} on {{ summary_date }}: {{ completed_count }} tasks completed, {{ in_progress_count }} in progress, {{ overdue_count }} overdue, {{ logged_hours }} hours logged.",
		MessageType:     domain.MessageTypeSystem,
		Priority:        domain.MessagePriorityLow,
	},
}

// DefaultTemplate returns the built-in template for kind.
func DefaultTemplate(kind domain.NotificationKind) (domain.MessageTemplate, bool) {
	tpl, ok := defaultTemplates[kind]
	if !ok {
		return domain.MessageTemplate{}, false
	}
	tpl.Name = kind
	tpl.SendViaRealtime = true
	tpl.IsActive = true
	return tpl, true
}
