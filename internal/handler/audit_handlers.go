package handler

import (
	"net/http"

	"github.com/mtlprog/worklog/internal/handler/dto"
)

// handleTaskLogs returns the operation log of a task.
// @Summary List task operation log
// @Tags audit
// @Produce json
// @Param id path int true "Task ID"
// @Param limit query int false "Page size (1-100, default 50)"
// @Param offset query int false "Page offset"
// @Success 200 {array} dto.TaskLogResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/logs [get]
func (h *Handler) handleTaskLogs(w http.ResponseWriter, r *http.Request) {
	userID, taskID, limit, offset, ok := auditRequest(w, r)
	if !ok {
		return
	}

	logs, err := h.taskService.TaskLogs(r.Context(), taskID, userID, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := make([]dto.TaskLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, dto.ToTaskLogResponse(l))
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleTaskStatusChanges returns the status history of a task.
// @Summary List task status changes
// @Tags audit
// @Produce json
// @Param id path int true "Task ID"
// @Param limit query int false "Page size (1-100, default 50)"
// @Param offset query int false "Page offset"
// @Success 200 {array} dto.StatusChangeResponse
// @Security BearerAuth
// @Router /tasks/{id}/status-changes [get]
func (h *Handler) handleTaskStatusChanges(w http.ResponseWriter, r *http.Request) {
	userID, taskID, limit, offset, ok := auditRequest(w, r)
	if !ok {
		return
	}

	changes, err := h.taskService.TaskStatusChanges(r.Context(), taskID, userID, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := make([]dto.StatusChangeResponse, 0, len(changes))
	for _, c := range changes {
		resp = append(resp, dto.ToStatusChangeResponse(c))
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleTaskActivity returns both audit streams merged, newest first.
// @Summary List task activity
// @Tags audit
// @Produce json
// @Param id path int true "Task ID"
// @Param limit query int false "Page size (1-100, default 50)"
// @Param offset query int false "Page offset"
// @Success 200 {array} dto.ActivityResponse
// @Security BearerAuth
// @Router /tasks/{id}/activity [get]
func (h *Handler) handleTaskActivity(w http.ResponseWriter, r *http.Request) {
	userID, taskID, limit, offset, ok := auditRequest(w, r)
	if !ok {
		return
	}

	entries, err := h.taskService.TaskActivity(r.Context(), taskID, userID, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := make([]dto.ActivityResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.ToActivityResponse(e))
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleTaskWorkLogs returns the work logs generated for a task.
// @Summary List task work logs
// @Tags audit
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {array} dto.WorkLogResponse
// @Security BearerAuth
// @Router /tasks/{id}/worklogs [get]
func (h *Handler) handleTaskWorkLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	logs, err := h.taskService.TaskWorkLogs(r.Context(), taskID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := make([]dto.WorkLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, dto.ToWorkLogResponse(l))
	}
	respondJSON(w, http.StatusOK, resp)
}

func auditRequest(w http.ResponseWriter, r *http.Request) (userID, taskID int64, limit, offset int, ok bool) {
	if userID, ok = currentUser(w, r); !ok {
		return
	}
	if taskID, ok = extractID(w, r, "id"); !ok {
		return
	}
	limit, offset, ok = parsePage(w, r)
	return
}
