package handler

import (
	"net/http"

	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/handler/dto"
	"github.com/mtlprog/worklog/internal/lifecycle"
)

// handleCreateTask creates a new task.
// @Summary Create a new task
// @Description Creates a PENDING task, or ASSIGNED when assignee_id is given.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body dto.CreateTaskRequest true "Task creation request"
// @Success 201 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.CreateTaskRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), userID, lifecycle.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       domain.TaskPriority(req.Priority),
		TeamID:         req.TeamID,
		ProjectID:      req.ProjectID,
		AssigneeID:     req.AssigneeID,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToTaskResponse(task, h.now()))
}

// handleQuickCreateTask creates a task from a title and priority.
// @Summary Quick-create a task
// @Description Non-admins become the assignee; admins leave the task unassigned.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body dto.QuickCreateTaskRequest true "Quick creation request"
// @Success 201 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/quick [post]
func (h *Handler) handleQuickCreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.QuickCreateTaskRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	task, err := h.taskService.QuickCreateTask(r.Context(), userID, req.Title, domain.TaskPriority(req.Priority), req.TeamID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToTaskResponse(task, h.now()))
}

// handleGetTask returns a single task.
// @Summary Get task
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} dto.TaskResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(r.Context(), taskID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task, h.now()))
}

// handleUpdateTask applies a generic field update.
// @Summary Update task fields
// @Description Omitted fields are unchanged. Without an explicit status, assignee changes move the task between PENDING and ASSIGNED.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body dto.UpdateTaskRequest true "Fields to update"
// @Success 200 {object} dto.TaskResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [patch]
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	var req dto.UpdateTaskRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	in := lifecycle.PatchInput{
		Title:          req.Title,
		Description:    req.Description,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		ProjectID:      req.ProjectID,
	}
	if req.Priority != nil {
		p := domain.TaskPriority(*req.Priority)
		in.Priority = &p
	}
	if req.Status != nil {
		s := domain.TaskStatus(*req.Status)
		in.Status = &s
	}
	if req.AssigneeID.Set {
		in.Assignee = &lifecycle.AssigneeChange{ID: req.AssigneeID.Value}
	}

	task, err := h.taskService.UpdateTask(r.Context(), taskID, userID, in)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task, h.now()))
}

// handleAssignTask assigns a task to a team member.
// @Summary Assign task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body dto.AssignTaskRequest true "Assignee"
// @Success 200 {object} dto.TaskResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/assign [post]
func (h *Handler) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	var req dto.AssignTaskRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.AssigneeID <= 0 {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "assignee_id is required")
		return
	}

	task, err := h.taskService.AssignTask(r.Context(), taskID, userID, req.AssigneeID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task, h.now()))
}

// handleClaimTask claims an unassigned PENDING task.
// @Summary Claim task
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} dto.TaskResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/claim [post]
func (h *Handler) handleClaimTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(taskID, userID int64) (*domain.Task, error) {
		return h.taskService.ClaimTask(r.Context(), taskID, userID)
	})
}

// handleStartTask moves an ASSIGNED task to IN_PROGRESS.
// @Summary Start task
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} dto.TaskResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/start [post]
func (h *Handler) handleStartTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(taskID, userID int64) (*domain.Task, error) {
		return h.taskService.StartTask(r.Context(), taskID, userID)
	})
}

// handleSubmitReview submits an IN_PROGRESS task for review.
// @Summary Submit task for review
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body dto.ReviewTaskRequest false "Optional comment"
// @Success 200 {object} dto.TaskResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/submit-review [post]
func (h *Handler) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var req dto.ReviewTaskRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	h.transition(w, r, func(taskID, userID int64) (*domain.Task, error) {
		return h.taskService.SubmitReview(r.Context(), taskID, userID, req.Comment)
	})
}

// handleApproveTask approves a task in REVIEW.
// @Summary Approve task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body dto.ReviewTaskRequest false "Optional comment"
// @Success 200 {object} dto.TaskResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/approve [post]
func (h *Handler) handleApproveTask(w http.ResponseWriter, r *http.Request) {
	var req dto.ReviewTaskRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	h.transition(w, r, func(taskID, userID int64) (*domain.Task, error) {
		return h.taskService.ApproveTask(r.Context(), taskID, userID, req.Comment)
	})
}

// handleRejectTask sends a task in REVIEW back to IN_PROGRESS.
// @Summary Reject task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body dto.RejectTaskRequest true "Rejection reason"
// @Success 200 {object} dto.TaskResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/reject [post]
func (h *Handler) handleRejectTask(w http.ResponseWriter, r *http.Request) {
	var req dto.RejectTaskRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	h.transition(w, r, func(taskID, userID int64) (*domain.Task, error) {
		return h.taskService.RejectTask(r.Context(), taskID, userID, req.Reason)
	})
}

// handleCompleteTask completes a task and closes its work log.
// @Summary Complete task
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} dto.TaskResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/complete [post]
func (h *Handler) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(taskID, userID int64) (*domain.Task, error) {
		return h.taskService.CompleteTask(r.Context(), taskID, userID)
	})
}

// transition runs a lifecycle operation on the task named in the path.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(taskID, userID int64) (*domain.Task, error)) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	task, err := op(taskID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task, h.now()))
}

// handleCommentTask adds a comment to a task.
// @Summary Add comment to task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body dto.CommentTaskRequest true "Comment"
// @Success 201 {object} dto.CommentResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/comments [post]
func (h *Handler) handleCommentTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	var req dto.CommentTaskRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	comment, err := h.taskService.AddComment(r.Context(), taskID, userID, req.Content)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToCommentResponse(comment))
}
