package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/worklog/internal/handler/dto"
	"github.com/mtlprog/worklog/internal/lifecycle"
	"github.com/mtlprog/worklog/internal/middleware"
	"github.com/mtlprog/worklog/internal/notification"
	"github.com/mtlprog/worklog/internal/realtime"
	"github.com/mtlprog/worklog/internal/repository"
	"github.com/mtlprog/worklog/internal/service"
	"github.com/mtlprog/worklog/internal/static"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pool           *pgxpool.Pool
	hub            *realtime.Hub
	router         *notification.Router
	taskService    *service.TaskService
	teamService    *service.TeamService
	inboxService   *service.InboxService
	authMiddleware *middleware.AuthMiddleware
	ws             *realtime.Endpoint
	now            func() time.Time
}

// New creates a new Handler instance with all dependencies. Notifications
// produced by task and team operations are handed to scheduler.
func New(pool *pgxpool.Pool, hub *realtime.Hub, scheduler notification.Scheduler) *Handler {
	// Create repositories
	taskRepo := repository.NewTaskRepository(pool)
	taskLogRepo := repository.NewTaskLogRepository(pool)
	workLogRepo := repository.NewWorkLogRepository(pool)
	teamRepo := repository.NewTeamRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	templateRepo := repository.NewTemplateRepository(pool)

	// Notification pipeline
	router := notification.NewRouter(templateRepo, messageRepo, teamRepo, userRepo, hub)
	publisher := notification.NewPublisher(router, scheduler)

	// Create services
	machine := lifecycle.NewMachine(time.Now)
	taskService := service.NewTaskService(pool, machine, taskRepo, taskLogRepo, workLogRepo, teamRepo, publisher)
	teamService := service.NewTeamService(teamRepo, userRepo, publisher)
	inboxService := service.NewInboxService(messageRepo)

	// Create middleware
	authMiddleware := middleware.NewAuthMiddleware(userRepo)

	return &Handler{
		pool:           pool,
		hub:            hub,
		router:         router,
		taskService:    taskService,
		teamService:    teamService,
		inboxService:   inboxService,
		authMiddleware: authMiddleware,
		ws:             realtime.NewEndpoint(hub, authMiddleware.Resolve, realtime.DefaultWriteTimeout),
		now:            time.Now,
	}
}

// Router returns the notification router shared with background jobs.
func (h *Handler) Router() *notification.Router {
	return h.router
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// Realtime protocol documentation
	mux.HandleFunc("GET /realtime.md", h.handleRealtimeMd)

	// Websocket push channel; authenticates itself before upgrading
	mux.Handle("GET /ws/messages", h.ws)

	auth := func(fn http.HandlerFunc) http.Handler {
		return h.authMiddleware.Authenticate(fn)
	}

	// Tasks
	mux.Handle("POST /api/v1/tasks", auth(h.handleCreateTask))
	mux.Handle("POST /api/v1/tasks/quick", auth(h.handleQuickCreateTask))
	mux.Handle("GET /api/v1/tasks/{id}", auth(h.handleGetTask))
	mux.Handle("PATCH /api/v1/tasks/{id}", auth(h.handleUpdateTask))
	mux.Handle("POST /api/v1/tasks/{id}/assign", auth(h.handleAssignTask))
	mux.Handle("POST /api/v1/tasks/{id}/claim", auth(h.handleClaimTask))
	mux.Handle("POST /api/v1/tasks/{id}/start", auth(h.handleStartTask))
	mux.Handle("POST /api/v1/tasks/{id}/submit-review", auth(h.handleSubmitReview))
	mux.Handle("POST /api/v1/tasks/{id}/approve", auth(h.handleApproveTask))
	mux.Handle("POST /api/v1/tasks/{id}/reject", auth(h.handleRejectTask))
	mux.Handle("POST /api/v1/tasks/{id}/complete", auth(h.handleCompleteTask))
	mux.Handle("POST /api/v1/tasks/{id}/comments", auth(h.handleCommentTask))
	mux.Handle("GET /api/v1/tasks/{id}/logs", auth(h.handleTaskLogs))
	mux.Handle("GET /api/v1/tasks/{id}/status-changes", auth(h.handleTaskStatusChanges))
	mux.Handle("GET /api/v1/tasks/{id}/activity", auth(h.handleTaskActivity))
	mux.Handle("GET /api/v1/tasks/{id}/worklogs", auth(h.handleTaskWorkLogs))

	// Inbox
	mux.Handle("GET /api/v1/messages", auth(h.handleListMessages))
	mux.Handle("GET /api/v1/messages/unread-count", auth(h.handleUnreadCount))
	mux.Handle("GET /api/v1/messages/stats", auth(h.handleMessageStats))
	mux.Handle("GET /api/v1/messages/connection-status", auth(h.handleConnectionStatus))
	mux.Handle("POST /api/v1/messages/read-all", auth(h.handleMarkAllRead))
	mux.Handle("GET /api/v1/messages/{id}", auth(h.handleGetMessage))
	mux.Handle("POST /api/v1/messages/{id}/read", auth(h.handleMarkRead))
	mux.Handle("DELETE /api/v1/messages/{id}", auth(h.handleDeleteMessage))

	// Teams
	mux.Handle("POST /api/v1/teams/{id}/members", auth(h.handleAddMember))
	mux.Handle("DELETE /api/v1/teams/{id}/members/{user_id}", auth(h.handleRemoveMember))
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.pool.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleRealtimeMd serves the embedded realtime protocol document.
func (h *Handler) handleRealtimeMd(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(static.RealtimeMd))
}

// Ping checks if the database is reachable (used for testing).
func (h *Handler) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps err through dto.MapDomainError.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// currentUser extracts the authenticated user ID, answering 401 when absent.
func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return 0, false
	}
	return userID, true
}

// extractID extracts and validates a numeric path parameter.
// Returns (id, true) if valid, (0, false) if invalid (error already sent to client).
func extractID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.PathValue(name)
	if raw == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", name+" is required")
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", name+" must be a positive integer")
		return 0, false
	}

	return id, true
}

// decodeBody decodes an optional or required JSON body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

// parsePage reads limit and offset query parameters.
func parsePage(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer")
			return 0, 0, false
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "offset must be an integer")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
