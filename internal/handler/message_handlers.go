package handler

import (
	"net/http"
	"strings"

	"github.com/mtlprog/worklog/internal/handler/dto"
	"github.com/mtlprog/worklog/internal/notification"
	"github.com/mtlprog/worklog/internal/repository"
	"github.com/mtlprog/worklog/internal/service"
)

// handleListMessages returns the caller's inbox.
// @Summary List inbox messages
// @Description Returns messages addressed to the caller and not deleted by them.
// @Tags messages
// @Produce json
// @Param type query string false "Message types (comma-separated)"
// @Param priority query string false "Priorities (comma-separated)"
// @Param unread query bool false "Only unread messages"
// @Param sort query string false "Sort fields, prefix with - for DESC (created_at, priority, id)"
// @Param limit query int false "Page size (1-100, default 20)"
// @Param offset query int false "Page offset"
// @Success 200 {object} dto.MessagesListResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /messages [get]
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	filters, ok := parseListMessagesFilters(w, r)
	if !ok {
		return
	}

	messages, total, err := h.inboxService.List(r.Context(), repository.MessageListFilters{
		UserID:     userID,
		Types:      filters.Types,
		Priorities: filters.Priorities,
		UnreadOnly: filters.UnreadOnly,
		Sort:       filters.Sort,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dto.MessagesListResponse{
		Messages: make([]dto.MessageResponse, 0, len(messages)),
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}
	if resp.Limit == 0 {
		resp.Limit = service.DefaultInboxLimit
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, notification.NewWireMessage(m, userID))
	}
	respondJSON(w, http.StatusOK, resp)
}

// parseListMessagesFilters reads inbox query parameters.
func parseListMessagesFilters(w http.ResponseWriter, r *http.Request) (dto.ListMessagesFilters, bool) {
	query := r.URL.Query()

	var filters dto.ListMessagesFilters
	if v := query.Get("type"); v != "" {
		filters.Types = splitAndTrim(v, ",")
	}
	if v := query.Get("priority"); v != "" {
		filters.Priorities = splitAndTrim(v, ",")
	}
	if v := query.Get("sort"); v != "" {
		filters.Sort = splitAndTrim(v, ",")
	}
	filters.UnreadOnly = query.Get("unread") == "true"

	limit, offset, ok := parsePage(w, r)
	if !ok {
		return filters, false
	}
	filters.Limit, filters.Offset = limit, offset
	return filters, true
}

// handleGetMessage returns one inbox message.
// @Summary Get message
// @Tags messages
// @Produce json
// @Param id path int true "Message ID"
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /messages/{id} [get]
func (h *Handler) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	messageID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	msg, err := h.inboxService.Get(r.Context(), messageID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, notification.NewWireMessage(msg, userID))
}

// handleUnreadCount returns the number of unread messages.
// @Summary Unread message count
// @Tags messages
// @Produce json
// @Success 200 {object} dto.UnreadCountResponse
// @Security BearerAuth
// @Router /messages/unread-count [get]
func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	n, err := h.inboxService.UnreadCount(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.UnreadCountResponse{UnreadCount: n})
}

// handleMessageStats returns inbox statistics.
// @Summary Inbox statistics
// @Description Totals by message type and priority for the caller's inbox.
// @Tags messages
// @Produce json
// @Success 200 {object} dto.MessageStatsResponse
// @Security BearerAuth
// @Router /messages/stats [get]
func (h *Handler) handleMessageStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	stats, err := h.inboxService.Stats(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToMessageStatsResponse(stats))
}

// connectionStatusResponse reports websocket presence.
type connectionStatusResponse struct {
	IsConnected         bool    `json:"is_connected"`
	ConnectedUsersCount int     `json:"connected_users_count"`
	ConnectedUsers      []int64 `json:"connected_users"`
	ConnectionsCount    int     `json:"connections_count"`
}

// handleConnectionStatus reports whether the caller has a live websocket.
// @Summary Realtime connection status
// @Tags messages
// @Produce json
// @Success 200 {object} connectionStatusResponse
// @Security BearerAuth
// @Router /messages/connection-status [get]
func (h *Handler) handleConnectionStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	online := h.hub.OnlineUsers()
	respondJSON(w, http.StatusOK, connectionStatusResponse{
		IsConnected:         h.hub.IsOnline(userID),
		ConnectedUsersCount: len(online),
		ConnectedUsers:      online,
		ConnectionsCount:    h.hub.ConnectionCount(),
	})
}

// handleMarkRead marks one message read for the caller.
// @Summary Mark message read
// @Tags messages
// @Param id path int true "Message ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /messages/{id}/read [post]
func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	messageID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	if err := h.inboxService.MarkRead(r.Context(), messageID, userID); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleMarkAllRead marks the caller's whole inbox read.
// @Summary Mark all messages read
// @Tags messages
// @Produce json
// @Success 200 {object} dto.MarkAllReadResponse
// @Security BearerAuth
// @Router /messages/read-all [post]
func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	n, err := h.inboxService.MarkAllRead(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.MarkAllReadResponse{Updated: n})
}

// handleDeleteMessage removes a message from the caller's inbox only.
// @Summary Delete message
// @Tags messages
// @Param id path int true "Message ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /messages/{id} [delete]
func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	messageID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	if err := h.inboxService.Delete(r.Context(), messageID, userID); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// splitAndTrim splits a string by delimiter and trims whitespace.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
