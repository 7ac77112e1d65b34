package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Togather-Foundation/webhook-receiver/internal/api/pagination"
	"github.com/Togather-Foundation/webhook-receiver/internal/api/problem"
	"github.com/Togather-Foundation/webhook-receiver/internal/domain/webhooks"
)

// Lister is the read path behind GET /events and GET /.
type Lister interface {
	List(ctx context.Context, req pagination.PageRequest) (webhooks.PageResult, error)
}

type EventsHandler struct {
	Service Lister
}

func NewEventsHandler(service Lister) *EventsHandler {
	return &EventsHandler{Service: service}
}

type listResponse struct {
	Events      []webhooks.EventRecord `json:"events"`
	CurrentPage int                    `json:"current_page"`
	TotalPages  int                    `json:"total_pages"`
	Limit       int                    `json:"limit"`
	TotalEvents int64                  `json:"total_events"`
}

// List handles GET /events?limit=&page=. Out-of-range parameters are clamped.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.MsgProcessingFailed, errors.New("events handler not configured"))
		return
	}

	req := pagination.ParsePageRequest(r.URL.Query())

	result, err := h.Service.List(r.Context(), req)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.MsgProcessingFailed, err)
		return
	}

	problem.WriteJSON(w, http.StatusOK, listResponse{
		Events:      result.Events,
		CurrentPage: result.CurrentPage,
		TotalPages:  result.TotalPages,
		Limit:       result.Limit,
		TotalEvents: result.TotalEvents,
	})
}
