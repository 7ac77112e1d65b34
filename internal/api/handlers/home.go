package handlers

import (
	"errors"
	"net/http"

	"github.com/Togather-Foundation/webhook-receiver/internal/api/middleware"
	"github.com/Togather-Foundation/webhook-receiver/internal/api/pagination"
	"github.com/Togather-Foundation/webhook-receiver/internal/api/problem"
	"github.com/Togather-Foundation/webhook-receiver/internal/api/render"
)

const (
	homeTitle  = "Webhook events"
	homeEvents = 50
)

type HomeHandler struct {
	Service Lister
	Version string
}

func NewHomeHandler(service Lister, version string) *HomeHandler {
	return &HomeHandler{Service: service, Version: version}
}

type serviceInfo struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// Home serves the latest events as HTML, or service metadata as JSON.
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		problem.Write(w, r, http.StatusNotFound, problem.MsgNotFound, nil)
		return
	}

	if middleware.NegotiatedContentType(r) == middleware.ContentJSON {
		problem.WriteJSON(w, http.StatusOK, serviceInfo{
			Service: "webhook-receiver",
			Version: h.Version,
			Endpoints: map[string]string{
				"webhook": "POST /webhook",
				"events":  "GET /events?limit=&page=",
				"health":  "GET /health",
				"metrics": "GET /metrics",
				"version": "GET /version",
			},
		})
		return
	}

	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.MsgProcessingFailed, errors.New("home handler not configured"))
		return
	}

	result, err := h.Service.List(r.Context(), pagination.NewPageRequest(homeEvents, 1))
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.MsgProcessingFailed, err)
		return
	}

	page, err := render.RenderEventList(homeTitle, result.Events, result.TotalEvents)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.MsgProcessingFailed, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}
