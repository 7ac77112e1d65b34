package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/webhook-receiver/internal/api/middleware"
	"github.com/Togather-Foundation/webhook-receiver/internal/api/problem"
	"github.com/Togather-Foundation/webhook-receiver/internal/domain/webhooks"
	"github.com/Togather-Foundation/webhook-receiver/internal/metrics"
)

const githubEventHeader = "X-GitHub-Event"

// Ingester is the write path behind POST /webhook.
type Ingester interface {
	Ingest(ctx context.Context, d webhooks.Delivery) (webhooks.IngestResult, error)
}

type WebhookHandler struct {
	Ingest Ingester
}

func NewWebhookHandler(ingest Ingester) *WebhookHandler {
	return &WebhookHandler{Ingest: ingest}
}

type webhookResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

// Receive handles POST /webhook.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Ingest == nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.MsgProcessingFailed, errors.New("webhook handler not configured"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordDelivery("", metrics.OutcomeTooLarge)
			problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.MsgPayloadTooLarge, err)
			return
		}
		metrics.RecordDelivery("", metrics.OutcomeInvalid)
		problem.Write(w, r, http.StatusBadRequest, problem.MsgInvalidPayload, err)
		return
	}

	delivery := webhooks.Delivery{
		Body:       body,
		Signature:  r.Header.Get(webhooks.SignatureHeader),
		EventName:  r.Header.Get(githubEventHeader),
		DeliveryID: r.Header.Get(middleware.DeliveryHeader),
	}

	result, err := h.Ingest.Ingest(r.Context(), delivery)
	if err != nil {
		h.writeIngestError(w, r, err)
		return
	}

	metrics.RecordDelivery(string(result.Record.Type), metrics.OutcomeStored)
	problem.WriteJSON(w, http.StatusOK, webhookResponse{Status: "success", EventID: result.Record.ID})
}

func (h *WebhookHandler) writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	var malformed webhooks.MalformedEventError
	switch {
	case errors.Is(err, webhooks.ErrUnauthenticated):
		metrics.RecordDelivery("", metrics.OutcomeRejected)
		zerolog.Ctx(r.Context()).Warn().
			Bool("security", true).
			Str("remote_addr", r.RemoteAddr).
			Bool("signature_present", r.Header.Get(webhooks.SignatureHeader) != "").
			Msg("webhook signature rejected")
		problem.Write(w, r, http.StatusForbidden, problem.MsgInvalidSignature, nil)
	case errors.Is(err, webhooks.ErrInvalidPayload):
		metrics.RecordDelivery("", metrics.OutcomeInvalid)
		problem.Write(w, r, http.StatusBadRequest, problem.MsgInvalidPayload, err)
	case errors.Is(err, webhooks.ErrUnsupportedEvent):
		metrics.RecordDelivery("", metrics.OutcomeUnsupported)
		problem.Write(w, r, http.StatusBadRequest, problem.MsgUnsupportedEvent, err)
	case errors.As(err, &malformed):
		metrics.RecordDelivery(string(malformed.Type), metrics.OutcomeMalformed)
		var opts []problem.Option
		if malformed.Field != "" {
			opts = append(opts, problem.WithField("field", malformed.Field))
		}
		problem.Write(w, r, http.StatusBadRequest, problem.MsgMalformedEvent, err, opts...)
	default:
		metrics.RecordDelivery("", metrics.OutcomeError)
		problem.Write(w, r, http.StatusInternalServerError, problem.MsgProcessingFailed, err)
	}
}
