package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-fanout-nosql/internal/application/ingest"
)

// TriggerHandler is the HTTP ingress for record-mutation triggers. Delivery
// is at-least-once; after the body is decoded every outcome is a 202 so the
// caller never retries on a domain failure.
type TriggerHandler struct {
	ingestor *ingest.Ingestor
}

func NewTriggerHandler(ingestor *ingest.Ingestor) *TriggerHandler {
	return &TriggerHandler{ingestor: ingestor}
}

func (h *TriggerHandler) UserUpdated(w http.ResponseWriter, r *http.Request) {
	var req ingest.UserUpdatedPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusAccepted, envelope(h.ingestor.UserUpdated(r.Context(), req)))
}

func (h *TriggerHandler) CommentCreated(w http.ResponseWriter, r *http.Request) {
	var req ingest.CommentCreatedPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusAccepted, envelope(h.ingestor.CommentCreated(r.Context(), req)))
}

func envelope(rep ingest.Report) TriggerEnvelope {
	return TriggerEnvelope{
		InvocationID: rep.InvocationID,
		Events:       rep.Events,
		Completed:    rep.Completed,
		Dropped:      rep.Dropped,
	}
}
