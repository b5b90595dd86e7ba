package handlers

import (
	"net/http"

	"github.com/calvinlm/MatchPoint-Prototype-sub000/models"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/services"
)

type QueueHandler struct {
	queueService services.QueueService
}

func NewQueueHandler(queueService services.QueueService) *QueueHandler {
	return &QueueHandler{queueService: queueService}
}

// ListQueueHandler — полное чтение очереди; им же клиент ресинхронизируется
// после reconnection или конфликта версий.
func (h *QueueHandler) ListQueueHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	items, err := h.queueService.List(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"queue": items}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type enqueueRequest struct {
	MatchID int `json:"match_id"`
}

func (h *QueueHandler) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input enqueueRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	item, err := h.queueService.Enqueue(r.Context(), tournamentID, input.MatchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"queue_item": item}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type reorderRequest struct {
	Items []models.ReorderItem `json:"items"`
}

func (h *QueueHandler) ReorderHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input reorderRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	items, err := h.queueService.Reorder(r.Context(), tournamentID, input.Items)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"queue": items}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type queueActionRequest struct {
	Kind    models.QueueActionKind `json:"kind"`
	Version int                    `json:"version"`
	CourtID *int                   `json:"court_id,omitempty"`
}

func (h *QueueHandler) ActionHandler(w http.ResponseWriter, r *http.Request) {
	queueItemID, err := getIDFromURL(r, "queueItemID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input queueActionRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.queueService.Action(r.Context(), queueItemID, input.Kind, input.Version, input.CourtID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"queue_item": result.QueueItem, "match": result.Match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
