package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/calvinlm/MatchPoint-Prototype-sub000/models"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubQueueService направляет вызовы в подставные функции теста.
type stubQueueService struct {
	enqueue func(ctx context.Context, tournamentID, matchID int) (*models.QueueItem, error)
	list    func(ctx context.Context, tournamentID int) ([]*models.QueueItem, error)
	reorder func(ctx context.Context, tournamentID int, items []models.ReorderItem) ([]*models.QueueItem, error)
	action  func(ctx context.Context, queueItemID int, kind models.QueueActionKind, expectedVersion int, courtID *int) (*services.QueueActionResult, error)
}

func (s *stubQueueService) Enqueue(ctx context.Context, tournamentID, matchID int) (*models.QueueItem, error) {
	return s.enqueue(ctx, tournamentID, matchID)
}

func (s *stubQueueService) List(ctx context.Context, tournamentID int) ([]*models.QueueItem, error) {
	return s.list(ctx, tournamentID)
}

func (s *stubQueueService) Reorder(ctx context.Context, tournamentID int, items []models.ReorderItem) ([]*models.QueueItem, error) {
	return s.reorder(ctx, tournamentID, items)
}

func (s *stubQueueService) MarkReady(ctx context.Context, queueItemID, expectedVersion int) (*services.QueueActionResult, error) {
	return s.action(ctx, queueItemID, models.QueueActionMarkReady, expectedVersion, nil)
}

func (s *stubQueueService) SendToCourt(ctx context.Context, queueItemID, expectedVersion int, courtID *int) (*services.QueueActionResult, error) {
	return s.action(ctx, queueItemID, models.QueueActionSendToCourt, expectedVersion, courtID)
}

func (s *stubQueueService) Pull(ctx context.Context, queueItemID, expectedVersion int) (*services.QueueActionResult, error) {
	return s.action(ctx, queueItemID, models.QueueActionPull, expectedVersion, nil)
}

func (s *stubQueueService) Action(ctx context.Context, queueItemID int, kind models.QueueActionKind, expectedVersion int, courtID *int) (*services.QueueActionResult, error) {
	return s.action(ctx, queueItemID, kind, expectedVersion, courtID)
}

func newQueueRouter(service services.QueueService) *chi.Mux {
	handler := NewQueueHandler(service)
	router := chi.NewRouter()
	router.Get("/tournaments/{tournamentID}/queue", handler.ListQueueHandler)
	router.Post("/tournaments/{tournamentID}/queue/reorder", handler.ReorderHandler)
	router.Post("/queue/{queueItemID}/action", handler.ActionHandler)
	return router
}

func TestActionHandlerVersionConflict(t *testing.T) {
	service := &stubQueueService{
		action: func(ctx context.Context, queueItemID int, kind models.QueueActionKind, expectedVersion int, courtID *int) (*services.QueueActionResult, error) {
			return nil, &services.VersionConflictError{
				QueueItemID:     queueItemID,
				ExpectedVersion: expectedVersion,
				ActualVersion:   3,
			}
		},
	}
	router := newQueueRouter(service)

	body := strings.NewReader(`{"kind": "SEND_TO_COURT", "version": 2, "court_id": 4}`)
	req := httptest.NewRequest(http.MethodPost, "/queue/5/action", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var response struct {
		Error           string `json:"error"`
		QueueItemID     int    `json:"queue_item_id"`
		ExpectedVersion int    `json:"expected_version"`
		StoredVersion   int    `json:"stored_version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 5, response.QueueItemID)
	assert.Equal(t, 2, response.ExpectedVersion)
	assert.Equal(t, 3, response.StoredVersion)
	assert.NotEmpty(t, response.Error)
}

func TestActionHandlerErrorMapping(t *testing.T) {
	testCases := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{name: "unknown queue item", serviceErr: services.ErrQueueItemNotFound, wantStatus: http.StatusNotFound},
		{name: "invalid transition", serviceErr: services.ErrInvalidTransition, wantStatus: http.StatusBadRequest},
		{name: "missing court", serviceErr: services.ErrMissingCourt, wantStatus: http.StatusBadRequest},
		{name: "unknown action kind", serviceErr: services.ErrUnknownQueueAction, wantStatus: http.StatusBadRequest},
		{name: "storage failure", serviceErr: assert.AnError, wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubQueueService{
				action: func(ctx context.Context, queueItemID int, kind models.QueueActionKind, expectedVersion int, courtID *int) (*services.QueueActionResult, error) {
					return nil, tc.serviceErr
				},
			}
			router := newQueueRouter(service)

			req := httptest.NewRequest(http.MethodPost, "/queue/1/action", strings.NewReader(`{"kind": "MARK_READY", "version": 0}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestActionHandlerRejectsMalformedRequests(t *testing.T) {
	service := &stubQueueService{
		action: func(ctx context.Context, queueItemID int, kind models.QueueActionKind, expectedVersion int, courtID *int) (*services.QueueActionResult, error) {
			t.Fatal("service must not be called for malformed requests")
			return nil, nil
		},
	}
	router := newQueueRouter(service)

	testCases := []struct {
		name string
		url  string
		body string
	}{
		{name: "non-numeric id", url: "/queue/abc/action", body: `{"kind": "MARK_READY", "version": 0}`},
		{name: "empty body", url: "/queue/1/action", body: ""},
		{name: "unknown field", url: "/queue/1/action", body: `{"kind": "MARK_READY", "version": 0, "extra": true}`},
		{name: "bad json", url: "/queue/1/action", body: `{"kind":`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.url, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListQueueHandler(t *testing.T) {
	service := &stubQueueService{
		list: func(ctx context.Context, tournamentID int) ([]*models.QueueItem, error) {
			require.Equal(t, 7, tournamentID)
			return []*models.QueueItem{
				{ID: 1, TournamentID: 7, MatchID: 3, Position: 1, Version: 2},
				{ID: 2, TournamentID: 7, MatchID: 4, Position: 2, Version: 0},
			}, nil
		},
	}
	router := newQueueRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/tournaments/7/queue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Queue []*models.QueueItem `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Queue, 2)
	assert.Equal(t, 1, response.Queue[0].Position)
}
