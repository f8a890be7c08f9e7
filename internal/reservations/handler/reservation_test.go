package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"innkeep/internal/reservations/pipeline"
	apperrors "innkeep/pkg/errors"
	"innkeep/pkg/logger"
	"innkeep/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// Mock service for testing
type mockReservationService struct {
	reserveFunc func(ctx context.Context, req *model.ReservationRequest) (*model.Booking, error)
	confirmFunc func(ctx context.Context, id int64, amountCents int64) error
	cancelFunc  func(ctx context.Context, id int64) error
	getFunc     func(ctx context.Context, id int64) (*model.Booking, error)
}

func (m *mockReservationService) Reserve(ctx context.Context, req *model.ReservationRequest) (*model.Booking, error) {
	if m.reserveFunc != nil {
		return m.reserveFunc(ctx, req)
	}
	return &model.Booking{ID: 1, Status: model.StatusPending}, nil
}

func (m *mockReservationService) ConfirmPayment(ctx context.Context, id int64, amountCents int64) error {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, id, amountCents)
	}
	return nil
}

func (m *mockReservationService) Cancel(ctx context.Context, id int64) error {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id)
	}
	return nil
}

func (m *mockReservationService) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &model.Booking{ID: id, Status: model.StatusPending}, nil
}

func (m *mockReservationService) QueueStats() pipeline.Stats {
	return pipeline.Stats{Pending: 3, Processed: 10, Dropped: 1}
}

func newTestRouter(svc *mockReservationService) *httprouter.Router {
	router := httprouter.New()
	NewReservationHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func TestCreateReservation(t *testing.T) {
	var received *model.ReservationRequest
	svc := &mockReservationService{
		reserveFunc: func(_ context.Context, req *model.ReservationRequest) (*model.Booking, error) {
			received = req
			return &model.Booking{ID: 77, Status: model.StatusPending, RoomIDs: req.RoomIDs}, nil
		},
	}
	router := newTestRouter(svc)

	body := `{"customer_id":42,"room_ids":[101],"check_in":"2026-09-01T00:00:00Z","check_out":"2026-09-04T00:00:00Z","total_amount_cents":45000,"type":"online"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}
	if received == nil || received.CustomerID != 42 {
		t.Fatalf("service received %+v", received)
	}

	var resp struct {
		Data model.Booking `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.ID != 77 {
		t.Fatalf("booking id = %d, want 77", resp.Data.ID)
	}
}

func TestCreateReservationBadBody(t *testing.T) {
	router := newTestRouter(&mockReservationService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateReservationConflict(t *testing.T) {
	svc := &mockReservationService{
		reserveFunc: func(context.Context, *model.ReservationRequest) (*model.Booking, error) {
			return nil, apperrors.Conflict("One or more rooms are unavailable for the selected dates")
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{"customer_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestConfirmPaymentAccepted(t *testing.T) {
	var gotID, gotAmount int64
	svc := &mockReservationService{
		confirmFunc: func(_ context.Context, id int64, amountCents int64) error {
			gotID, gotAmount = id, amountCents
			return nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/55/payment", strings.NewReader(`{"amount_cents":45000}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body: %s", rec.Code, rec.Body.String())
	}
	if gotID != 55 || gotAmount != 45000 {
		t.Fatalf("service received id=%d amount=%d", gotID, gotAmount)
	}
}

func TestInvalidIDRejected(t *testing.T) {
	router := newTestRouter(&mockReservationService{})

	for _, path := range []string{
		"/api/v1/reservations/abc",
		"/api/v1/reservations/-5",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestCancelAccepted(t *testing.T) {
	router := newTestRouter(&mockReservationService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/reservations/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	svc := &mockReservationService{
		getFunc: func(_ context.Context, id int64) (*model.Booking, error) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/9000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestQueueStatsEndpoint(t *testing.T) {
	router := newTestRouter(&mockReservationService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data pipeline.Stats `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Pending != 3 || resp.Data.Dropped != 1 {
		t.Fatalf("unexpected stats: %+v", resp.Data)
	}
}
