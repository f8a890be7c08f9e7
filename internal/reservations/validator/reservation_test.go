package validator

import (
	"testing"
	"time"

	"innkeep/pkg/logger"
	"innkeep/pkg/model"
)

func validRequest() *model.ReservationRequest {
	checkIn := time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	return &model.ReservationRequest{
		CustomerID:       42,
		RoomIDs:          []int64{101, 102},
		CheckIn:          checkIn,
		CheckOut:         checkIn.AddDate(0, 0, 3),
		TotalAmountCents: 45000,
		Type:             model.BookingOnline,
	}
}

func TestValidateReservationRequest(t *testing.T) {
	v := NewReservationValidator(logger.Discard())

	tests := []struct {
		name      string
		mutate    func(*model.ReservationRequest)
		wantError bool
	}{
		{
			name:   "valid request",
			mutate: func(*model.ReservationRequest) {},
		},
		{
			name:   "walkin type",
			mutate: func(r *model.ReservationRequest) { r.Type = model.BookingWalkin },
		},
		{
			name:      "missing customer",
			mutate:    func(r *model.ReservationRequest) { r.CustomerID = 0 },
			wantError: true,
		},
		{
			name:      "no rooms",
			mutate:    func(r *model.ReservationRequest) { r.RoomIDs = nil },
			wantError: true,
		},
		{
			name:      "duplicate rooms",
			mutate:    func(r *model.ReservationRequest) { r.RoomIDs = []int64{101, 101} },
			wantError: true,
		},
		{
			name:      "non-positive room id",
			mutate:    func(r *model.ReservationRequest) { r.RoomIDs = []int64{101, 0} },
			wantError: true,
		},
		{
			name: "too many rooms",
			mutate: func(r *model.ReservationRequest) {
				r.RoomIDs = nil
				for i := int64(1); i <= 11; i++ {
					r.RoomIDs = append(r.RoomIDs, i)
				}
			},
			wantError: true,
		},
		{
			name: "checkout before checkin",
			mutate: func(r *model.ReservationRequest) {
				r.CheckOut = r.CheckIn.AddDate(0, 0, -1)
			},
			wantError: true,
		},
		{
			name: "checkout equals checkin",
			mutate: func(r *model.ReservationRequest) {
				r.CheckOut = r.CheckIn
			},
			wantError: true,
		},
		{
			name: "checkin in the past",
			mutate: func(r *model.ReservationRequest) {
				r.CheckIn = time.Now().UTC().AddDate(0, 0, -2)
				r.CheckOut = r.CheckIn.AddDate(0, 0, 3)
			},
			wantError: true,
		},
		{
			name: "stay too long",
			mutate: func(r *model.ReservationRequest) {
				r.CheckOut = r.CheckIn.AddDate(0, 0, 31)
			},
			wantError: true,
		},
		{
			name:      "negative amount",
			mutate:    func(r *model.ReservationRequest) { r.TotalAmountCents = -1 },
			wantError: true,
		},
		{
			name:      "unknown type",
			mutate:    func(r *model.ReservationRequest) { r.Type = "phone" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := v.Validate(req)
			if tt.wantError && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	v := NewReservationValidator(logger.Discard())

	req := validRequest()
	req.CustomerID = 0
	req.RoomIDs = nil

	err := v.Validate(req)
	if err == nil {
		t.Fatal("expected error")
	}

	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) < 2 {
		t.Fatalf("expected at least 2 field errors, got %d: %v", len(verrs), verrs)
	}
}
