package dto

import (
	"time"

	"docjournal/internal/core/numerator"
	"docjournal/internal/domain/ledger"
	"docjournal/internal/domain/reservation"
)

// --- Request DTOs ---

// StartSessionRequest opens a session with count ordinary numbers.
type StartSessionRequest struct {
	EquipmentID int64 `json:"equipmentId" binding:"required,gt=0"`
	Count       int   `json:"count" binding:"required"`
	TTLSeconds  int   `json:"ttlSeconds,omitempty" binding:"gte=0"`
}

// ToDomain converts to the engine request.
func (r StartSessionRequest) ToDomain() reservation.StartRequest {
	return reservation.StartRequest{
		EquipmentID: r.EquipmentID,
		Count:       r.Count,
		TTL:         ttl(r.TTLSeconds),
	}
}

// AddNumbersRequest extends an active session by its own TTL. At most one of
// Count, Numbers and Golden may be set; an empty request only slides the expiry.
type AddNumbersRequest struct {
	Count   int     `json:"count,omitempty" binding:"gte=0"`
	Numbers []int64 `json:"numbers,omitempty"`
	Golden  int     `json:"golden,omitempty" binding:"gte=0"`
}

// ToDomain converts to the engine request.
func (r AddNumbersRequest) ToDomain() reservation.AddRequest {
	return reservation.AddRequest{
		Count:   r.Count,
		Numbers: r.Numbers,
		Golden:  r.Golden,
	}
}

// --- Response DTOs ---

// SessionResponse describes a reservation session.
type SessionResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	EquipmentID    int64     `json:"equipmentId"`
	RequestedCount int       `json:"requestedCount"`
	Status         string    `json:"status"`
	TTLSeconds     int       `json:"ttlSeconds"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// FromSession maps a session, reporting overdue active sessions as expired.
func FromSession(s *ledger.Session, now time.Time) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		UserID:         s.UserID,
		EquipmentID:    s.EquipmentID,
		RequestedCount: s.RequestedCount,
		Status:         string(s.EffectiveStatus(now)),
		TTLSeconds:     s.TTLSeconds,
		CreatedAt:      s.CreatedAt,
		ExpiresAt:      s.ExpiresAt,
	}
}

// ReservationResponse is a session with the numbers just reserved in it.
type ReservationResponse struct {
	Session SessionResponse `json:"session"`
	Numbers []NumberDTO     `json:"numbers"`
}

// FromReservation maps an engine result.
func FromReservation(r *reservation.Reservation, format numerator.Config, now time.Time) ReservationResponse {
	return ReservationResponse{
		Session: FromSession(r.Session, now),
		Numbers: FromNumerics(format, r.Numbers),
	}
}

// ReservedResponse lists the numbers a session currently holds.
type ReservedResponse struct {
	SessionID string      `json:"sessionId"`
	Numbers   []NumberDTO `json:"numbers"`
}

// FromReserved maps ledger entries held by a session.
func FromReserved(sessionID string, entries []ledger.NumberEntry, format numerator.Config) ReservedResponse {
	out := make([]NumberDTO, len(entries))
	for i, e := range entries {
		out[i] = NumberDTO{
			Numeric:   e.Numeric,
			Number:    format.Format(e.Numeric),
			IsGolden:  e.IsGolden,
			Status:    string(e.Status),
			ExpiresAt: e.ExpiresAt,
		}
	}
	return ReservedResponse{SessionID: sessionID, Numbers: out}
}

// FinishResponse reports a cancelled or completed session.
type FinishResponse struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	Released  int64  `json:"released"`
}
