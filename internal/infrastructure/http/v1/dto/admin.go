package dto

import (
	"time"

	"docjournal/internal/core/numerator"
	"docjournal/internal/domain/ledger"
	"docjournal/internal/domain/reservation"
)

// GoldenReserveRequest reserves golden numbers, into SessionID when given or
// into a new session for EquipmentID.
type GoldenReserveRequest struct {
	SessionID   string `json:"sessionId,omitempty"`
	EquipmentID int64  `json:"equipmentId,omitempty" binding:"gte=0"`
	Quantity    int    `json:"quantity" binding:"required"`
	TTLSeconds  int    `json:"ttlSeconds,omitempty" binding:"gte=0"`
}

// ToDomain converts to the engine request.
func (r GoldenReserveRequest) ToDomain() reservation.GoldenRequest {
	return reservation.GoldenRequest{
		SessionID:   r.SessionID,
		EquipmentID: r.EquipmentID,
		Quantity:    r.Quantity,
		TTL:         ttl(r.TTLSeconds),
	}
}

// SpecificReserveRequest reserves exact numerics.
type SpecificReserveRequest struct {
	EquipmentID int64   `json:"equipmentId" binding:"required,gt=0"`
	Numbers     []int64 `json:"numbers" binding:"required,min=1"`
	TTLSeconds  int     `json:"ttlSeconds,omitempty" binding:"gte=0"`
}

// ToDomain converts to the engine request.
func (r SpecificReserveRequest) ToDomain() reservation.SpecificRequest {
	return reservation.SpecificRequest{
		EquipmentID: r.EquipmentID,
		Numbers:     r.Numbers,
		TTL:         ttl(r.TTLSeconds),
	}
}

// SuggestResponse lists free golden numbers.
type SuggestResponse struct {
	Numbers []NumberDTO `json:"numbers"`
}

// CounterResponse describes the counter and the frontiers derived from it.
type CounterResponse struct {
	BaseStart       int64     `json:"baseStart"`
	NextNormalStart int64     `json:"nextNormalStart"`
	NormalFrontier  int64     `json:"normalFrontier"`
	GoldenFrontier  int64     `json:"goldenFrontier"`
	NextNumber      string    `json:"nextNumber"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// FromCounter maps the counter row.
func FromCounter(c *ledger.Counter, format numerator.Config) CounterResponse {
	return CounterResponse{
		BaseStart:       c.BaseStart,
		NextNormalStart: c.NextNormalStart,
		NormalFrontier:  c.NormalFrontier(),
		GoldenFrontier:  c.GoldenFrontier(),
		NextNumber:      format.Format(c.NormalFrontier()),
		UpdatedAt:       c.UpdatedAt,
	}
}
