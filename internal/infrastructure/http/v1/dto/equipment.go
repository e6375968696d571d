package dto

import (
	"docjournal/internal/domain/ledger"
)

// CreateEquipmentRequest registers a piece of equipment.
type CreateEquipmentRequest struct {
	EqType        string  `json:"eqType" binding:"required"`
	FactoryNo     *string `json:"factoryNo,omitempty"`
	OrderNo       *string `json:"orderNo,omitempty"`
	Label         *string `json:"label,omitempty"`
	StationNo     *string `json:"stationNo,omitempty"`
	StationObject *string `json:"stationObject,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateEquipmentRequest) ToEntity() *ledger.Equipment {
	return &ledger.Equipment{
		EqType:        r.EqType,
		FactoryNo:     r.FactoryNo,
		OrderNo:       r.OrderNo,
		Label:         r.Label,
		StationNo:     r.StationNo,
		StationObject: r.StationObject,
		Notes:         r.Notes,
	}
}
