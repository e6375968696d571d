package dto

import (
	"time"

	"docjournal/internal/core/apperror"
	"docjournal/internal/core/numerator"
	"docjournal/internal/domain/ledger"
	"docjournal/internal/domain/registry"
)

// AssignRequest files a document under a reserved number. The number is given
// either as Numeric or in printable form; neither picks the lowest reserved one.
type AssignRequest struct {
	SessionID string     `json:"sessionId" binding:"required"`
	Numeric   int64      `json:"numeric,omitempty" binding:"gte=0"`
	Number    string     `json:"number,omitempty"`
	DocName   string     `json:"docName" binding:"required"`
	Note      string     `json:"note,omitempty"`
	RegDate   *time.Time `json:"regDate,omitempty"`
}

// ToDomain converts to the assignment request.
func (r AssignRequest) ToDomain() (registry.AssignRequest, error) {
	numeric := r.Numeric
	if numeric == 0 && r.Number != "" {
		numeric = numerator.Parse(r.Number)
		if numeric < 0 {
			return registry.AssignRequest{}, apperror.NewValidation("number is not a valid document number").
				WithDetail("number", r.Number)
		}
	}

	fields := ledger.DocumentFields{DocName: r.DocName, Note: r.Note}
	if r.RegDate != nil {
		fields.RegDate = *r.RegDate
	}

	return registry.AssignRequest{
		SessionID: r.SessionID,
		Numeric:   numeric,
		Fields:    fields,
	}, nil
}

// DocumentResponse describes a filed document.
type DocumentResponse struct {
	ID          int64     `json:"id"`
	Numeric     int64     `json:"numeric"`
	Number      string    `json:"number"`
	RegDate     time.Time `json:"regDate"`
	DocName     string    `json:"docName"`
	Note        *string   `json:"note,omitempty"`
	EquipmentID int64     `json:"equipmentId"`
	UserID      string    `json:"userId"`
}

// FromDocument maps a document.
func FromDocument(d *ledger.Document, format numerator.Config) DocumentResponse {
	return DocumentResponse{
		ID:          d.ID,
		Numeric:     d.Numeric,
		Number:      format.Format(d.Numeric),
		RegDate:     d.RegDate,
		DocName:     d.DocName,
		Note:        d.Note,
		EquipmentID: d.EquipmentID,
		UserID:      d.UserID,
	}
}

// AssignResponse is the filed document and what happened to its session.
type AssignResponse struct {
	Document         DocumentResponse `json:"document"`
	SessionCompleted bool             `json:"sessionCompleted"`
	Released         int64            `json:"released"`
}

// FromAssign maps an assignment result.
func FromAssign(r *registry.AssignResult, format numerator.Config) AssignResponse {
	return AssignResponse{
		Document:         FromDocument(r.Document, format),
		SessionCompleted: r.SessionCompleted,
		Released:         r.Released,
	}
}
