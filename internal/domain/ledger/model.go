// Package ledger holds the entities of the document-number journal and the
// storage contracts the reservation engine and the registry work against.
package ledger

import (
	"strconv"
	"strings"
	"time"

	"docjournal/internal/core/apperror"
	"docjournal/internal/core/numerator"
)

// NumberStatus is the lifecycle state of a ledger entry.
type NumberStatus string

const (
	StatusReserved NumberStatus = "reserved"
	StatusAssigned NumberStatus = "assigned"
	StatusReleased NumberStatus = "released"
)

// SessionStatus is the lifecycle state of a reservation session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCancelled SessionStatus = "cancelled"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

// IsTerminal reports whether no further transitions are allowed.
func (s SessionStatus) IsTerminal() bool {
	return s != SessionActive
}

// Counter is the singleton allocation state.
type Counter struct {
	BaseStart       int64     `db:"base_start" json:"baseStart"`
	NextNormalStart int64     `db:"next_normal_start" json:"nextNormalStart"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// NormalFrontier is the first candidate for a freshly minted normal number.
func (c Counter) NormalFrontier() int64 {
	return numerator.NormalFrontier(c.BaseStart, c.NextNormalStart)
}

// GoldenFrontier is the first candidate for a freshly minted golden number.
func (c Counter) GoldenFrontier() int64 {
	return numerator.GoldenFrontier(c.BaseStart, c.NextNormalStart)
}

// NumberEntry is one row of the ledger. A numeric has at most one entry ever;
// status changes happen in place.
type NumberEntry struct {
	Numeric    int64        `db:"numeric" json:"numeric"`
	IsGolden   bool         `db:"is_golden" json:"isGolden"`
	Status     NumberStatus `db:"status" json:"status"`
	ReservedBy *string      `db:"reserved_by" json:"reservedBy,omitempty"`
	SessionID  *string      `db:"session_id" json:"sessionId,omitempty"`
	ReservedAt *time.Time   `db:"reserved_at" json:"reservedAt,omitempty"`
	AssignedAt *time.Time   `db:"assigned_at" json:"assignedAt,omitempty"`
	ReleasedAt *time.Time   `db:"released_at" json:"releasedAt,omitempty"`
	ExpiresAt  *time.Time   `db:"expires_at" json:"expiresAt,omitempty"`
}

// HeldBy reports whether the entry is reserved under sessionID and not yet expired at now.
func (e *NumberEntry) HeldBy(sessionID string, now time.Time) bool {
	if e.Status != StatusReserved || e.SessionID == nil || *e.SessionID != sessionID {
		return false
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// Hold describes who is reserving numbers and until when.
type Hold struct {
	UserID     string
	SessionID  string
	ReservedAt time.Time
	ExpiresAt  time.Time
}

// Session groups reservations under one TTL.
type Session struct {
	ID             string        `db:"id" json:"id"`
	UserID         string        `db:"user_id" json:"userId"`
	EquipmentID    int64         `db:"equipment_id" json:"equipmentId"`
	RequestedCount int           `db:"requested_count" json:"requestedCount"`
	Status         SessionStatus `db:"status" json:"status"`
	TTLSeconds     int           `db:"ttl_seconds" json:"ttlSeconds"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	ExpiresAt      time.Time     `db:"expires_at" json:"expiresAt"`
}

// TTL returns the session time-to-live.
func (s *Session) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// IsActive reports whether numbers may still be drawn from the session at now.
// An active session past its expiry is treated as expired even if the sweeper
// has not flipped it yet.
func (s *Session) IsActive(now time.Time) bool {
	return s.Status == SessionActive && s.ExpiresAt.After(now)
}

// EffectiveStatus is Status with overdue active sessions reported as expired.
func (s *Session) EffectiveStatus(now time.Time) SessionStatus {
	if s.Status == SessionActive && !s.ExpiresAt.After(now) {
		return SessionExpired
	}
	return s.Status
}

// Actor is the caller on whose behalf an operation runs.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// CanAccess reports whether the actor may act on the session.
func (a Actor) CanAccess(s *Session) bool {
	return a.IsAdmin || s.UserID == a.UserID
}

// MayHold reports whether the actor may receive the numeric.
func (a Actor) MayHold(numeric int64) bool {
	return a.IsAdmin || !numerator.IsGolden(numeric)
}

// Document binds one assigned numeric to a piece of equipment.
type Document struct {
	ID          int64     `db:"id" json:"id"`
	Numeric     int64     `db:"numeric" json:"numeric"`
	RegDate     time.Time `db:"reg_date" json:"regDate"`
	DocName     string    `db:"doc_name" json:"docName"`
	Note        *string   `db:"note" json:"note,omitempty"`
	EquipmentID int64     `db:"equipment_id" json:"equipmentId"`
	UserID      string    `db:"user_id" json:"userId"`
}

// DocumentFields are the caller-supplied parts of a Document.
type DocumentFields struct {
	DocName string
	Note    string
	RegDate time.Time
}

// Normalize trims the free-text fields.
func (f DocumentFields) Normalize() DocumentFields {
	f.DocName = strings.TrimSpace(f.DocName)
	f.Note = strings.TrimSpace(f.Note)
	return f
}

// Validate checks required fields.
func (f DocumentFields) Validate() error {
	if strings.TrimSpace(f.DocName) == "" {
		return apperror.NewValidation("doc_name is required").WithDetail("field", "doc_name")
	}
	return nil
}

// UniqueKey is the identity used to detect duplicate filings.
func (d *Document) UniqueKey() string {
	note := ""
	if d.Note != nil {
		note = *d.Note
	}
	return strings.ToLower(d.DocName) + "\x00" + strings.ToLower(note) + "\x00" + strconv.FormatInt(d.EquipmentID, 10)
}

// Equipment is a piece of equipment documents are filed against.
type Equipment struct {
	ID            int64     `db:"id" json:"id"`
	EqType        string    `db:"eq_type" json:"eqType"`
	FactoryNo     *string   `db:"factory_no" json:"factoryNo,omitempty"`
	OrderNo       *string   `db:"order_no" json:"orderNo,omitempty"`
	Label         *string   `db:"label" json:"label,omitempty"`
	StationNo     *string   `db:"station_no" json:"stationNo,omitempty"`
	StationObject *string   `db:"station_object" json:"stationObject,omitempty"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Validate checks required fields and drops blank optional ones.
func (e *Equipment) Validate() error {
	e.EqType = strings.TrimSpace(e.EqType)
	if e.EqType == "" {
		return apperror.NewValidation("eq_type is required").WithDetail("field", "eq_type")
	}
	for _, p := range []**string{&e.FactoryNo, &e.OrderNo, &e.Label, &e.StationNo, &e.StationObject, &e.Notes} {
		if *p == nil {
			continue
		}
		v := strings.TrimSpace(**p)
		if v == "" {
			*p = nil
			continue
		}
		*p = &v
	}
	return nil
}
