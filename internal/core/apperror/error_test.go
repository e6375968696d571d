package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		status       int
		conflict     bool
		precondition bool
		forbidden    bool
		notFound     bool
	}{
		{name: "duplicate", err: NewDuplicate("document", "doc_name", "Doc"), status: http.StatusConflict, conflict: true},
		{name: "unavailable", err: NewNumbersUnavailable("none left", 3, 0), status: http.StatusConflict, conflict: true},
		{name: "not reserved", err: NewNumberNotReserved(42, "s1"), status: http.StatusUnprocessableEntity, precondition: true},
		{name: "inactive", err: NewSessionNotActive("s1", "expired"), status: http.StatusUnprocessableEntity, precondition: true},
		{name: "forbidden", err: NewForbidden("admins only"), status: http.StatusForbidden, forbidden: true},
		{name: "not found", err: NewNotFound("session", "s1"), status: http.StatusNotFound, notFound: true},
		{name: "plain", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.Equal(t, tt.status, GetHTTPStatus(wrapped))
			assert.Equal(t, tt.conflict, IsConflict(wrapped))
			assert.Equal(t, tt.precondition, IsPrecondition(wrapped))
			assert.Equal(t, tt.forbidden, IsForbidden(wrapped))
			assert.Equal(t, tt.notFound, IsNotFound(wrapped))
		})
	}
}

func TestSchemaNotReadyKeepsCause(t *testing.T) {
	cause := errors.New(`relation "doc_numbers" does not exist`)
	err := NewSchemaNotReady(cause)

	require.True(t, IsSchemaNotReady(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "SCHEMA_NOT_READY")
}

func TestWithDetail(t *testing.T) {
	err := NewConflict("taken").WithDetail("numeric", int64(700))
	assert.Equal(t, int64(700), err.Details["numeric"])
}
