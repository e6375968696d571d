package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSessionID(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()

	assert.NotEqual(t, a, b)
	assert.True(t, ValidSessionID(a))
	assert.False(t, ValidSessionID("not-a-session"))
	assert.False(t, ValidSessionID(""))
}
