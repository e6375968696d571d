package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminPolicy_Default(t *testing.T) {
	p, err := NewAdminPolicy("", []string{"VGrubtsov", " lrshlyogin "})
	require.NoError(t, err)

	tests := []struct {
		name    string
		subject Subject
		want    bool
	}{
		{name: "listed user", subject: Subject{Username: "vgrubtsov"}, want: true},
		{name: "listed user other case", subject: Subject{Username: "LRShlyogin"}, want: true},
		{name: "admin role", subject: Subject{Username: "someone", Roles: []string{"admin"}}, want: true},
		{name: "plain user", subject: Subject{Username: "someone", Roles: []string{"user"}}, want: false},
		{name: "empty", subject: Subject{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsAdmin(tt.subject))
		})
	}
}

func TestAdminPolicy_Custom(t *testing.T) {
	p, err := NewAdminPolicy(`"registry-admin" in roles`, nil)
	require.NoError(t, err)

	assert.True(t, p.IsAdmin(Subject{Username: "a", Roles: []string{"registry-admin"}}))
	assert.False(t, p.IsAdmin(Subject{Username: "a", Roles: []string{"admin"}}))
}

func TestAdminPolicy_Invalid(t *testing.T) {
	_, err := NewAdminPolicy(`username +`, nil)
	assert.Error(t, err)

	_, err = NewAdminPolicy(`username`, nil)
	assert.Error(t, err, "non-bool expressions are rejected")
}

func TestAdminPolicy_Nil(t *testing.T) {
	var p *AdminPolicy
	assert.False(t, p.IsAdmin(Subject{Username: "x"}))
}
