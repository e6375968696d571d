package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadNumerics(t *testing.T) {
	in := "# exported 2024-01\nУТЗ-000123\n\n  456 \nУТЗ-001000\n"

	got, err := readNumerics(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []int64{123, 456, 1000}, got)
}

func TestReadNumericsRejectsGarbage(t *testing.T) {
	_, err := readNumerics(strings.NewReader("12\nabc\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"transformer", "reactor"}, splitList(" transformer, ,reactor"))
	assert.Nil(t, splitList(""))
}
