package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docjournal/internal/domain/reservation"
)

func TestAddNumbersRequest_ToDomain(t *testing.T) {
	var req AddNumbersRequest
	require.NoError(t, json.Unmarshal([]byte(`{"golden":2,"numbers":[7],"count":1}`), &req))

	assert.Equal(t, reservation.AddRequest{Count: 1, Numbers: []int64{7}, Golden: 2}, req.ToDomain())
}

func TestStartSessionRequest_ToDomain(t *testing.T) {
	req := StartSessionRequest{EquipmentID: 3, Count: 2, TTLSeconds: 90}

	got := req.ToDomain()
	assert.Equal(t, int64(3), got.EquipmentID)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, "1m30s", got.TTL.String())
}
