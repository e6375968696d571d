package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "docjournal/internal/core/context"
	"docjournal/internal/core/numerator"
	"docjournal/internal/domain/ledger/ledgertest"
	"docjournal/internal/domain/registry"
	"docjournal/internal/domain/reservation"
	"docjournal/internal/infrastructure/http/v1/dto"
	"docjournal/internal/infrastructure/metrics"
	"docjournal/internal/infrastructure/storage/postgres"
)

type fakeValidator map[string]*appctx.UserContext

func (v fakeValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if u, ok := v[token]; ok {
		return u, nil
	}
	return nil, errors.New("unknown token")
}

type fakeProbe struct {
	pingErr error
	ready   bool
}

func (p fakeProbe) Ping(context.Context) error                { return p.pingErr }
func (p fakeProbe) SchemaReady(context.Context) (bool, error) { return p.ready, nil }
func (p fakeProbe) Stats() postgres.PoolStats                 { return postgres.PoolStats{MaxConns: 4} }

type apiFixture struct {
	t      *testing.T
	router http.Handler
	store  *ledgertest.Store
	eqID   int64
}

func newAPIFixture(t *testing.T, probe fakeProbe) *apiFixture {
	t.Helper()
	store := ledgertest.New()
	reg := prometheus.NewRegistry()
	observer := metrics.NewLedger(reg)

	router := NewRouter(RouterConfig{
		JWTValidator: fakeValidator{
			"alice-token": {UserID: "alice", Username: "alice"},
			"bob-token":   {UserID: "bob", Username: "bob"},
			"admin-token": {UserID: "root", Username: "root", IsAdmin: true},
		},
		Reservations: reservation.NewService(store, store.Repositories(), reservation.Config{},
			reservation.WithObserver(observer)),
		Registry:    registry.NewService(store, store.Repositories(), observer),
		Format:      numerator.DefaultConfig("DOC"),
		DB:          probe,
		Version:     "test",
		HTTPMetrics: metrics.NewHTTP(reg),
		Gatherer:    reg,
	})

	return &apiFixture{t: t, router: router, store: store, eqID: store.MustEquipment("transformer")}
}

func (f *apiFixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestScenario_StartAssignDuplicate(t *testing.T) {
	f := newAPIFixture(t, fakeProbe{ready: true})

	rec := f.do(http.MethodPost, "/api/v1/sessions", "alice-token",
		dto.StartSessionRequest{EquipmentID: f.eqID, Count: 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[dto.ReservationResponse](t, rec)

	require.Len(t, first.Numbers, 3)
	for _, n := range first.Numbers {
		assert.False(t, n.IsGolden)
		assert.True(t, strings.HasPrefix(n.Number, "DOC-"))
	}
	assert.Equal(t, "active", first.Session.Status)

	rec = f.do(http.MethodPost, "/api/v1/documents/assign", "alice-token", dto.AssignRequest{
		SessionID: first.Session.ID,
		Number:    first.Numbers[0].Number,
		DocName:   "Acceptance act",
		Note:      "rev A",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assigned := decode[dto.AssignResponse](t, rec)
	assert.Equal(t, first.Numbers[0].Numeric, assigned.Document.Numeric)
	assert.False(t, assigned.SessionCompleted)

	rec = f.do(http.MethodPost, "/api/v1/sessions", "alice-token",
		dto.StartSessionRequest{EquipmentID: f.eqID, Count: 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode[dto.ReservationResponse](t, rec)

	rec = f.do(http.MethodPost, "/api/v1/documents/assign", "alice-token", dto.AssignRequest{
		SessionID: second.Session.ID,
		Numeric:   second.Numbers[0].Numeric,
		DocName:   "ACCEPTANCE ACT",
		Note:      "Rev A",
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "DUPLICATE_ENTRY", decode[dto.ErrorResponse](t, rec).Code)

	rec = f.do(http.MethodGet, "/api/v1/sessions/"+second.Session.ID+"/reserved", "alice-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reserved := decode[dto.ReservedResponse](t, rec)
	require.Len(t, reserved.Numbers, 1)
	assert.Equal(t, second.Numbers[0].Numeric, reserved.Numbers[0].Numeric)

	rec = f.do(http.MethodGet, "/api/v1/documents/1", "bob-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acceptance act", decode[dto.DocumentResponse](t, rec).DocName)
}

func TestAuthAndAdminGuard(t *testing.T) {
	f := newAPIFixture(t, fakeProbe{ready: true})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{name: "missing token", method: http.MethodGet, path: "/api/v1/admin/counter", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "bad token", method: http.MethodGet, path: "/api/v1/admin/counter", token: "nope", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "non admin", method: http.MethodGet, path: "/api/v1/admin/golden-suggest", token: "alice-token", status: http.StatusForbidden, code: "FORBIDDEN"},
		{name: "admin counter", method: http.MethodGet, path: "/api/v1/admin/counter", token: "admin-token", status: http.StatusOK},
		{name: "unknown session", method: http.MethodGet, path: "/api/v1/sessions/0190b7a0-0000-7000-8000-000000000001", token: "alice-token", status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "invalid body", method: http.MethodPost, path: "/api/v1/sessions", token: "alice-token", body: map[string]any{"count": 2}, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "bad document id", method: http.MethodGet, path: "/api/v1/documents/abc", token: "alice-token", status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, decode[dto.ErrorResponse](t, rec).Code)
			}
		})
	}
}

func TestAdminGoldenAndSpecific(t *testing.T) {
	f := newAPIFixture(t, fakeProbe{ready: true})

	rec := f.do(http.MethodPost, "/api/v1/admin/golden/reserve", "admin-token",
		dto.GoldenReserveRequest{EquipmentID: f.eqID, Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	golden := decode[dto.ReservationResponse](t, rec)
	require.Len(t, golden.Numbers, 2)
	for _, n := range golden.Numbers {
		assert.True(t, n.IsGolden)
	}

	rec = f.do(http.MethodGet, "/api/v1/admin/counter", "admin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[dto.CounterResponse](t, rec).NextNormalStart)

	rec = f.do(http.MethodPost, "/api/v1/admin/reserve-specific", "admin-token",
		dto.SpecificReserveRequest{EquipmentID: f.eqID, Numbers: []int64{golden.Numbers[0].Numeric, 555}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	specific := decode[dto.ReservationResponse](t, rec)
	require.Len(t, specific.Numbers, 1)
	assert.Equal(t, int64(555), specific.Numbers[0].Numeric)

	rec = f.do(http.MethodGet, "/api/v1/admin/golden-suggest?limit=3", "admin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	suggested := decode[dto.SuggestResponse](t, rec)
	require.Len(t, suggested.Numbers, 3)
	for _, n := range suggested.Numbers {
		assert.True(t, n.IsGolden)
		assert.NotEqual(t, golden.Numbers[0].Numeric, n.Numeric)
		assert.NotEqual(t, golden.Numbers[1].Numeric, n.Numeric)
	}
}

func TestCancelReleasesNumbers(t *testing.T) {
	f := newAPIFixture(t, fakeProbe{ready: true})

	rec := f.do(http.MethodPost, "/api/v1/sessions", "alice-token",
		dto.StartSessionRequest{EquipmentID: f.eqID, Count: 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[dto.ReservationResponse](t, rec)

	rec = f.do(http.MethodPost, "/api/v1/sessions/"+res.Session.ID+"/cancel", "bob-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/sessions/"+res.Session.ID+"/cancel", "alice-token", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	finished := decode[dto.FinishResponse](t, rec)
	assert.Equal(t, int64(2), finished.Released)
	assert.Equal(t, "cancelled", finished.Status)

	rec = f.do(http.MethodPost, "/api/v1/sessions/"+res.Session.ID+"/numbers", "alice-token",
		dto.AddNumbersRequest{Count: 1})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "SESSION_NOT_ACTIVE", decode[dto.ErrorResponse](t, rec).Code)
}

func TestEquipmentEndpoints(t *testing.T) {
	f := newAPIFixture(t, fakeProbe{ready: true})
	factory := "F-100"

	rec := f.do(http.MethodPost, "/api/v1/equipment", "alice-token",
		dto.CreateEquipmentRequest{EqType: "pump", FactoryNo: &factory})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/v1/equipment", "alice-token",
		dto.CreateEquipmentRequest{EqType: "pump", FactoryNo: &factory})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t, fakeProbe{ready: false})

	rec := f.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "schema not provisioned")

	rec = f.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `docjournal_http_requests_total{method="GET",route="/health/ready",status="503"} 1`)
}
