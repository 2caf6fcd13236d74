package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shawn/tankwatch/internal/api"
	"github.com/shawn/tankwatch/internal/auth"
	"github.com/shawn/tankwatch/internal/contacts"
	"github.com/shawn/tankwatch/internal/dispatch"
	"github.com/shawn/tankwatch/internal/registry"
	"github.com/shawn/tankwatch/internal/settings"
	"github.com/shawn/tankwatch/internal/sophia"
	"github.com/shawn/tankwatch/internal/tank"
	"github.com/shawn/tankwatch/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tokenA = "token-a"
	tokenB = "token-b"
)

type testEnv struct {
	handler http.Handler
	reg     *registry.Registry
	store   *registry.MockStore
	dir     *contacts.MockDirectory
}

func newTestEnv(t *testing.T, chat *sophia.Client) *testEnv {
	t.Helper()
	store := registry.NewMock()
	dir := contacts.NewMock(contacts.Contact{ID: "c1", Name: "Ana"})
	reg := registry.New(store, dir)
	d := dispatch.New(reg, dir, auth.NewKeyRing(nil), dispatch.Config{})
	authn := auth.NewAuthenticator(map[string]string{tokenA: "owner-a", tokenB: "owner-b"})
	h := api.New(reg, settings.NewMock(), d, chat, authn)
	return &testEnv{handler: h.Router(), reg: reg, store: store, dir: dir}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_RequiresBearer(t *testing.T) {
	e := newTestEnv(t, nil)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/webhooks", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/webhooks", "wrong", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/api/alerts/inspection", "", "[]").Code)
}

func TestCreateWebhook(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/webhooks", tokenA, map[string]any{
		"name":        "frota",
		"integration": "slingflow",
		"eventType":   "inspection_alert",
		"contactIds":  []string{"c1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decodeBody[webhook.Registration](t, rec)
	assert.NotEmpty(t, got.ID)
	assert.True(t, got.Active)
	assert.Equal(t, webhook.IntegrationSlingFlow, got.Integration)

	stored, err := e.reg.Get(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, stored.ContactIDs)
}

func TestCreateWebhook_ValidationErrors(t *testing.T) {
	e := newTestEnv(t, nil)
	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"slingflow without contacts", map[string]any{"name": "s", "integration": "slingflow"}, "contactIds"},
		{"sophia without url", map[string]any{"name": "s", "integration": "sophia_ai"}, "url"},
		{"generic bad url", map[string]any{"name": "g", "url": "not a url"}, "url"},
		{"unknown event", map[string]any{"name": "g", "url": "https://x.example.com", "eventType": "nope"}, "eventType"},
		{"malformed", "{", "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/webhooks", tokenA, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody[map[string]string](t, rec)
			assert.Equal(t, tt.field, body["field"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestWebhookLifecycle(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/webhooks", tokenA, map[string]any{
		"name": "g", "url": "https://hooks.example.com/a",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[webhook.Registration](t, rec).ID

	rec = e.do(t, http.MethodPatch, "/api/webhooks/"+id, tokenA, map[string]any{"name": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "renamed", decodeBody[webhook.Registration](t, rec).Name)

	// switching to sophia_ai while clearing the url violates the merged invariants
	rec = e.do(t, http.MethodPatch, "/api/webhooks/"+id, tokenA, map[string]any{"integration": "sophia_ai", "url": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/webhooks/"+id+"/disable", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[webhook.Registration](t, rec).Active)

	rec = e.do(t, http.MethodPost, "/api/webhooks/"+id+"/disable", tokenA, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/webhooks/"+id+"/enable", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[webhook.Registration](t, rec).Active)

	rec = e.do(t, http.MethodGet, "/api/webhooks/"+id, tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "renamed", decodeBody[webhook.Registration](t, rec).Name)

	rec = e.do(t, http.MethodGet, "/api/webhooks", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]webhook.Registration](t, rec), 1)
}

func TestWebhook_NotFound(t *testing.T) {
	e := newTestEnv(t, nil)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/webhooks/wh-nope"},
		{http.MethodPatch, "/api/webhooks/wh-nope"},
		{http.MethodPost, "/api/webhooks/wh-nope/disable"},
		{http.MethodPost, "/api/webhooks/wh-nope/enable"},
	} {
		rec := e.do(t, tc.method, tc.path, tokenA, map[string]any{})
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestListWebhooks_EmptyIsArray(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/api/webhooks", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestEnableWebhook_MissingContact(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()
	reg, err := e.reg.Register(ctx, webhook.Input{Name: "s", Integration: webhook.IntegrationSlingFlow, ContactIDs: []string{"c1"}})
	require.NoError(t, err)
	_, err = e.reg.Disable(ctx, reg.ID)
	require.NoError(t, err)
	require.NoError(t, e.dir.Delete(ctx, "c1"))

	rec := e.do(t, http.MethodPost, "/api/webhooks/"+reg.ID+"/enable", tokenA, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "contactIds", decodeBody[map[string]string](t, rec)["field"])
}

func TestThresholds_DefaultsAndUpdate(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/api/settings/thresholds", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"threshold_critico":20,"threshold_atencao":50}`, rec.Body.String())

	rec = e.do(t, http.MethodPut, "/api/settings/thresholds", tokenA, map[string]any{"threshold_critico": 15, "threshold_atencao": 40})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/settings/thresholds", tokenA, nil)
	assert.JSONEq(t, `{"threshold_critico":15,"threshold_atencao":40}`, rec.Body.String())

	// owners are isolated
	rec = e.do(t, http.MethodGet, "/api/settings/thresholds", tokenB, nil)
	assert.JSONEq(t, `{"threshold_critico":20,"threshold_atencao":50}`, rec.Body.String())
}

func TestThresholds_Rejected(t *testing.T) {
	e := newTestEnv(t, nil)
	for _, body := range []any{
		map[string]any{"threshold_critico": 50, "threshold_atencao": 50},
		map[string]any{"threshold_critico": 60, "threshold_atencao": 30},
		map[string]any{"threshold_critico": 10},
		map[string]any{"threshold_critico": 10, "threshold_atencao": 120},
		"nope",
	} {
		rec := e.do(t, http.MethodPut, "/api/settings/thresholds", tokenA, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%v", body)
	}
	rec := e.do(t, http.MethodGet, "/api/settings/thresholds", tokenA, nil)
	assert.JSONEq(t, `{"threshold_critico":20,"threshold_atencao":50}`, rec.Body.String())
}

func TestTankStatus(t *testing.T) {
	e := newTestEnv(t, nil)
	body := `[
		{"tankId":"t1","capacity":1000,"currentVolume":150},
		{"tankId":"t2","capacity":1000,"currentVolume":350},
		{"tankId":"t3","capacity":1000,"currentVolume":800},
		{"tankId":"t4","capacity":1000,"currentVolume":1000,"waterAmount":3}
	]`
	rec := e.do(t, http.MethodPost, "/api/tanks/status", tokenA, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		Counts map[string]int `json:"counts"`
		Tanks  []struct {
			TankID string `json:"tankId"`
			Status string `json:"status"`
		} `json:"tanks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, map[string]int{"alerta": 1, "critico": 1, "atencao": 1, "operacional": 1}, got.Counts)
	require.Len(t, got.Tanks, 4)
	assert.Equal(t, "critico", got.Tanks[0].Status)
	assert.Equal(t, "alerta", got.Tanks[3].Status)
}

func TestTankStatus_ZeroCapacity(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/tanks/status", tokenA, `[{"tankId":"t1","capacity":0,"currentVolume":10}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTankStatus_NonFiniteNumbers(t *testing.T) {
	e := newTestEnv(t, nil)
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"nan volume", `[{"tankId":"t1","currentVolume":"NaN","capacity":100}]`, "currentVolume"},
		{"infinite capacity", `[{"tankId":"t1","currentVolume":10,"capacity":"Infinity"}]`, "capacity"},
		{"negative infinite water", `[{"Tanque":"t1","currentVolume":10,"capacity":100,"QuantidadeDeAgua":"-Inf"}]`, "QuantidadeDeAgua"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/tanks/status", tokenA, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decodeBody[map[string]string](t, rec)
			assert.Equal(t, tt.field, body["field"])
		})
	}
}

func TestSendInspectionAlerts_InfiniteWaterRejected(t *testing.T) {
	var hits atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	e := newTestEnv(t, nil)
	ctx := context.Background()
	_, err := e.reg.Register(ctx, webhook.Input{Name: "generic", URL: hook.URL})
	require.NoError(t, err)
	_, err = e.reg.Register(ctx, webhook.Input{Name: "sophia", URL: hook.URL, Integration: webhook.IntegrationSophiaAI})
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/api/alerts/inspection", tokenA, `[{"Tanque":"t1","QuantidadeDeAgua":"Inf"}]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rep := decodeBody[dispatch.Report](t, rec)
	assert.False(t, rep.OverallSuccess)
	assert.Contains(t, rep.Message, "QuantidadeDeAgua")
	assert.Empty(t, rep.Results)
	assert.Zero(t, hits.Load())
}

func TestSendInspectionAlerts(t *testing.T) {
	var hits atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer failing.Close()

	e := newTestEnv(t, nil)
	ctx := context.Background()
	_, err := e.reg.Register(ctx, webhook.Input{Name: "ok", URL: hook.URL})
	require.NoError(t, err)
	_, err = e.reg.Register(ctx, webhook.Input{Name: "bad", URL: failing.URL})
	require.NoError(t, err)

	body := `[{"Cliente":"Rede","Unidade":"Posto 1","Tanque":"3","Produto":"Diesel","QuantidadeDeAgua":2,"DataMedicao":"2024-05-02"}]`
	rec := e.do(t, http.MethodPost, "/api/alerts/inspection", tokenA, body)
	require.Equal(t, http.StatusOK, rec.Code)

	rep := decodeBody[dispatch.Report](t, rec)
	assert.True(t, rep.OverallSuccess)
	require.Len(t, rep.Results, 2)
	assert.True(t, rep.Results[0].Success)
	assert.False(t, rep.Results[1].Success)
	assert.Equal(t, http.StatusInternalServerError, rep.Results[1].StatusCode)
	assert.EqualValues(t, 1, hits.Load())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw, "resultados")
	assert.Contains(t, raw, "message")
}

func TestSendInspectionAlerts_NothingToSend(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/alerts/inspection", tokenA, `[{"Tanque":"1","QuantidadeDeAgua":0}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"no tanks with water detected","resultados":[]}`, rec.Body.String())
}

func TestSendInspectionAlerts_BadBody(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/alerts/inspection", tokenA, `{"Tanque":"1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rep := decodeBody[dispatch.Report](t, rec)
	assert.False(t, rep.OverallSuccess)
	assert.NotNil(t, rep.Results)
}

func TestSendInspectionAlerts_RegistryDown(t *testing.T) {
	e := newTestEnv(t, nil)
	e.store.Err = errors.New("dynamodb unreachable")
	rec := e.do(t, http.MethodPost, "/api/alerts/inspection", tokenA, `[{"Tanque":"1","QuantidadeDeAgua":1}]`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dynamodb")
}

type stubSender struct{ got []tank.Reading }

func (s *stubSender) SendInspectionAlerts(_ context.Context, readings []tank.Reading) (dispatch.Report, error) {
	s.got = readings
	return dispatch.Report{Message: "stub", Results: []dispatch.Result{}}, nil
}

func TestSendInspectionAlerts_PassesAllReadings(t *testing.T) {
	stub := &stubSender{}
	authn := auth.NewAuthenticator(nil)
	h := api.New(registry.New(registry.NewMock(), nil), settings.NewMock(), stub, nil, authn)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/inspection",
		strings.NewReader(`[{"Tanque":"1","QuantidadeDeAgua":0},{"Tanque":"2","QuantidadeDeAgua":1}]`))
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, stub.got, 2)
}

func TestSophiaChat_NotConfigured(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/sophia/chat", tokenA, map[string]any{"message": "oi"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	e = newTestEnv(t, sophia.New("", nil))
	rec = e.do(t, http.MethodPost, "/api/sophia/chat", tokenA, map[string]any{"message": "oi"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSophiaChat_Proxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sophia.Reply{Reply: "tudo certo", ConversationID: "c-9"})
	}))
	defer upstream.Close()

	e := newTestEnv(t, sophia.New(upstream.URL, nil))
	rec := e.do(t, http.MethodPost, "/api/sophia/chat", tokenA, map[string]any{"message": "status dos tanques?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tudo certo", decodeBody[sophia.Reply](t, rec).Reply)
}

func TestSophiaChat_UpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	e := newTestEnv(t, sophia.New(upstream.URL, nil))
	rec := e.do(t, http.MethodPost, "/api/sophia/chat", tokenA, map[string]any{"message": "oi"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
