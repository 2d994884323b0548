package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slotswap/internal/auth"
	"github.com/roach88/slotswap/internal/domain"
	"github.com/roach88/slotswap/internal/engine"
	"github.com/roach88/slotswap/internal/query"
	"github.com/roach88/slotswap/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	clock := testutil.NewFakeClock()
	s := testutil.NewStore(t, clock)
	tokens, err := auth.NewTokens("test-secret", 30*time.Minute)
	require.NoError(t, err)

	router := NewRouter(Deps{
		Engine: engine.New(s, engine.WithClock(clock)),
		Query:  query.New(s),
		Auth:   auth.NewService(s, tokens),
		DB:     s,
	}, Config{RequestTimeout: 5 * time.Second, CORSOrigins: []string{"*"}})
	return &apiClient{t: t, router: router}
}

func (a *apiClient) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *apiClient) json(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = strings.NewReader(string(b))
	}
	return a.do(method, path, token, r, "application/json")
}

// register signs name up and logs in, returning a bearer token.
func (a *apiClient) register(name string) string {
	a.t.Helper()
	email := name + "@example.com"
	w := a.json(http.MethodPost, "/signup", "", gin.H{"name": name, "email": email, "password": "pw-" + name})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	form := url.Values{"username": {email}, "password": {"pw-" + name}}
	w = a.do(http.MethodPost, "/login", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var tok auth.AccessToken
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &tok))
	assert.Equal(a.t, "bearer", tok.TokenType)
	return tok.AccessToken
}

type eventBody struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"owner_id"`
	UserID  int64  `json:"user_id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
}

type swapBody struct {
	ID             int64      `json:"id"`
	Status         string     `json:"status"`
	RequesterID    int64      `json:"requester_id"`
	ResponderID    int64      `json:"responder_id"`
	RequesterEvent *eventBody `json:"requester_event"`
	ResponderEvent *eventBody `json:"responder_event"`
}

type errBody struct {
	Detail    string `json:"detail"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (a *apiClient) createSwappable(token, title, start string) eventBody {
	a.t.Helper()
	w := a.json(http.MethodPost, "/events", token, gin.H{
		"title": title, "start_time": start, "end_time": strings.Replace(start, "T09", "T10", 1),
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	ev := decode[eventBody](a.t, w)
	assert.Equal(a.t, "BUSY", ev.Status)

	w = a.do(http.MethodPatch, "/events/"+itoa(ev.ID)+"?status=SWAPPABLE", token, nil, "")
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return decode[eventBody](a.t, w)
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestHome(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodGet, "/", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "message")
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", "", nil, "").Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/readyz", "", nil, "").Code)
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("db down") }

func TestReadyz_NotReady(t *testing.T) {
	router := NewRouter(Deps{DB: downDB{}}, Config{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSignupLoginMe(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("alice")

	w := api.do(http.MethodGet, "/me", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]any](t, w)
	assert.Equal(t, "alice@example.com", me["email"])
	assert.NotContains(t, me, "password_hash")

	w = api.json(http.MethodPost, "/signup", "", gin.H{"name": "again", "email": "ALICE@example.com", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered", decode[errBody](t, w).Detail)

	form := url.Values{"username": {"alice@example.com"}, "password": {"wrong"}}
	w = api.do(http.MethodPost, "/login", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid email or password", decode[errBody](t, w).Detail)
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/events", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "UNAUTHENTICATED", decode[errBody](t, w).Code)

	w = api.do(http.MethodGet, "/events", "not-a-token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSwapLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")
	bob := api.register("bob")

	a := api.createSwappable(alice, "alice slot", "2025-11-03T09:00")
	b := api.createSwappable(bob, "bob slot", "2025-11-04T09:00:00Z")
	assert.Equal(t, a.OwnerID, a.UserID, "user_id mirrors owner_id")

	w := api.do(http.MethodGet, "/swappable-slots", alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	slots := decode[[]eventBody](t, w)
	require.Len(t, slots, 1)
	assert.Equal(t, b.ID, slots[0].ID)

	w = api.json(http.MethodPost, "/swap-request", alice, gin.H{"my_slot_id": a.ID, "their_slot_id": b.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	swap := decode[swapBody](t, w)
	assert.Equal(t, "PENDING", swap.Status)
	require.NotNil(t, swap.RequesterEvent)
	assert.Equal(t, "LOCKED", swap.RequesterEvent.Status)

	w = api.do(http.MethodGet, "/events/swappable", alice, nil, "")
	assert.Empty(t, decode[[]eventBody](t, w), "locked slots are not offered")

	w = api.do(http.MethodGet, "/swap/incoming", bob, nil, "")
	incoming := decode[[]swapBody](t, w)
	require.Len(t, incoming, 1)
	assert.Equal(t, swap.ID, incoming[0].ID)

	w = api.json(http.MethodPost, "/swap/respond/"+itoa(swap.ID), alice, gin.H{"accept": true})
	assert.Equal(t, http.StatusForbidden, w.Code, "requester cannot answer their own request")

	w = api.json(http.MethodPost, "/swap/respond/"+itoa(swap.ID), bob, gin.H{"accept": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode[swapBody](t, w)
	assert.Equal(t, "ACCEPTED", done.Status)
	assert.Equal(t, swap.ResponderID, done.RequesterEvent.OwnerID)
	assert.Equal(t, swap.RequesterID, done.ResponderEvent.OwnerID)

	w = api.json(http.MethodPost, "/swap/respond/"+itoa(swap.ID), bob, gin.H{"accept": true})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_RESOLVED", decode[errBody](t, w).Code)

	w = api.do(http.MethodGet, "/events", alice, nil, "")
	mine := decode[[]eventBody](t, w)
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID, mine[0].ID)

	w = api.do(http.MethodGet, "/swap/outgoing", alice, nil, "")
	outgoing := decode[[]swapBody](t, w)
	require.Len(t, outgoing, 1)
	assert.Equal(t, "ACCEPTED", outgoing[0].Status)
	assert.Nil(t, outgoing[0].RequesterEvent, "list views carry the request only")
}

func TestSwapErrorsOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")
	bob := api.register("bob")
	a := api.createSwappable(alice, "a", "2025-11-03T09:00")
	a2 := api.createSwappable(alice, "a2", "2025-11-05T09:00")
	b := api.createSwappable(bob, "b", "2025-11-04T09:00")

	tests := []struct {
		name   string
		body   gin.H
		status int
		code   string
	}{
		{"self swap", gin.H{"my_slot_id": a.ID, "their_slot_id": a2.ID}, http.StatusBadRequest, "SELF_SWAP"},
		{"not owner", gin.H{"my_slot_id": b.ID, "their_slot_id": a.ID}, http.StatusForbidden, "NOT_OWNER"},
		{"missing", gin.H{"my_slot_id": a.ID, "their_slot_id": 999}, http.StatusNotFound, "NOT_FOUND"},
		{"bad body", gin.H{"my_slot_id": a.ID}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.json(http.MethodPost, "/swap/request", alice, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[errBody](t, w).Code)
		})
	}

	w := api.json(http.MethodPost, "/swap/request", alice, gin.H{"my_slot_id": a.ID, "their_slot_id": b.ID})
	require.Equal(t, http.StatusOK, w.Code)
	swap := decode[swapBody](t, w)

	w = api.json(http.MethodPost, "/swap/request", alice, gin.H{"my_slot_id": a2.ID, "their_slot_id": b.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	e := decode[errBody](t, w)
	assert.Equal(t, "CONFLICT", e.Code)
	assert.True(t, e.Retryable)

	w = api.json(http.MethodPut, "/events/"+itoa(a.ID), alice, gin.H{
		"title": "moved", "start_time": "2025-11-06T09:00", "end_time": "2025-11-06T10:00",
	})
	assert.Equal(t, http.StatusConflict, w.Code, "locked slots cannot be edited")

	w = api.do(http.MethodPatch, "/events/"+itoa(a.ID)+"?status=LOCKED", alice, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "FORBIDDEN_TRANSITION", decode[errBody](t, w).Code)

	w = api.do(http.MethodPost, "/swap/cancel/"+itoa(swap.ID), bob, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/swap/cancel/"+itoa(swap.ID), alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CANCELLED", decode[swapBody](t, w).Status)

	w = api.do(http.MethodDelete, "/events/"+itoa(a.ID), alice, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(http.MethodDelete, "/events/abc", alice, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportICS(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")
	api.createSwappable(alice, "Team standup", "2025-11-03T09:00")

	w := api.do(http.MethodGet, "/events.ics", alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Body.String(), "SUMMARY:Team standup")
}

func TestDashboard(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")
	api.createSwappable(alice, "a", "2025-11-03T09:00")

	w := api.do(http.MethodGet, "/dashboard", alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[map[string]json.RawMessage](t, w)
	assert.Contains(t, d, "my_events")
	assert.JSONEq(t, "[]", string(d["incoming"]))
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/events", nil)
	req.Header.Set("Origin", "http://localhost:5500")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	router := NewRouter(Deps{DB: downDB{}}, Config{CORSOrigins: []string{"http://app.test"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://app.test")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "http://app.test", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodOptions, "/events", nil)
	req.Header.Set("Origin", "http://evil.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodOptions, "/events", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRequestIDHeader(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/healthz", "", nil, "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, "caller-id", w.Header().Get(RequestIDHeader))
}

func TestStatusFor(t *testing.T) {
	tests := map[domain.ErrorCode]int{
		domain.ErrCodeValidation:          http.StatusBadRequest,
		domain.ErrCodeSelfSwap:            http.StatusBadRequest,
		domain.ErrCodeForbiddenTransition: http.StatusBadRequest,
		domain.ErrCodeDuplicate:           http.StatusBadRequest,
		domain.ErrCodeUnauthenticated:     http.StatusUnauthorized,
		domain.ErrCodeNotOwner:            http.StatusForbidden,
		domain.ErrCodeNotFound:            http.StatusNotFound,
		domain.ErrCodeInvalidState:        http.StatusConflict,
		domain.ErrCodeConflict:            http.StatusConflict,
		domain.ErrCodeAlreadyResolved:     http.StatusConflict,
		domain.ErrorCode("SOMETHING"):     http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, statusFor(code), code)
	}
}

func TestClientTime(t *testing.T) {
	want := time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
	for _, in := range []string{
		`"2025-11-03T09:30:00Z"`,
		`"2025-11-03T10:30:00+01:00"`,
		`"2025-11-03T09:30:00"`,
		`"2025-11-03T09:30"`,
	} {
		var ct clientTime
		require.NoError(t, json.Unmarshal([]byte(in), &ct), in)
		assert.True(t, want.Equal(ct.Time), "%s parsed as %s", in, ct.Time)
	}

	var ct clientTime
	assert.Error(t, json.Unmarshal([]byte(`"next tuesday"`), &ct))
	assert.Error(t, json.Unmarshal([]byte(`42`), &ct))
}
