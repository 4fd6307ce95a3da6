package router

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/dashboard"
	"github.com/skillswap/backend/internal/handlers"
	"github.com/skillswap/backend/internal/ledger"
	"github.com/skillswap/backend/internal/registry"
	"github.com/skillswap/backend/internal/repository/memory"
	"github.com/skillswap/backend/internal/services"
)

type apiClient struct {
	t   *testing.T
	srv *httptest.Server
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := ledger.NewService(store.Accounts, store.Credits)
	authSvc := auth.NewService(store, store.Accounts, l, "test-secret", 10)
	v, err := services.NewValidator()
	require.NoError(t, err)

	h := Handlers{
		Auth:      auth.NewHandler(authSvc, logger),
		Skills:    registry.NewHandler(registry.NewService(store.Skills), logger),
		Bookings:  handlers.NewBookingHandler(services.NewBookingService(store, store.Bookings, store.Skills, l, logger), logger),
		Dashboard: dashboard.NewHandler(store.Accounts, ledger.NewAuditor(store.Accounts, store.Credits), logger),
	}
	srv := httptest.NewServer(New(h, authSvc, v, logger))
	t.Cleanup(srv.Close)
	return &apiClient{t: t, srv: srv}
}

func (c *apiClient) do(method, path, token string, body any, out any) int {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// signup registers and logs in, returning the account id and a token.
func (c *apiClient) signup(email string) (string, string) {
	c.t.Helper()
	var acc auth.AccountResponse
	require.Equal(c.t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "password123", "name": email,
	}, &acc))
	var login auth.LoginResponse
	require.Equal(c.t, http.StatusOK, c.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	}, &login))
	return acc.ID, login.Token
}

type bookingBody struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	CreditAmount int    `json:"credit_amount"`
}

type auditBody struct {
	Balance    int  `json:"balance"`
	Consistent bool `json:"consistent"`
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	api := newAPI(t)
	teacherID, teacherTok := api.signup("teacher@example.com")
	_, learnerTok := api.signup("learner@example.com")

	var skill struct {
		ID string `json:"id"`
	}
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/skills", teacherTok, map[string]any{
		"skill_name": "Guitar", "level": "beginner", "credits_per_hour": 2,
	}, &skill))

	var found struct {
		Teachers []struct {
			TeacherID string `json:"teacher_id"`
			SkillID   string `json:"skill_id"`
		} `json:"teachers"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/skills/search?skill=guitar", learnerTok, nil, &found))
	require.Len(t, found.Teachers, 1)
	assert.Equal(t, teacherID, found.Teachers[0].TeacherID)
	assert.Equal(t, skill.ID, found.Teachers[0].SkillID)

	var b bookingBody
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/bookings", learnerTok, map[string]any{
		"teacher_id": teacherID,
		"skill":      "Guitar",
		"skill_id":   skill.ID,
		"date_time":  time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"duration":   "1.5",
	}, &b))
	assert.Equal(t, "requested", b.Status)
	assert.Equal(t, 3, b.CreditAmount)

	var incoming struct {
		Bookings []bookingBody `json:"bookings"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/bookings/requests", teacherTok, nil, &incoming))
	require.Len(t, incoming.Bookings, 1)

	// Only the teacher may accept.
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/api/v1/bookings/"+b.ID+"/accept", learnerTok, nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/bookings/"+b.ID+"/accept", teacherTok, nil, &b))
	assert.Equal(t, "confirmed", b.Status)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/bookings/"+b.ID+"/complete", learnerTok, map[string]string{"as": "learner"}, &b))
	assert.Equal(t, "confirmed", b.Status)
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/bookings/"+b.ID+"/complete", teacherTok, map[string]string{"as": "teacher"}, &b))
	assert.Equal(t, "completed", b.Status)

	var rep auditBody
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/credit-ledger/audit", learnerTok, nil, &rep))
	assert.Equal(t, auditBody{Balance: 7, Consistent: true}, rep)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/credit-ledger/audit", teacherTok, nil, &rep))
	assert.Equal(t, auditBody{Balance: 13, Consistent: true}, rep)

	var errBody struct {
		Kind string `json:"kind"`
	}
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/api/v1/bookings/"+b.ID+"/cancel", learnerTok, nil, &errBody))
	assert.Equal(t, "already_completed", errBody.Kind)
}

func TestRoutesRequireToken(t *testing.T) {
	api := newAPI(t)
	for _, path := range []string{"/api/v1/account/me", "/api/v1/bookings", "/api/v1/credit-ledger"} {
		assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, path, "", nil, nil), path)
		assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, path, "not-a-token", nil, nil), path)
	}
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", "", nil, nil))

	resp, err := http.Get(api.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateBookingSchemaRejected(t *testing.T) {
	api := newAPI(t)
	_, tok := api.signup("someone@example.com")

	var errBody struct {
		Kind string `json:"kind"`
	}
	status := api.do(http.MethodPost, "/api/v1/bookings", tok, map[string]any{
		"teacher_id": "not-a-uuid", "skill": "Guitar", "date_time": "2030-01-01T10:00:00Z",
	}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation", errBody.Kind)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/v1/skills", tok, map[string]any{
		"skill_name": "Guitar", "level": "guru", "credits_per_hour": 2,
	}, nil))
}

func TestInsufficientCreditsOverHTTP(t *testing.T) {
	api := newAPI(t)
	teacherID, _ := api.signup("t@example.com")
	_, learnerTok := api.signup("l@example.com")

	var errBody struct {
		Kind string `json:"kind"`
	}
	status := api.do(http.MethodPost, "/api/v1/bookings", learnerTok, map[string]any{
		"teacher_id":       teacherID,
		"skill":            "Chess",
		"date_time":        "2030-01-01T10:00:00Z",
		"duration":         4,
		"credits_per_hour": 3,
	}, &errBody)
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "insufficient_credits", errBody.Kind)

	var me struct {
		CreditBalance int `json:"credit_balance"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/account/me", learnerTok, nil, &me))
	assert.Equal(t, 10, me.CreditBalance)
}
