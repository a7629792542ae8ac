package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkeye/seshd/internal/adapters/signal"
	"github.com/dkeye/seshd/internal/app/orch"
	"github.com/dkeye/seshd/internal/config"
	"github.com/dkeye/seshd/internal/identity"
	"github.com/dkeye/seshd/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	o := orch.New(store.NewMemory())
	ids := identity.NewStaticTokens(map[string]string{"tok-alice": "alice"})
	ws := signal.NewSignalWSController(o, nil, nil, signal.Options{})
	return SetupRouter(context.Background(), &config.Config{Mode: "test", Secret: "test-secret"}, o, ids, ws)
}

func do(r http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func Test_Create_Session_Requires_Identity(t *testing.T) {
	// Arrange
	r := newTestRouter(t)
	body := `{"id":"evening","name":"Evening","boardPath":"kilter/8/25/26,27/40","latitude":1.5,"longitude":2.5,"discoverable":true}`

	// Act
	anon := do(r, http.MethodPost, "/api/sessions", "", body)
	authed := do(r, http.MethodPost, "/api/sessions", "tok-alice", body)

	// Assert
	require.Equal(t, http.StatusUnauthorized, anon.Code)
	require.Equal(t, http.StatusCreated, authed.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(authed.Body.Bytes(), &created))
	require.Equal(t, "alice", created["createdByUserId"])
	require.NotEmpty(t, authed.Header().Get("Set-Cookie"))
}

func Test_Unknown_Token_Is_Rejected(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/whoami", "tok-mallory", "")

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"code":"unauthorized","error":"unknown token"}`, w.Body.String())
}

func Test_Session_Lookup_And_Nearby(t *testing.T) {
	// Arrange
	r := newTestRouter(t)
	created := do(r, http.MethodPost, "/api/sessions", "tok-alice",
		`{"id":"near","boardPath":"kilter/8/25/26/40","latitude":47.0,"longitude":8.0,"discoverable":true}`)
	require.Equal(t, http.StatusCreated, created.Code)

	// Act
	found := do(r, http.MethodGet, "/api/sessions/near", "", "")
	missing := do(r, http.MethodGet, "/api/sessions/nope", "", "")
	nearby := do(r, http.MethodGet, "/api/sessions/nearby?lat=47.001&lon=8.0&radius=1000", "", "")
	badLat := do(r, http.MethodGet, "/api/sessions/nearby?lat=abc&lon=8.0", "", "")
	badRadius := do(r, http.MethodGet, "/api/sessions/nearby?lat=47&lon=8&radius=10", "", "")

	// Assert
	require.Equal(t, http.StatusOK, found.Code)
	require.Contains(t, found.Body.String(), `"participantCount":0`)
	require.Equal(t, http.StatusNotFound, missing.Code)
	require.Equal(t, http.StatusOK, nearby.Code)
	var res nearbyResponse
	require.NoError(t, json.Unmarshal(nearby.Body.Bytes(), &res))
	require.Len(t, res.Sessions, 1)
	require.Equal(t, "near", string(res.Sessions[0].ID))
	require.Equal(t, http.StatusBadRequest, badLat.Code)
	require.Equal(t, http.StatusBadRequest, badRadius.Code)
}

func Test_Identity_Is_Remembered_In_Cookie_Session(t *testing.T) {
	r := newTestRouter(t)
	first := do(r, http.MethodGet, "/api/whoami", "tok-alice", "")
	require.Equal(t, http.StatusOK, first.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	for _, c := range first.Result().Cookies() {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.JSONEq(t, `{"userId":"alice"}`, w.Body.String())
}

func Test_Health(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/healthz", "", "")

	require.Equal(t, http.StatusOK, w.Code)
}

func Test_BearerToken(t *testing.T) {
	require.Equal(t, "abc", bearerToken("Bearer abc"))
	require.Equal(t, "abc", bearerToken("bearer abc"))
	require.Empty(t, bearerToken("Basic abc"))
	require.Empty(t, bearerToken(""))
}
