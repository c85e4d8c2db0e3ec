package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/lobbysync/internal/api"
	"github.com/mcoot/lobbysync/internal/api/apierr"
	"github.com/mcoot/lobbysync/internal/api/response"
	"github.com/mcoot/lobbysync/internal/factory"
	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/testutil"
)

type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:          testutil.NopLogger(),
		AuthService:     app.AuthService,
		LobbyController: app.LobbyController,
		RosterService:   app.RosterService,
		Hub:             app.Hub,
		Publisher:       app.Broadcaster,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) newIdentity(t *testing.T) response.Identity {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/identities", nil, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp response.Identity
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func identityOf(id response.Identity) model.Identity {
	return model.Identity(id.Identity)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func assertAPIError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rr.Code)
	assert.Equal(t, code, decode[apierr.ErrorResponse](t, rr).Error.Code)
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[response.Health](t, rr).Status)
}

func TestIssueIdentityAndMe(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newIdentity(t)

	assert.NotEmpty(t, id.Identity)
	assert.True(t, strings.HasPrefix(id.Token, id.Identity+"."))

	rr := ts.request(http.MethodGet, "/api/v1/identities/me", nil, id.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[response.Identity](t, rr)
	assert.Equal(t, id.Identity, me.Identity)
	assert.Empty(t, me.Token)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/identities/me"},
		{http.MethodPost, "/api/v1/lobbies"},
		{http.MethodGet, "/api/v1/lobbies"},
		{http.MethodPost, "/api/v1/lobbies/ABCD/join"},
		{http.MethodPost, "/api/v1/lobbies/ABCD/increment"},
		{http.MethodGet, "/api/v1/users"},
		{http.MethodGet, "/api/v1/connect"},
	} {
		rr := ts.request(route.method, route.path, nil, "")
		assertAPIError(t, rr, http.StatusUnauthorized, apierr.CodeUnauthorized)
	}

	rr := ts.request(http.MethodGet, "/api/v1/lobbies", nil, "forged.token")
	assertAPIError(t, rr, http.StatusUnauthorized, apierr.CodeUnauthorized)
}

func TestLobbyLifecycle(t *testing.T) {
	ts := newTestServer(t)
	alice, bob, carol := ts.newIdentity(t), ts.newIdentity(t), ts.newIdentity(t)

	rr := ts.request(http.MethodPost, "/api/v1/lobbies", map[string]string{"code": "duel1"}, alice.Token)
	require.Equal(t, http.StatusCreated, rr.Code)
	lobby := decode[response.Lobby](t, rr)
	assert.Equal(t, "DUEL1", lobby.Code)
	require.NotNil(t, lobby.Red)
	assert.Equal(t, alice.Identity, *lobby.Red)
	assert.Nil(t, lobby.Blue)

	rr = ts.request(http.MethodPost, "/api/v1/lobbies", map[string]string{"code": "DUEL1"}, bob.Token)
	assertAPIError(t, rr, http.StatusConflict, apierr.CodeDuplicateCode)

	rr = ts.request(http.MethodPost, "/api/v1/lobbies/duel1/join", nil, bob.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	lobby = decode[response.Lobby](t, rr)
	require.NotNil(t, lobby.Blue)
	assert.Equal(t, bob.Identity, *lobby.Blue)

	rr = ts.request(http.MethodPost, "/api/v1/lobbies/DUEL1/join", nil, carol.Token)
	assertAPIError(t, rr, http.StatusConflict, apierr.CodeLobbyFull)

	rr = ts.request(http.MethodPost, "/api/v1/lobbies/DUEL1/increment", nil, alice.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.request(http.MethodPost, "/api/v1/lobbies/duel1/increment", nil, bob.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	lobby = decode[response.Lobby](t, rr)
	assert.Equal(t, uint32(1), lobby.RedCount)
	assert.Equal(t, uint32(1), lobby.BlueCount)

	rr = ts.request(http.MethodPost, "/api/v1/lobbies/DUEL1/increment", nil, carol.Token)
	assertAPIError(t, rr, http.StatusForbidden, apierr.CodeNotAMember)

	rr = ts.request(http.MethodGet, "/api/v1/lobbies/duel1", nil, carol.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, uint32(1), decode[response.Lobby](t, rr).RedCount)

	rr = ts.request(http.MethodGet, "/api/v1/lobbies", nil, carol.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]response.Lobby](t, rr), 1)
}

func TestLobbyRejections(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.newIdentity(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"create short code", http.MethodPost, "/api/v1/lobbies", map[string]string{"code": "ab"}, http.StatusBadRequest, apierr.CodeInvalidCode},
		{"create bad characters", http.MethodPost, "/api/v1/lobbies", map[string]string{"code": "ab-cd"}, http.StatusBadRequest, apierr.CodeInvalidCode},
		{"create missing body", http.MethodPost, "/api/v1/lobbies", nil, http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"join invalid code", http.MethodPost, "/api/v1/lobbies/ab/join", nil, http.StatusBadRequest, apierr.CodeInvalidCode},
		{"join missing lobby", http.MethodPost, "/api/v1/lobbies/NOPE/join", nil, http.StatusNotFound, apierr.CodeLobbyNotFound},
		{"increment missing lobby", http.MethodPost, "/api/v1/lobbies/NOPE/increment", nil, http.StatusNotFound, apierr.CodeLobbyNotFound},
		{"increment malformed code", http.MethodPost, "/api/v1/lobbies/ab/increment", nil, http.StatusNotFound, apierr.CodeLobbyNotFound},
		{"get missing lobby", http.MethodGet, "/api/v1/lobbies/NOPE", nil, http.StatusNotFound, apierr.CodeLobbyNotFound},
		{"get missing user", http.MethodGet, "/api/v1/users/nobody", nil, http.StatusNotFound, apierr.CodeUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(tt.method, tt.path, tt.body, alice.Token)
			assertAPIError(t, rr, tt.status, tt.code)
		})
	}
}

// sseReader reads SSE frames from a live response body
type sseReader struct {
	scanner *bufio.Scanner
}

func (r *sseReader) next(t *testing.T) (string, string) {
	t.Helper()
	var event, data string
	for r.scanner.Scan() {
		line := r.scanner.Text()
		switch {
		case line == "":
			if event != "" {
				return event, data
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	t.Fatalf("stream ended: %v", r.scanner.Err())
	return "", ""
}

// until skips frames until one with the given event name satisfies match
func (r *sseReader) until(t *testing.T, event string, match func(data string) bool) string {
	t.Helper()
	for {
		e, data := r.next(t)
		if e == event && match(data) {
			return data
		}
	}
}

func TestConnectStream(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	t.Cleanup(srv.Close)

	alice, bob := ts.newIdentity(t), ts.newIdentity(t)
	rr := ts.request(http.MethodPost, "/api/v1/lobbies", map[string]string{"code": "WATCH"}, alice.Token)
	require.Equal(t, http.StatusCreated, rr.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/connect?lobby=watch", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bob.Token)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	stream := &sseReader{scanner: bufio.NewScanner(resp.Body)}
	event, _ := stream.next(t)
	assert.Equal(t, "connected", event)

	// snapshot carries the watched lobby
	stream.until(t, "lobby-update", func(data string) bool { return strings.Contains(data, `"code":"WATCH"`) })

	// connecting marked bob online
	user, err := ts.app.RosterService.GetUser(ctx, identityOf(bob))
	require.NoError(t, err)
	assert.True(t, user.Online)

	rr = ts.request(http.MethodPost, "/api/v1/lobbies/WATCH/join", nil, bob.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	data := stream.until(t, "lobby-update", func(data string) bool { return strings.Contains(data, `"blue":"`+bob.Identity+`"`) })
	var lobby response.Lobby
	require.NoError(t, json.Unmarshal([]byte(data), &lobby))
	assert.Equal(t, "WATCH", lobby.Code)

	cancel()
	assert.Eventually(t, func() bool {
		u, err := ts.app.RosterService.GetUser(context.Background(), identityOf(bob))
		return err == nil && !u.Online
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnectRejectsUnknownLobby(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.newIdentity(t)

	rr := ts.request(http.MethodGet, "/api/v1/connect?lobby=NOPE", nil, alice.Token)
	assertAPIError(t, rr, http.StatusNotFound, apierr.CodeLobbyNotFound)

	rr = ts.request(http.MethodGet, "/api/v1/connect?lobby=a", nil, alice.Token)
	assertAPIError(t, rr, http.StatusBadRequest, apierr.CodeInvalidCode)

	users, err := ts.app.RosterService.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUsersListing(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.newIdentity(t)

	_, err := ts.app.RosterService.HandleConnect(context.Background(), identityOf(alice))
	require.NoError(t, err)

	rr := ts.request(http.MethodGet, "/api/v1/users", nil, alice.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	users := decode[[]response.User](t, rr)
	require.Len(t, users, 1)
	assert.Equal(t, alice.Identity, users[0].Identity)
	assert.True(t, users[0].Online)

	rr = ts.request(http.MethodGet, "/api/v1/users/"+alice.Identity, nil, alice.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, alice.Identity, decode[response.User](t, rr).Identity)
}
