package httpapi

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/fetch"
	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/users"
)

const usersBody = `[
  {"id":1,"name":"Tunds","email":"t@x.com","company":{"name":"Tundsdev"}},
  {"id":2,"name":"Ada","email":"ada@x.com","company":{"name":"Engines"}}
]`

// upstream serves usersBody. If gate is non-nil each request waits for it.
func upstream(t *testing.T, gate chan struct{}) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		io.WriteString(w, usersBody)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// newTestAPI wires a controller reading from up and returns the API server
// started with httptest.
func newTestAPI(t *testing.T, up *httptest.Server) (*httptest.Server, *fetch.Controller) {
	t.Helper()
	ctrl := fetch.New(users.NewHTTPClient(users.WithEndpoint(up.URL)))
	ts := httptest.NewServer(NewServer(ctrl))
	t.Cleanup(ts.Close)
	t.Cleanup(ctrl.Close) // runs first, ending open streams
	return ts, ctrl
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestAPI(t, upstream(t, nil))

	var body map[string]string
	status := getJSON(t, ts.URL+"/api/v1/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_InitialState(t *testing.T) {
	ts, _ := newTestAPI(t, upstream(t, nil))

	var st fetch.State
	status := getJSON(t, ts.URL+"/api/v1/state", &st)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, fetch.PhaseIdle, st.Phase())
	assert.NotNil(t, st.Users)
	assert.Empty(t, st.Users)
}

func TestServer_FetchReturnsLoadingAndOutlivesRequest(t *testing.T) {
	gate := make(chan struct{})
	ts, ctrl := newTestAPI(t, upstream(t, gate))

	st, err := NewClient(ts.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsLoading)
	assert.NotEmpty(t, st.CycleID)

	close(gate)
	require.Eventually(t, func() bool {
		return ctrl.State().Phase() == fetch.PhaseSuccess
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, ctrl.State().Users, 2)
}

func TestServer_User(t *testing.T) {
	ts, ctrl := newTestAPI(t, upstream(t, nil))
	require.NoError(t, ctrl.Refresh(context.Background()))

	var u users.User
	status := getJSON(t, ts.URL+"/api/v1/users/2", &u)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, "Engines", u.Company.Name)

	var body map[string]string
	status = getJSON(t, ts.URL+"/api/v1/users/99", &body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "99")

	body = nil
	status = getJSON(t, ts.URL+"/api/v1/users/abc", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["details"])
}

func TestServer_StateShowsUpstreamFailure(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	}))
	t.Cleanup(up.Close)
	ts, ctrl := newTestAPI(t, up)

	err := ctrl.Refresh(context.Background())
	require.Error(t, err)

	st, err := NewClient(ts.URL).State(context.Background())
	require.NoError(t, err)
	assert.True(t, st.HasError)
	require.NotNil(t, st.Error)
	assert.Equal(t, users.KindDecodeFailure, st.Error.Kind)
	assert.Equal(t, "Failed to decode response", st.Error.Description())
}

func TestServer_StreamFollowsCycle(t *testing.T) {
	gate := make(chan struct{})
	ts, _ := newTestAPI(t, upstream(t, gate))
	client := NewClient(ts.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := client.Stream(ctx)
	require.NoError(t, err)

	next := func() fetch.State {
		t.Helper()
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "stream closed early")
			require.NoError(t, ev.Err)
			return ev.State
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for state")
			return fetch.State{}
		}
	}

	assert.Equal(t, fetch.PhaseIdle, next().Phase())

	_, err = client.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, fetch.PhaseLoading, next().Phase())

	close(gate)
	done := next()
	assert.Equal(t, fetch.PhaseSuccess, done.Phase())
	assert.Len(t, done.Users, 2)

	cancel()
	for range ch {
	}
}

func TestServer_StreamEndsWhenControllerCloses(t *testing.T) {
	ts, ctrl := newTestAPI(t, upstream(t, nil))

	ch, err := NewClient(ts.URL).Stream(context.Background())
	require.NoError(t, err)
	<-ch

	ctrl.Close()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
}

func TestServer_RecoversFromPanics(t *testing.T) {
	var nilCtrl *fetch.Controller
	srv := NewServer(nilCtrl)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_UnknownRoute(t *testing.T) {
	ts, _ := newTestAPI(t, upstream(t, nil))

	resp, err := http.Get(ts.URL + "/api/v1/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ServeStopsWithContext(t *testing.T) {
	ctrl := fetch.New(users.NewHTTPClient(users.WithEndpoint(upstream(t, nil).URL)))
	t.Cleanup(ctrl.Close)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- NewServer(ctrl).Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/v1/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServer_ListenAndServeBadAddress(t *testing.T) {
	ctrl := fetch.New(users.NewHTTPClient())
	t.Cleanup(ctrl.Close)

	err := NewServer(ctrl).ListenAndServe(context.Background(), "256.0.0.1:bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "httpapi: listen")
}

func TestClient_UnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.URL + "/")
	_, err := c.State(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500: boom")

	_, err = c.Stream(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}
