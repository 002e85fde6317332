package mcptools

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/fetch"
	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/users"
)

const usersBody = `[{"id":1,"name":"Tunds","email":"t@x.com","company":{"name":"Tundsdev"}}]`

// newController wires a controller to an httptest upstream that answers with
// body.
func newController(t *testing.T, body string) *fetch.Controller {
	t.Helper()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	t.Cleanup(up.Close)

	ctrl := fetch.New(users.NewHTTPClient(users.WithEndpoint(up.URL)))
	t.Cleanup(ctrl.Close)
	return ctrl
}

// setupServerClient wires an MCP server and client together using in-memory
// transports.
func setupServerClient(t *testing.T, ctrl *fetch.Controller) *mcp.ClientSession {
	t.Helper()

	server := NewServer(ctrl)
	st, ct := mcp.NewInMemoryTransports()
	ctx := context.Background()

	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		session.Close()
	})
	return session
}

// decodeStructured round-trips the structured content into out.
func decodeStructured(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	require.NotNil(t, result.StructuredContent, "expected structured content")
	raw, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestMCPListTools(t *testing.T) {
	session := setupServerClient(t, newController(t, usersBody))

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{"fetch_users", "get_state", "get_user"}, names)
}

func TestMCPFetchUsers(t *testing.T) {
	session := setupServerClient(t, newController(t, usersBody))
	ctx := context.Background()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "fetch_users",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out StateOutput
	decodeStructured(t, result, &out)
	assert.Equal(t, "success", out.Phase)
	assert.False(t, out.IsLoading)
	assert.False(t, out.HasError)
	require.Len(t, out.Users, 1)
	assert.Equal(t, "Tunds", out.Users[0].Name)
	assert.NotEmpty(t, out.CycleID)
	assert.NotEmpty(t, out.UpdatedAt)
}

func TestMCPFetchUsers_DecodeFailureIsState(t *testing.T) {
	session := setupServerClient(t, newController(t, "not json"))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "fetch_users",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, "a failed fetch is reported in state")

	var out StateOutput
	decodeStructured(t, result, &out)
	assert.Equal(t, "error", out.Phase)
	assert.True(t, out.HasError)
	require.NotNil(t, out.Error)
	assert.Equal(t, "decode_failure", out.Error.Kind)
	assert.Equal(t, "Failed to decode response", out.Error.Description)
	assert.Empty(t, out.Users)
}

func TestMCPGetState_Idle(t *testing.T) {
	session := setupServerClient(t, newController(t, usersBody))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_state",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)

	var out StateOutput
	decodeStructured(t, result, &out)
	assert.Equal(t, "idle", out.Phase)
	assert.NotNil(t, out.Users)
	assert.Empty(t, out.UpdatedAt)
}

func TestMCPGetUser(t *testing.T) {
	ctrl := newController(t, usersBody)
	require.NoError(t, ctrl.Refresh(context.Background()))
	session := setupServerClient(t, ctrl)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_user",
		Arguments: GetUserInput{ID: 1},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out GetUserOutput
	decodeStructured(t, result, &out)
	assert.Equal(t, "Tundsdev", out.User.Company.Name)
}

func TestMCPGetUser_NotFound(t *testing.T) {
	session := setupServerClient(t, newController(t, usersBody))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_user",
		Arguments: GetUserInput{ID: 42},
	})
	// The SDK may surface handler errors at the protocol level or as IsError.
	if err != nil {
		return
	}
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestUsersService_Handlers(t *testing.T) {
	ctx := context.Background()

	t.Run("get_user not found", func(t *testing.T) {
		svc := NewUsersService(newController(t, usersBody))
		_, _, err := svc.GetUser(ctx, nil, GetUserInput{ID: 7})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user 7 not found")
	})

	t.Run("fetch after close", func(t *testing.T) {
		ctrl := newController(t, usersBody)
		ctrl.Close()

		_, _, err := NewUsersService(ctrl).FetchUsers(ctx, nil, FetchUsersInput{})
		require.Error(t, err)
		assert.ErrorIs(t, err, fetch.ErrClosed)
	})

	t.Run("transport failure reported in state", func(t *testing.T) {
		ctrl := newController(t, usersBody)
		require.NoError(t, ctrl.Refresh(ctx))

		bad := fetch.New(users.NewHTTPClient(users.WithEndpoint("http://127.0.0.1:1")))
		t.Cleanup(bad.Close)
		_, out, err := NewUsersService(bad).FetchUsers(ctx, nil, FetchUsersInput{})
		require.NoError(t, err)
		require.NotNil(t, out.Error)
		assert.Equal(t, "transport", out.Error.Kind)

		_, out, err = NewUsersService(ctrl).GetState(ctx, nil, GetStateInput{})
		require.NoError(t, err)
		assert.Len(t, out.Users, 1)
	})
}

// connectHTTP opens a client session against a streamable HTTP endpoint.
func connectHTTP(t *testing.T, endpoint string) *mcp.ClientSession {
	t.Helper()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(context.Background(), &mcp.StreamableClientTransport{Endpoint: endpoint}, nil)
	require.NoError(t, err)
	return session
}

func TestMCPStreamableHTTP(t *testing.T) {
	ts := httptest.NewServer(NewHTTPHandler(NewServer(newController(t, usersBody))))
	t.Cleanup(ts.Close)

	session := connectHTTP(t, ts.URL)
	defer session.Close()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "fetch_users",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out StateOutput
	decodeStructured(t, result, &out)
	assert.Equal(t, "success", out.Phase)
	require.Len(t, out.Users, 1)
}

func TestRunHTTP_StopsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- RunHTTP(ctx, NewServer(newController(t, usersBody)), ln) }()

	session := connectHTTP(t, "http://"+ln.Addr().String())
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_state",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)

	var out StateOutput
	decodeStructured(t, result, &out)
	assert.Equal(t, "idle", out.Phase)
	session.Close()

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("RunHTTP did not return after cancel")
	}
}
