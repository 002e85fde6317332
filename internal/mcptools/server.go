package mcptools

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/fetch"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the fetch_users, get_state and
// get_user tools registered against ctrl.
func NewServer(ctrl *fetch.Controller) *mcp.Server {
	svc := NewUsersService(ctrl)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "userlist",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "fetch_users",
		Description: "Fetch the user list from the configured endpoint and wait for the result. Returns the resulting state; a failed fetch is reported in its error field and the previous users are kept.",
	}, svc.FetchUsers)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_state",
		Description: "Return the current user list state (phase, users, loading and error flags) without fetching.",
	}, svc.GetState)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_user",
		Description: "Return a single user from the last successful fetch by numeric id.",
	}, svc.GetUser)

	return server
}

// RunStdio runs server on stdio, blocking until stdin is closed or ctx is
// cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// NewHTTPHandler serves server over the streamable HTTP transport.
func NewHTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)
}

// RunHTTP serves server on ln over streamable HTTP until ctx is cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           NewHTTPHandler(server),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// Shutdown gracefully when context is cancelled.
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
