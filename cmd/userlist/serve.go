package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/fetch"
	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/httpapi"
	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/mcptools"
)

// runServe serves the HTTP API until ctx is done. The first fetch starts as
// soon as the server is up, the way a screen loads its data when it appears.
func (a *app) runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	addr := fs.String("addr", a.cfg.Listen, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctrl := a.newController()
	defer ctrl.Close()

	srv := httpapi.NewServer(ctrl, httpapi.WithLogger(a.logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, *addr)
	})
	g.Go(func() error {
		err := ctrl.Refresh(gctx)
		if err != nil && !errors.Is(err, fetch.ErrSuperseded) && gctx.Err() == nil {
			// The error is in the served state; keep serving so clients can retry.
			a.logger.Warn("serve: initial fetch failed", "error", err)
		}
		return nil
	})
	return g.Wait()
}

// runServeMCP serves the MCP tools on stdio, or over streamable HTTP when
// -addr is set. Logs go to stderr only.
func (a *app) runServeMCP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve-mcp", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	addr := fs.String("addr", "", "serve over streamable HTTP on this address instead of stdio")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctrl := a.newController()
	defer ctrl.Close()

	server := mcptools.NewServer(ctrl)
	if *addr == "" {
		return mcptools.RunStdio(ctx, server)
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("serve-mcp: listen %s: %w", *addr, err)
	}
	a.logger.Info("serve-mcp: listening", "addr", ln.Addr().String())
	return mcptools.RunHTTP(ctx, server, ln)
}
