package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/httpapi"
	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/view"
)

// runWatch follows a running server's state stream and renders each state.
// Typing r asks the server to fetch again; q stops watching.
func (a *app) runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	url := fs.String("url", "http://"+a.cfg.Listen, "base URL of a running userlist server")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := httpapi.NewClient(*url)
	events, err := client.Stream(ctx)
	if err != nil {
		return err
	}

	go func() {
		in := bufio.NewScanner(a.stdin)
		for in.Scan() {
			switch strings.ToLower(strings.TrimSpace(in.Text())) {
			case "r", "retry":
				if _, err := client.Fetch(ctx); err != nil {
					a.logger.Warn("watch: retry", "error", err)
				}
			case "q", "quit":
				cancel()
				return
			}
		}
	}()

	for ev := range events {
		if ev.Err != nil {
			a.logger.Warn("watch: bad frame", "error", ev.Err)
			continue
		}
		fmt.Fprintln(a.stdout, "----")
		if err := view.Render(a.stdout, ev.State); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	return errors.New("watch: server closed the stream")
}
