package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/fetch"
	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/view"
)

// runFetch runs one fetch cycle and prints every state it passes through.
// With -i it keeps prompting: r fetches again, q or end of input quits.
func (a *app) runFetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	interactive := fs.Bool("i", false, "prompt after each result (r to retry, q to quit)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctrl := a.newController()
	defer ctrl.Close()

	unsubscribe := ctrl.Store().Subscribe(func(s fetch.State) {
		if err := view.Render(a.stdout, s); err != nil {
			a.logger.Warn("fetch: render", "error", err)
		}
	})
	defer unsubscribe()

	in := bufio.NewScanner(a.stdin)
	for {
		// Subscribers have run for the outcome by the time Refresh returns.
		err := ctrl.Refresh(ctx)
		if !*interactive {
			return err
		}

		fmt.Fprint(a.stdout, "> ")
		if !nextCommand(in) {
			return nil
		}
	}
}

// nextCommand reads lines until r (true) or q / end of input (false).
func nextCommand(in *bufio.Scanner) bool {
	for in.Scan() {
		switch strings.ToLower(strings.TrimSpace(in.Text())) {
		case "r", "retry":
			return true
		case "q", "quit":
			return false
		}
	}
	return false
}
