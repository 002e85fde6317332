// Package view renders fetch state as plain text for terminals.
package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/fetch"
	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/users"
)

// RetryHint is shown under an error so the user knows how to try again.
const RetryHint = "Press r to retry"

// Render writes one frame for s. While loading only the progress line is
// shown. An error is shown above the list it failed to replace.
func Render(w io.Writer, s fetch.State) error {
	_, err := io.WriteString(w, Frame(s))
	return err
}

// Frame returns what Render would write.
func Frame(s fetch.State) string {
	var sb strings.Builder

	if s.IsLoading {
		sb.WriteString("Loading users...\n")
		return sb.String()
	}

	if s.HasError {
		desc := "unknown error"
		if s.Error != nil {
			desc = s.Error.Description()
		}
		fmt.Fprintf(&sb, "Error: %s\n%s\n", desc, RetryHint)
		if len(s.Users) == 0 {
			return sb.String()
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Users\n")
	if len(s.Users) == 0 {
		sb.WriteString("No users.\n")
		return sb.String()
	}
	for i, u := range s.Users {
		if i > 0 {
			sb.WriteString("\n")
		}
		writeUser(&sb, u)
	}
	return sb.String()
}

func writeUser(sb *strings.Builder, u users.User) {
	fmt.Fprintf(sb, "  Name: %s\n", u.Name)
	fmt.Fprintf(sb, "  Email: %s\n", u.Email)
	sb.WriteString("  ---\n")
	fmt.Fprintf(sb, "  Company: %s\n", u.Company.Name)
}
