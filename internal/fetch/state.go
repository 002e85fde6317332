package fetch

import (
	"time"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/users"
)

// Phase is the coarse position of a State in the fetch state machine.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// State is the single source of truth the presentation layer observes.
//
// IsLoading and HasError are never both true once a cycle has resolved.
// Users is replaced as a whole on success and left untouched on error.
type State struct {
	Users     []users.User      `json:"users"`
	IsLoading bool              `json:"isLoading"`
	HasError  bool              `json:"hasError"`
	Error     *users.FetchError `json:"error,omitempty"`
	CycleID   string            `json:"cycleId,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// initialState is what a new controller starts with: no users, not loading,
// no error.
func initialState() State {
	return State{Users: []users.User{}}
}

// Phase derives the state machine position.
func (s State) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseLoading
	case s.HasError:
		return PhaseError
	case s.CycleID == "":
		return PhaseIdle
	default:
		return PhaseSuccess
	}
}

// User looks up a user by ID in the current list.
func (s State) User(id int) (users.User, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return users.User{}, false
}

// Clone returns a copy that shares no mutable memory with s.
func (s State) Clone() State {
	dst := s
	dst.Users = make([]users.User, len(s.Users))
	copy(dst.Users, s.Users)
	dst.Error = s.Error.Clone()
	return dst
}
