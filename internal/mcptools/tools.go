package mcptools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/fetch"
	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/users"
)

// FetchUsersInput is the input for the fetch_users MCP tool.
type FetchUsersInput struct{}

// GetStateInput is the input for the get_state MCP tool.
type GetStateInput struct{}

// GetUserInput is the input for the get_user MCP tool.
type GetUserInput struct {
	ID int `json:"id" jsonschema:"the numeric id of the user"`
}

// ErrorOutput describes why the last fetch failed.
type ErrorOutput struct {
	Kind        string `json:"kind" jsonschema:"transport or decode_failure"`
	Description string `json:"description"`
}

// StateOutput mirrors fetch.State for tool results.
type StateOutput struct {
	Phase     string       `json:"phase" jsonschema:"idle, loading, success or error"`
	Users     []users.User `json:"users"`
	IsLoading bool         `json:"isLoading"`
	HasError  bool         `json:"hasError"`
	Error     *ErrorOutput `json:"error,omitempty"`
	CycleID   string       `json:"cycleId,omitempty"`
	UpdatedAt string       `json:"updatedAt,omitempty" jsonschema:"RFC 3339 time of the last change"`
}

// GetUserOutput is the result of the get_user MCP tool.
type GetUserOutput struct {
	User users.User `json:"user"`
}

func toStateOutput(s fetch.State) StateOutput {
	out := StateOutput{
		Phase:     string(s.Phase()),
		Users:     s.Users,
		IsLoading: s.IsLoading,
		HasError:  s.HasError,
		CycleID:   s.CycleID,
	}
	if out.Users == nil {
		out.Users = []users.User{}
	}
	if s.Error != nil {
		out.Error = &ErrorOutput{Kind: s.Error.Kind.String(), Description: s.Error.Description()}
	}
	if !s.UpdatedAt.IsZero() {
		out.UpdatedAt = s.UpdatedAt.Format(time.RFC3339Nano)
	}
	return out
}

// UsersService holds the controller the MCP tool handlers act on.
type UsersService struct {
	ctrl *fetch.Controller
}

// NewUsersService creates a UsersService for ctrl.
func NewUsersService(ctrl *fetch.Controller) *UsersService {
	return &UsersService{ctrl: ctrl}
}

// FetchUsers runs one fetch cycle and waits for it. A failed fetch is not a
// tool error; it shows up in the returned state.
func (s *UsersService) FetchUsers(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ FetchUsersInput,
) (*mcp.CallToolResult, StateOutput, error) {
	err := s.ctrl.Refresh(ctx)
	switch {
	case err == nil, errors.Is(err, fetch.ErrSuperseded):
	case errors.Is(err, fetch.ErrClosed):
		return nil, StateOutput{}, fmt.Errorf("fetch users: %w", err)
	default:
		var fe *users.FetchError
		if !errors.As(err, &fe) {
			return nil, StateOutput{}, fmt.Errorf("fetch users: %w", err)
		}
	}
	return nil, toStateOutput(s.ctrl.State()), nil
}

// GetState returns the current state without fetching.
func (s *UsersService) GetState(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ GetStateInput,
) (*mcp.CallToolResult, StateOutput, error) {
	return nil, toStateOutput(s.ctrl.State()), nil
}

// GetUser looks a user up by id in the last successful fetch.
func (s *UsersService) GetUser(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input GetUserInput,
) (*mcp.CallToolResult, GetUserOutput, error) {
	u, ok := s.ctrl.State().User(input.ID)
	if !ok {
		return nil, GetUserOutput{}, fmt.Errorf("user %d not found", input.ID)
	}
	return nil, GetUserOutput{User: u}, nil
}
