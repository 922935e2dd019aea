// Package session keeps the signed-in user of an API client.
//
// Service is the only writer of the token store. Every session change goes
// through the Machine, whose subscribers see the result.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diagnosis/portfolio/pkg/client"
	"github.com/diagnosis/portfolio/pkg/client/tokenstore"
)

// Session is the result of a successful login or register.
type Session struct {
	User  *User
	Token string
}

type Service struct {
	client  *client.Client
	store   tokenstore.Store
	machine *Machine
}

// NewService wires the session to c. A 401 on any authenticated request made
// through c logs the session out.
func NewService(c *client.Client, store tokenstore.Store) *Service {
	s := &Service{client: c, store: store, machine: NewMachine()}
	c.OnUnauthorized(s.Logout)
	return s
}

func (s *Service) Machine() *Machine { return s.machine }

func (s *Service) State() State { return s.machine.State() }

type authResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type dataResponse struct {
	Data *User `json:"data"`
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp authResponse
	err := s.client.Do(client.Anonymous(ctx), http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		// The login route reports bad credentials as 422 on some deployments.
		var ve *client.ValidationError
		if errors.As(err, &ve) && ve.Status == http.StatusUnprocessableEntity {
			err = &client.AuthError{Message: ve.Message, Code: ve.Code}
		}
		s.machine.Dispatch(LoginFailed{})
		return nil, err
	}
	return s.establish(resp)
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	var resp authResponse
	err := s.client.Do(client.Anonymous(ctx), http.MethodPost, "/auth/register", map[string]string{
		"name":            name,
		"email":           email,
		"password":        password,
		"confirmPassword": password,
	}, &resp)
	if err != nil {
		s.machine.Dispatch(LoginFailed{})
		return nil, err
	}
	return s.establish(resp)
}

func (s *Service) establish(resp authResponse) (*Session, error) {
	if resp.Token == "" || resp.User == nil {
		s.machine.Dispatch(LoginFailed{})
		return nil, &client.ServerError{Status: http.StatusOK, Message: "response is missing token or user"}
	}
	if err := s.persist(resp.Token, resp.User); err != nil {
		s.machine.Dispatch(LoginFailed{})
		return nil, err
	}
	s.machine.Dispatch(LoginSucceeded{User: resp.User, Token: resp.Token})
	return &Session{User: resp.User, Token: resp.Token}, nil
}

// Logout clears stored credentials. It makes no request.
func (s *Service) Logout() {
	s.clear()
	s.machine.Dispatch(LoggedOut{})
}

// CheckAuth re-validates a stored token against the API. Any failure clears
// the session. It is not retried.
func (s *Service) CheckAuth(ctx context.Context) State {
	token, ok := s.store.Get(tokenstore.KeyToken)
	if !ok || token == "" {
		s.clear()
		return s.machine.Dispatch(CheckAuthFailed{})
	}

	var resp dataResponse
	if err := s.client.Do(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil || resp.Data == nil {
		s.clear()
		return s.machine.Dispatch(CheckAuthFailed{})
	}
	if err := s.persist(token, resp.Data); err != nil {
		return s.machine.Dispatch(CheckAuthFailed{})
	}
	return s.machine.Dispatch(CheckAuthSucceeded{User: resp.Data, Token: token})
}

// CachedUser returns the user saved by the last login, without a request.
func (s *Service) CachedUser() *User {
	raw, ok := s.store.Get(tokenstore.KeyUser)
	if !ok {
		return nil
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil
	}
	return &u
}

func (s *Service) IsAdmin() bool {
	return s.machine.State().User.IsAdmin()
}

// ProfileUpdate is a partial update. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	Bio             *string `json:"bio,omitempty"`
	Avatar          *string `json:"avatar,omitempty"`
	CurrentPassword string  `json:"currentPassword,omitempty"`
	NewPassword     string  `json:"newPassword,omitempty"`
}

func (s *Service) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*User, error) {
	var resp dataResponse
	if err := s.client.Do(ctx, http.MethodPut, "/auth/profile", upd, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, &client.ServerError{Status: http.StatusOK, Message: "response is missing user"}
	}

	st := s.machine.State()
	if st.IsAuthenticated() {
		if err := s.persist(st.Token, resp.Data); err != nil {
			return nil, err
		}
	}
	s.machine.Dispatch(ProfileUpdated{User: resp.Data})
	return resp.Data, nil
}

func (s *Service) persist(token string, u *User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.store.Set(tokenstore.KeyUser, string(raw)); err != nil {
		s.clear()
		return err
	}
	if err := s.store.Set(tokenstore.KeyToken, token); err != nil {
		s.clear()
		return err
	}
	return nil
}

// clear empties the store. A failure is logged: the session is over either
// way, but a token may remain on disk.
func (s *Service) clear() {
	if err := s.store.Clear(); err != nil {
		s.client.Logger().Warn("Failed to clear stored session", "error", err)
	}
}
