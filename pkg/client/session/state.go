package session

import (
	"sync"
	"time"
)

type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	Bio       string     `json:"bio"`
	Avatar    string     `json:"avatar,omitempty"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == "admin" }

type Kind int

const (
	Loading Kind = iota
	Unauthenticated
	Authenticated
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// State is the session as observers see it. User and Token are set only
// when Kind is Authenticated.
type State struct {
	Kind  Kind
	User  *User
	Token string
}

func (s State) IsAuthenticated() bool {
	return s.Kind == Authenticated && s.User != nil && s.Token != ""
}

func (s State) IsLoading() bool { return s.Kind == Loading }

// Action is one of the transitions below.
type Action interface{ isAction() }

type (
	// CheckAuthSucceeded: the stored token was re-validated.
	CheckAuthSucceeded struct {
		User  *User
		Token string
	}
	// CheckAuthFailed: no stored token, or re-validation failed.
	CheckAuthFailed struct{}
	// LoginSucceeded covers both login and register.
	LoginSucceeded struct {
		User  *User
		Token string
	}
	LoginFailed    struct{}
	LoggedOut      struct{}
	ProfileUpdated struct{ User *User }
)

func (CheckAuthSucceeded) isAction() {}
func (CheckAuthFailed) isAction()    {}
func (LoginSucceeded) isAction()     {}
func (LoginFailed) isAction()        {}
func (LoggedOut) isAction()          {}
func (ProfileUpdated) isAction()     {}

var unauthenticated = State{Kind: Unauthenticated}

// Reduce returns the state after a. It never produces Authenticated without
// both a user and a token.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case CheckAuthSucceeded:
		return authenticated(a.User, a.Token)
	case LoginSucceeded:
		return authenticated(a.User, a.Token)
	case CheckAuthFailed, LoggedOut:
		return unauthenticated
	case LoginFailed:
		// A failed attempt does not end an existing session.
		if s.Kind == Authenticated {
			return s
		}
		return unauthenticated
	case ProfileUpdated:
		if s.Kind != Authenticated || a.User == nil {
			return s
		}
		return State{Kind: Authenticated, User: a.User, Token: s.Token}
	}
	return s
}

func authenticated(u *User, token string) State {
	if u == nil || token == "" {
		return unauthenticated
	}
	return State{Kind: Authenticated, User: u, Token: token}
}

// Machine holds the current State and tells subscribers about every change.
type Machine struct {
	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

// NewMachine starts in Loading.
func NewMachine() *Machine {
	return &Machine{state: State{Kind: Loading}, subs: map[int]func(State){}}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Dispatch applies a and returns the new state. Subscribers run after the
// lock is released, in no particular order.
func (m *Machine) Dispatch(a Action) State {
	m.mu.Lock()
	m.state = Reduce(m.state, a)
	next := m.state
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// Subscribe registers fn and returns a function that removes it.
func (m *Machine) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}
