// Package auth describes what the engine consumes from the authentication
// collaborator: a sign-in state signal and, when signed in, the user's
// identity claims. Token lifecycle is not handled here.
package auth

import (
	"strings"
	"sync"
)

type State int

const (
	StateRestoring State = iota
	StateSignedOut
	StateSigningIn
	StateSignedIn
	StateError
)

func (s State) String() string {
	switch s {
	case StateRestoring:
		return "restoring"
	case StateSignedOut:
		return "signed-out"
	case StateSigningIn:
		return "signing-in"
	case StateSignedIn:
		return "signed-in"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Claims is the identity claim set of a signed-in user. Email is the only
// claim the engine requires.
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// HasEmail reports whether the claims can identify a user.
func (c Claims) HasEmail() bool {
	return strings.TrimSpace(c.Email) != ""
}

// DisplayName falls back to the local part of the email.
func (c Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	local, _, _ := strings.Cut(c.Email, "@")
	return local
}

// Status is one observation of the auth signal. Claims is set only in
// StateSignedIn and Message only in StateError.
type Status struct {
	State   State
	Claims  Claims
	Message string
}

// Provider supplies the current auth status.
type Provider interface {
	Status() Status
}

// StaticProvider is a Provider whose state is set by the embedding
// application. Watchers are called synchronously on every change.
type StaticProvider struct {
	mu       sync.RWMutex
	status   Status
	watchers []func(Status)
}

// NewStaticProvider starts in StateRestoring.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{status: Status{State: StateRestoring}}
}

func (p *StaticProvider) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Watch registers fn to be called with every new status.
func (p *StaticProvider) Watch(fn func(Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watchers = append(p.watchers, fn)
}

func (p *StaticProvider) SigningIn() { p.set(Status{State: StateSigningIn}) }

func (p *StaticProvider) SignIn(c Claims) { p.set(Status{State: StateSignedIn, Claims: c}) }

func (p *StaticProvider) SignOut() { p.set(Status{State: StateSignedOut}) }

func (p *StaticProvider) Fail(message string) {
	p.set(Status{State: StateError, Message: message})
}

func (p *StaticProvider) set(s Status) {
	p.mu.Lock()
	p.status = s
	watchers := append([]func(Status){}, p.watchers...)
	p.mu.Unlock()
	for _, w := range watchers {
		w(s)
	}
}
