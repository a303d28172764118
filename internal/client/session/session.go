// Package session derives the authentication state from the document
// service's access token. Signature verification belongs to the service; the
// client only reads the claims to know who is signed in and until when.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/ledgermail/internal/client/credential"
	"github.com/dmitrijs2005/ledgermail/internal/common"
)

var ErrInvalidToken = errors.New("invalid access token")

// State is the auth state seen by the rest of the client. Known is false
// while the state is indeterminate; nothing may be cleared in that case.
type State struct {
	Known         bool
	Authenticated bool
	Subject       string
	Email         string
	ExpiresAt     time.Time
	// Claims is the JSON claim set, empty unless Authenticated.
	Claims string
}

// FromToken evaluates token at now.
func FromToken(token string, now time.Time) State {
	if token == "" {
		return State{Known: true}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return State{}
	}

	var expires time.Time
	if exp, err := claims.GetExpirationTime(); err != nil {
		return State{}
	} else if exp != nil {
		expires = exp.Time
		if !now.Before(expires) {
			return State{Known: true, ExpiresAt: expires}
		}
	}

	raw, err := json.Marshal(claims)
	if err != nil {
		return State{}
	}

	email, _ := claims["email"].(string)
	subject, _ := claims.GetSubject()
	return State{
		Known:         true,
		Authenticated: true,
		Subject:       subject,
		Email:         email,
		ExpiresAt:     expires,
		Claims:        string(raw),
	}
}

// Identity names the signed-in user: the subject claim, else the email.
// Two states with different identities belong to different sessions.
func (s State) Identity() string {
	if s.Subject != "" {
		return s.Subject
	}
	return s.Email
}

// Manager owns the current token. A token given in configuration takes
// precedence over the one kept in the keyring.
type Manager struct {
	mu    sync.RWMutex
	store credential.Store
	token string
	// set when the service refused the token; cleared by Load, Login, Logout
	rejected bool
	now      func() time.Time
}

func NewManager(store credential.Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Load restores the token. An empty configured value reads the keyring.
func (m *Manager) Load(configured string) (State, error) {
	token := configured
	if token == "" && m.store != nil {
		t, err := m.store.Get(common.AccessTokenCredential)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return State{}, err
		}
		token = t
	}

	m.mu.Lock()
	m.token = token
	m.rejected = false
	m.mu.Unlock()
	return m.State(), nil
}

// Login validates and persists a new token.
func (m *Manager) Login(token string) (State, error) {
	st := FromToken(token, m.now())
	if !st.Authenticated {
		return st, ErrInvalidToken
	}
	if m.store != nil {
		if err := m.store.Set(common.AccessTokenCredential, token); err != nil {
			return State{}, fmt.Errorf("store access token: %w", err)
		}
	}

	m.mu.Lock()
	m.token = token
	m.rejected = false
	m.mu.Unlock()
	return st, nil
}

// Logout forgets the token. The resulting state is a confirmed sign-out.
func (m *Manager) Logout() (State, error) {
	m.mu.Lock()
	m.token = ""
	m.rejected = false
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Delete(common.AccessTokenCredential); err != nil {
			return m.State(), fmt.Errorf("remove access token: %w", err)
		}
	}
	return m.State(), nil
}

// Reject records that the service refused the current token. The state
// turns indeterminate: the user is no longer known, yet nothing that depends
// on a confirmed sign-out is cleared.
func (m *Manager) Reject() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" {
		m.rejected = true
	}
}

// State re-evaluates the token, so expiry is observed without a refresh.
func (m *Manager) State() State {
	m.mu.RLock()
	token, rejected := m.token, m.rejected
	m.mu.RUnlock()

	st := FromToken(token, m.now())
	if rejected && st.Authenticated {
		return State{}
	}
	return st
}

// Claims returns the claim JSON for the remote service, "" when signed out.
func (m *Manager) Claims() string {
	return m.State().Claims
}
