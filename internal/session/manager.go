// Package session owns the signed-in session: it signs users in and out,
// persists the token triple and restores it at startup.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sandeepkv93/cloudtasks/internal/apperr"
	"github.com/sandeepkv93/cloudtasks/internal/model"
	"github.com/sandeepkv93/cloudtasks/internal/storage"
)

const DefaultKey = "authTokens"

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (model.Session, error)
	Register(ctx context.Context, username, password string) error
	Confirm(ctx context.Context, username, code string) error
}

// Store is where the session blob lives between runs.
type Store = storage.Repository

type Manager struct {
	auth   Authenticator
	store  Store
	key    string
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	current  *model.Session
	restored bool
}

func NewManager(auth Authenticator, store Store, key string, logger zerolog.Logger) *Manager {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return &Manager{
		auth:   auth,
		store:  store,
		key:    key,
		logger: logger,
		now:    time.Now,
	}
}

// Restore loads the persisted session. A missing, unreadable or incomplete
// blob leaves the manager signed out; Restored reports true afterwards in
// every case.
func (m *Manager) Restore(ctx context.Context) {
	restored := m.load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = restored
	m.restored = true
}

func (m *Manager) load(ctx context.Context) *model.Session {
	entry, err := m.store.GetState(ctx, m.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn().Err(err).Msg("read persisted session")
		}
		return nil
	}
	var s model.Session
	if err := json.Unmarshal([]byte(entry.Value), &s); err != nil {
		m.logger.Warn().Err(err).Msg("decode persisted session")
		return nil
	}
	if !s.Complete() {
		m.logger.Warn().Msg("persisted session is incomplete")
		return nil
	}
	m.logger.Debug().Msg("session restored")
	return &s
}

func (m *Manager) Restored() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restored
}

func (m *Manager) Login(ctx context.Context, username, password string) (model.Session, error) {
	s, err := m.auth.Authenticate(ctx, strings.TrimSpace(username), password)
	if err != nil {
		m.logger.Info().Err(err).Str("kind", string(apperr.KindOf(err))).Msg("login failed")
		return model.Session{}, err
	}
	if err := m.setSession(ctx, s); err != nil {
		m.logger.Error().Err(err).Msg("persist session")
		return model.Session{}, apperr.Wrap(apperr.KindAuthenticationFailed, err)
	}
	m.logger.Info().Msg("login succeeded")
	return s, nil
}

// setSession is the only writer of the session. Storage is written first so
// memory never holds a session the next start would not see.
func (m *Manager) setSession(ctx context.Context, s model.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	blob, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := m.store.PutState(ctx, storage.StateEntry{Key: m.key, Value: string(blob), UpdatedAt: m.now()}); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &s
	return nil
}

func (m *Manager) Register(ctx context.Context, username, password string) error {
	if err := m.auth.Register(ctx, strings.TrimSpace(username), password); err != nil {
		m.logger.Info().Err(err).Msg("registration failed")
		return err
	}
	return nil
}

func (m *Manager) Confirm(ctx context.Context, username, code string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return apperr.New(apperr.KindConfirmationFailed, "Username is required")
	}
	if err := m.auth.Confirm(ctx, username, strings.TrimSpace(code)); err != nil {
		m.logger.Info().Err(err).Msg("confirmation failed")
		return err
	}
	return nil
}

// Logout always succeeds locally; a failure to delete the blob is logged.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if err := m.store.DeleteState(ctx, m.key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.logger.Error().Err(err).Msg("delete persisted session")
	}
	m.logger.Info().Msg("logged out")
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

func (m *Manager) Session() (model.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return model.Session{}, false
	}
	return *m.current, true
}

func (m *Manager) IDToken() (string, bool) {
	s, ok := m.Session()
	if !ok {
		return "", false
	}
	return s.IDToken, true
}

// Identity returns display claims for the signed-in user.
func (m *Manager) Identity() (model.Claims, bool) {
	s, ok := m.Session()
	if !ok {
		return model.Claims{}, false
	}
	claims, err := model.ParseClaims(s.IDToken)
	if err != nil {
		m.logger.Debug().Err(err).Msg("parse id token claims")
		return model.Claims{}, false
	}
	return claims, true
}
