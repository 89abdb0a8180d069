package session

import (
	"context"
	"time"

	"github.com/codetrail/learngate/internal/domain"
	"github.com/codetrail/learngate/internal/infrastructure/driver"
	"github.com/codetrail/learngate/internal/infrastructure/uuid"
	"go.uber.org/zap"
)

const keyPrefix = "session:"

// Manager owns browser sessions. A session is a generated ID mapped to the
// learner's upstream credential in the KV store; nothing else is kept. The
// credential leaves the store only to be attached to upstream requests.
type Manager struct {
	kv      driver.KeyValueDB
	idgen   uuid.Generator
	timeout time.Duration
	logger  *zap.Logger
}

var _ domain.SessionManager = &Manager{}

// NewManager create a session manager backed by the given KV store
func NewManager(kv driver.KeyValueDB, idgen uuid.Generator, timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		kv:      kv,
		idgen:   idgen,
		timeout: timeout,
		logger:  logger,
	}
}

// Issue start a session holding the given credential
func (m *Manager) Issue(ctx context.Context, credential string) (*domain.SessionModel, error) {
	if credential == "" {
		return nil, domain.ErrUnauthenticated
	}
	sid, err := m.idgen.Generate()
	if err != nil {
		return nil, err
	}
	if err := m.kv.SetEX(keyPrefix+sid, credential, m.timeout); err != nil {
		return nil, err
	}
	m.logger.Debug("Issued session", zap.String("session.id", sid))
	return &domain.SessionModel{ID: sid, Credential: credential}, nil
}

// Get load the session for sid, nil when unknown or expired
func (m *Manager) Get(ctx context.Context, sid string) (*domain.SessionModel, error) {
	credential, err := m.kv.Get(keyPrefix + sid)
	if err != nil {
		if err == driver.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &domain.SessionModel{ID: sid, Credential: credential}, nil
}

// Discard drop the credential held by sid. Called on sign-out and whenever
// the remote store rejects the credential.
func (m *Manager) Discard(ctx context.Context, sid string) error {
	return m.kv.Del(keyPrefix + sid)
}
