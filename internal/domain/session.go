package domain

import "context"

// SessionModel browser session holding the learner's upstream credential.
// The credential is an opaque bearer token, the client only cares about
// presence and server-reported validity.
type SessionModel struct {
	ID         string
	Credential string
}

// Authenticated whether the session currently holds a credential
func (s *SessionModel) Authenticated() bool {
	return s != nil && s.Credential != ""
}

// SessionManager manage the lifetime of browser sessions
type SessionManager interface {
	Issue(ctx context.Context, credential string) (*SessionModel, error)
	Get(ctx context.Context, sid string) (*SessionModel, error)
	Discard(ctx context.Context, sid string) error
}

// CredentialInvalidator discard a rejected credential from the session
// context. Injected into services so they never touch ambient session state.
type CredentialInvalidator interface {
	Discard(ctx context.Context, sid string) error
}
