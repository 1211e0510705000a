package iam

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
)

// mockAuthenticator for testing
type mockAuthenticator struct {
	source    auth.Source
	principal *auth.Principal
	err       error
	calls     int
}

func (m *mockAuthenticator) Source() auth.Source { return m.source }

func (m *mockAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*auth.Principal, error) {
	m.calls++
	return m.principal, m.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newMockResolver(propagate bool, authenticators ...Authenticator) *resolver {
	enabled := map[auth.Source]bool{}
	for _, source := range auth.Sources {
		enabled[source] = true
	}
	return &resolver{
		authenticators: authenticators,
		enabled:        enabled,
		propagate:      propagate,
		cookies:        auth.DefaultCookieNames(),
		logger:         quietLogger(),
	}
}

// allCredentials marks every source as present so the chain consults each one.
func allCredentials() auth.Credentials {
	creds := auth.Credentials{}
	for _, source := range auth.Sources {
		creds = append(creds, auth.Credential{Source: source, Value: "x"})
	}
	return creds
}

var errUpstream = &identity.ProviderError{Op: "GetAccountByReference", Err: errors.New("connection refused")}

// TestResolver_Resolve_NoAuthenticators tests with no authenticators
func TestResolver_Resolve_NoAuthenticators(t *testing.T) {
	svc := newMockResolver(false)

	res := svc.Resolve(context.Background(), allCredentials())
	assert.False(t, res.Resolved())
	assert.Equal(t, OutcomeUnresolved, res.Outcome())
	assert.NoError(t, res.Err)
}

// TestResolver_Resolve_FirstAuthenticatorSucceeds tests authenticator priority
func TestResolver_Resolve_FirstAuthenticatorSucceeds(t *testing.T) {
	expected := &auth.Principal{ID: "acc-1"}
	first := &mockAuthenticator{source: auth.SourceSession, principal: expected}
	second := &mockAuthenticator{source: auth.SourceAccessToken}

	svc := newMockResolver(false, first, second)
	res := svc.Resolve(context.Background(), allCredentials())

	require.True(t, res.Resolved())
	assert.Same(t, expected, res.Principal)
	assert.Equal(t, auth.SourceSession, res.Source)
	assert.Equal(t, 0, second.calls, "later authenticators must not run once resolved")
}

// TestResolver_Resolve_FirstReturnsNilSecondSucceeds tests fallthrough
func TestResolver_Resolve_FirstReturnsNilSecondSucceeds(t *testing.T) {
	expected := &auth.Principal{ID: "acc-2"}
	first := &mockAuthenticator{source: auth.SourceSession}
	second := &mockAuthenticator{source: auth.SourceBasic, principal: expected}

	svc := newMockResolver(false, first, second)
	res := svc.Resolve(context.Background(), allCredentials())

	require.True(t, res.Resolved())
	assert.Same(t, expected, res.Principal)
	assert.Equal(t, auth.SourceBasic, res.Source)
	assert.Equal(t, 1, first.calls)
}

// TestResolver_Resolve_SkipsAbsentCredentials tests that sources without a credential are not consulted
func TestResolver_Resolve_SkipsAbsentCredentials(t *testing.T) {
	session := &mockAuthenticator{source: auth.SourceSession, principal: &auth.Principal{ID: "s"}}
	bearer := &mockAuthenticator{source: auth.SourceBearer, principal: &auth.Principal{ID: "b"}}

	svc := newMockResolver(false, session, bearer)
	res := svc.Resolve(context.Background(), auth.Credentials{{Source: auth.SourceBearer, Value: "tok"}})

	require.True(t, res.Resolved())
	assert.Equal(t, "b", res.Principal.ID)
	assert.Equal(t, 0, session.calls)
}

// TestResolver_Resolve_ProviderFailureFallsThrough tests the default provider failure policy
func TestResolver_Resolve_ProviderFailureFallsThrough(t *testing.T) {
	expected := &auth.Principal{ID: "acc-3"}
	first := &mockAuthenticator{source: auth.SourceSession, err: errUpstream}
	second := &mockAuthenticator{source: auth.SourceBasic, principal: expected}

	svc := newMockResolver(false, first, second)
	res := svc.Resolve(context.Background(), allCredentials())

	require.True(t, res.Resolved())
	assert.Same(t, expected, res.Principal)
	require.Len(t, res.ProviderErrors, 1)
	assert.True(t, identity.IsProviderFailure(res.ProviderErrors[0]))
	assert.NoError(t, res.Err)
}

// TestResolver_Resolve_ProviderFailurePropagates tests the propagate policy
func TestResolver_Resolve_ProviderFailurePropagates(t *testing.T) {
	first := &mockAuthenticator{source: auth.SourceSession, err: errUpstream}
	second := &mockAuthenticator{source: auth.SourceBasic, principal: &auth.Principal{ID: "never"}}

	svc := newMockResolver(true, first, second)
	res := svc.Resolve(context.Background(), allCredentials())

	assert.False(t, res.Resolved())
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ErrProviderUnavailable)
	assert.True(t, identity.IsProviderFailure(res.Err))
	assert.Len(t, res.ProviderErrors, 1)
	assert.Equal(t, 0, second.calls)
}

// TestResolver_Resolve_AllReturnNil tests unauthenticated requests
func TestResolver_Resolve_AllReturnNil(t *testing.T) {
	var authenticators []Authenticator
	for _, source := range auth.Sources {
		authenticators = append(authenticators, &mockAuthenticator{source: source})
	}

	svc := newMockResolver(false, authenticators...)
	res := svc.Resolve(context.Background(), allCredentials())

	assert.False(t, res.Resolved())
	assert.Empty(t, res.ProviderErrors)
	assert.NoError(t, res.Err)
	for _, a := range authenticators {
		assert.Equal(t, 1, a.(*mockAuthenticator).calls)
	}
}

// TestResolver_Resolve_CancelledContext tests that a finished request context stops resolution
func TestResolver_Resolve_CancelledContext(t *testing.T) {
	first := &mockAuthenticator{source: auth.SourceSession, principal: &auth.Principal{ID: "acc"}}
	svc := newMockResolver(false, first)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := svc.Resolve(ctx, allCredentials())
	assert.False(t, res.Resolved())
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 0, first.calls)
}

// TestResolver_Resolve_DisabledSource tests that a disabled source is skipped as if absent
func TestResolver_Resolve_DisabledSource(t *testing.T) {
	session := &mockAuthenticator{source: auth.SourceSession, principal: &auth.Principal{ID: "s"}}
	access := &mockAuthenticator{source: auth.SourceAccessToken, principal: &auth.Principal{ID: "a"}}

	svc := newMockResolver(false, session, access)
	svc.enabled[auth.SourceSession] = false

	res := svc.Resolve(context.Background(), allCredentials())
	require.True(t, res.Resolved())
	assert.Equal(t, "a", res.Principal.ID)
	assert.Equal(t, 0, session.calls)
}
