// Package identitytest provides an in-memory identity.Provider for tests.
package identitytest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
)

// BaseURL prefixes the hrefs of fake accounts.
const BaseURL = "https://identity.test/v1/accounts/"

// IssuerURL is the token issuer used by the fake.
const IssuerURL = "https://identity.test"

// Op names a provider operation for targeted failure injection.
type Op string

const (
	OpGetAccount    Op = "GetAccountByReference"
	OpGetByAPIKey   Op = "GetAccountByAPIKey"
	OpGetCustomData Op = "GetCustomData"
	OpVerifyToken   Op = "VerifyToken"
	OpRefreshTokens Op = "RefreshTokens"
)

type apiKey struct {
	secret    string
	accountID string
}

// Provider is an in-memory identity.Provider. Tokens are real RS256 JWTs
// signed with a generated key, so verification behaves like production.
type Provider struct {
	Keys      *auth.KeySet
	Issuer    *auth.Issuer
	Validator *auth.KeySetValidator

	mu         sync.RWMutex
	accounts   map[string]*identity.Account
	customData map[string]identity.CustomData
	apiKeys    map[string]apiKey
	usedJTIs   map[string]bool
	failures   map[Op]error
	failAll    error
	block      chan struct{}

	calls sync.Map // Op -> *atomic.Int64
}

var _ identity.Provider = (*Provider)(nil)

// New creates an empty fake provider with a fresh signing key.
func New() (*Provider, error) {
	keys, err := auth.GenerateKeySet()
	if err != nil {
		return nil, err
	}
	return &Provider{
		Keys: keys,
		Issuer: auth.NewIssuer(keys, auth.IssuerOptions{
			Issuer:     IssuerURL,
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		}),
		Validator:  auth.NewKeySetValidator(keys, IssuerURL, ""),
		accounts:   map[string]*identity.Account{},
		customData: map[string]identity.CustomData{},
		apiKeys:    map[string]apiKey{},
		usedJTIs:   map[string]bool{},
		failures:   map[Op]error{},
	}, nil
}

// AddAccount stores an account and returns it with its href filled in. An
// empty status defaults to ENABLED.
func (p *Provider) AddAccount(account identity.Account) *identity.Account {
	p.mu.Lock()
	defer p.mu.Unlock()

	if account.Status == "" {
		account.Status = identity.StatusEnabled
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if account.ModifiedAt.IsZero() {
		account.ModifiedAt = account.CreatedAt
	}
	account.Href = BaseURL + account.ID

	stored := account
	p.accounts[account.ID] = &stored
	p.customData[account.ID] = identity.CustomData{
		"createdAt":  account.CreatedAt,
		"modifiedAt": account.ModifiedAt,
	}
	out := stored
	return &out
}

// SetStatus changes an account's status.
func (p *Provider) SetStatus(id, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if acct, ok := p.accounts[id]; ok {
		acct.Status = status
	}
}

// SetCustomData merges values into an account's custom data.
func (p *Provider) SetCustomData(id string, values map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data := p.customData[id]
	if data == nil {
		data = identity.CustomData{}
		p.customData[id] = data
	}
	for k, v := range values {
		data[k] = v
	}
}

// AddAPIKey registers an API key for an account.
func (p *Provider) AddAPIKey(id, secret, accountID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apiKeys[id] = apiKey{secret: secret, accountID: accountID}
}

// IssueAccessToken signs an access token for the account.
func (p *Provider) IssueAccessToken(accountID string) (string, error) {
	token, err := p.Issuer.Issue(BaseURL+accountID, auth.TokenKindAccess)
	if err != nil {
		return "", err
	}
	return token.Raw, nil
}

// IssueRefreshToken signs a refresh token for the account.
func (p *Provider) IssueRefreshToken(accountID string) (string, error) {
	token, err := p.Issuer.Issue(BaseURL+accountID, auth.TokenKindRefresh)
	if err != nil {
		return "", err
	}
	return token.Raw, nil
}

// FailWith makes every operation fail with a provider failure wrapping err.
// A nil err clears the failure.
func (p *Provider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failAll = err
}

// FailOn makes a single operation fail with a provider failure wrapping err.
// A nil err clears it.
func (p *Provider) FailOn(op Op, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

// Block makes every operation wait until the returned release function is
// called or the operation's context is done.
func (p *Provider) Block() (release func()) {
	ch := make(chan struct{})
	p.mu.Lock()
	p.block = ch
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.block = nil
			p.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns how many times op was invoked.
func (p *Provider) Calls(op Op) int {
	v, ok := p.calls.Load(op)
	if !ok {
		return 0
	}
	return int(v.(*atomic.Int64).Load())
}

// TotalCalls returns the number of invocations across all operations.
func (p *Provider) TotalCalls() int {
	total := 0
	for _, op := range []Op{OpGetAccount, OpGetByAPIKey, OpGetCustomData, OpVerifyToken, OpRefreshTokens} {
		total += p.Calls(op)
	}
	return total
}

func (p *Provider) enter(ctx context.Context, op Op) error {
	v, _ := p.calls.LoadOrStore(op, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)

	p.mu.RLock()
	block := p.block
	failure := p.failAll
	if f, ok := p.failures[op]; ok {
		failure = f
	}
	p.mu.RUnlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failure != nil {
		return &identity.ProviderError{Op: string(op), Err: failure}
	}
	return nil
}

func (p *Provider) lookup(ref string) (*identity.Account, bool) {
	id := strings.TrimPrefix(ref, BaseURL)
	p.mu.RLock()
	defer p.mu.RUnlock()
	acct, ok := p.accounts[id]
	if !ok {
		return nil, false
	}
	out := *acct
	return &out, true
}

// GetAccountByReference implements identity.Provider.
func (p *Provider) GetAccountByReference(ctx context.Context, ref string) (*identity.Account, error) {
	if err := p.enter(ctx, OpGetAccount); err != nil {
		return nil, err
	}
	acct, ok := p.lookup(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", identity.ErrNotFound, ref)
	}
	return acct, nil
}

// GetAccountByAPIKey implements identity.Provider.
func (p *Provider) GetAccountByAPIKey(ctx context.Context, id, secret string) (*identity.Account, error) {
	if err := p.enter(ctx, OpGetByAPIKey); err != nil {
		return nil, err
	}

	p.mu.RLock()
	key, ok := p.apiKeys[id]
	p.mu.RUnlock()
	if !ok || key.secret != secret {
		return nil, identity.ErrInvalidCredentials
	}

	acct, ok := p.lookup(key.accountID)
	if !ok {
		return nil, identity.ErrInvalidCredentials
	}
	return acct, nil
}

// GetCustomData implements identity.Provider.
func (p *Provider) GetCustomData(ctx context.Context, ref string) (identity.CustomData, error) {
	if err := p.enter(ctx, OpGetCustomData); err != nil {
		return nil, err
	}
	acct, ok := p.lookup(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", identity.ErrNotFound, ref)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(identity.CustomData, len(p.customData[acct.ID]))
	for k, v := range p.customData[acct.ID] {
		out[k] = v
	}
	return out, nil
}

// VerifyToken implements identity.Provider.
func (p *Provider) VerifyToken(ctx context.Context, raw string, kind auth.TokenKind) (*auth.Claims, error) {
	if err := p.enter(ctx, OpVerifyToken); err != nil {
		return nil, err
	}
	return p.Validator.Validate(ctx, raw, kind)
}

// RefreshTokens implements identity.Provider. Refresh tokens are single-use.
func (p *Provider) RefreshTokens(ctx context.Context, refreshToken string) (*identity.TokenPair, error) {
	if err := p.enter(ctx, OpRefreshTokens); err != nil {
		return nil, err
	}

	claims, err := p.Validator.Validate(ctx, refreshToken, auth.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.usedJTIs[claims.ID] {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: refresh token already used", identity.ErrInvalidToken)
	}
	p.usedJTIs[claims.ID] = true
	p.mu.Unlock()

	acct, ok := p.lookup(claims.Subject)
	if !ok {
		return nil, fmt.Errorf("%w: unknown subject", identity.ErrInvalidToken)
	}
	if !acct.IsEnabled() {
		return nil, identity.ErrAccountDisabled
	}

	access, err := p.Issuer.Issue(claims.Subject, auth.TokenKindAccess)
	if err != nil {
		return nil, errors.Join(identity.ErrInvalidToken, err)
	}
	refresh, err := p.Issuer.Issue(claims.Subject, auth.TokenKindRefresh)
	if err != nil {
		return nil, errors.Join(identity.ErrInvalidToken, err)
	}
	return &identity.TokenPair{
		AccessToken:      access.Raw,
		RefreshToken:     refresh.Raw,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}
