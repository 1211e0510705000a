package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/models"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/repository"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/telemetry"
)

const (
	accountsPath = "/v1/accounts/"
	tracerName   = "gatekeeper/identity"
)

// Refresher exchanges a refresh token with an upstream token endpoint.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// DirectoryDependencies holds the repositories backing the directory.
type DirectoryDependencies struct {
	Accounts      repository.AccountRepository
	APIKeys       repository.APIKeyRepository
	CustomData    repository.CustomDataRepository
	RefreshTokens repository.RefreshTokenRepository
}

// DirectoryOptions configures a Directory.
type DirectoryOptions struct {
	// ServerURL prefixes account hrefs: <ServerURL>/v1/accounts/<id>.
	ServerURL string

	// Validator verifies access and refresh tokens.
	Validator auth.Validator

	// Issuer signs tokens for local refresh-token rotation. Required unless
	// Refresher is set.
	Issuer *auth.Issuer

	// Refresher, when set, handles refresh through an external provider
	// instead of local rotation.
	Refresher Refresher

	// APIKeyCacheSize and APIKeyCacheTTL bound the verified-secret cache.
	APIKeyCacheSize int
	APIKeyCacheTTL  time.Duration

	Logger *logrus.Logger
}

// Directory is the database-backed identity provider.
type Directory struct {
	accounts      repository.AccountRepository
	apiKeys       repository.APIKeyRepository
	customData    repository.CustomDataRepository
	refreshTokens repository.RefreshTokenRepository

	serverURL string
	validator auth.Validator
	issuer    *auth.Issuer
	refresher Refresher

	// verified maps HashToken(id:secret) to the bcrypt hash it was checked
	// against, so a repeated Basic credential skips bcrypt. Key and account
	// status are still read on every call.
	verified *expirable.LRU[string, string]

	logger *logrus.Logger
}

var _ Provider = (*Directory)(nil)

// NewDirectory creates a directory provider.
func NewDirectory(deps DirectoryDependencies, opts DirectoryOptions) (*Directory, error) {
	if deps.Accounts == nil || deps.APIKeys == nil || deps.CustomData == nil || deps.RefreshTokens == nil {
		return nil, errors.New("directory requires all repositories")
	}
	if opts.Validator == nil {
		return nil, errors.New("directory requires a token validator")
	}
	if opts.Refresher == nil && opts.Issuer == nil {
		return nil, errors.New("directory requires a token issuer or an external refresher")
	}

	size := opts.APIKeyCacheSize
	if size <= 0 {
		size = 1024
	}
	ttl := opts.APIKeyCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Directory{
		accounts:      deps.Accounts,
		apiKeys:       deps.APIKeys,
		customData:    deps.CustomData,
		refreshTokens: deps.RefreshTokens,
		serverURL:     strings.TrimSuffix(opts.ServerURL, "/"),
		validator:     opts.Validator,
		issuer:        opts.Issuer,
		refresher:     opts.Refresher,
		verified:      expirable.NewLRU[string, string](size, nil, ttl),
		logger:        logger,
	}, nil
}

// Href returns the href of the account with the given id.
func (d *Directory) Href(id string) string {
	return d.serverURL + accountsPath + id
}

// GetAccountByReference implements Provider. ref may be a full href, a bare
// account id, or, for subjects minted by an external provider, a username.
func (d *Directory) GetAccountByReference(ctx context.Context, ref string) (*Account, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.GetAccountByReference")
	defer span.End()

	id, byID, err := d.parseReference(ref)
	if err != nil {
		return nil, err
	}

	account, err := d.accounts.GetByID(ctx, id)
	if !byID && errors.Is(err, repository.ErrNotFound) {
		account, err = d.accounts.GetByUsername(ctx, id)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		telemetry.RecordError(span, err)
		return nil, providerFailure("get account", err)
	}

	return d.toAccount(account), nil
}

// parseReference accepts "<server_url>/v1/accounts/<id>" or a bare
// identifier. byID is true when ref was an href.
func (d *Directory) parseReference(ref string) (id string, byID bool, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false, fmt.Errorf("%w: empty reference", ErrNotFound)
	}

	if strings.Contains(ref, "://") {
		prefix := d.serverURL + accountsPath
		if !strings.HasPrefix(ref, prefix) {
			return "", false, fmt.Errorf("%w: foreign href %s", ErrNotFound, ref)
		}
		id = strings.TrimPrefix(ref, prefix)
		if id == "" || strings.Contains(id, "/") {
			return "", false, fmt.Errorf("%w: malformed href %s", ErrNotFound, ref)
		}
		return id, true, nil
	}

	if strings.Contains(ref, "/") {
		return "", false, fmt.Errorf("%w: malformed reference %s", ErrNotFound, ref)
	}
	return ref, false, nil
}

// GetAccountByAPIKey implements Provider.
func (d *Directory) GetAccountByAPIKey(ctx context.Context, id, secret string) (*Account, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.GetAccountByAPIKey")
	defer span.End()

	if id == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}

	key, err := d.apiKeys.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		telemetry.RecordError(span, err)
		return nil, providerFailure("get api key", err)
	}
	if key.Status != models.APIKeyStatusEnabled {
		return nil, ErrInvalidCredentials
	}

	if !d.secretMatches(key, id, secret) {
		return nil, ErrInvalidCredentials
	}

	if err := d.apiKeys.UpdateLastUsed(ctx, key.ID); err != nil {
		d.logger.WithError(err).WithField("api_key_id", key.ID).Warn("failed to record api key use")
	}

	account, err := d.accounts.GetByID(ctx, key.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		telemetry.RecordError(span, err)
		return nil, providerFailure("get api key account", err)
	}

	return d.toAccount(account), nil
}

func (d *Directory) secretMatches(key *models.APIKey, id, secret string) bool {
	cacheKey := auth.HashToken(id + ":" + secret)
	if hash, ok := d.verified.Get(cacheKey); ok && hash == key.SecretHash {
		return true
	}

	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return false
	}

	d.verified.Add(cacheKey, key.SecretHash)
	return true
}

// GetCustomData implements Provider.
func (d *Directory) GetCustomData(ctx context.Context, ref string) (CustomData, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.GetCustomData")
	defer span.End()

	account, err := d.GetAccountByReference(ctx, ref)
	if err != nil {
		return nil, err
	}

	stored, err := d.customData.Get(ctx, account.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, providerFailure("get custom data", err)
	}

	data := make(CustomData, len(stored.Data)+3)
	for k, v := range stored.Data {
		data[k] = v
	}
	data["href"] = account.Href + "/customData"
	data["createdAt"] = stored.CreatedAt
	data["modifiedAt"] = stored.ModifiedAt
	return data, nil
}

// VerifyToken implements Provider.
func (d *Directory) VerifyToken(ctx context.Context, raw string, kind auth.TokenKind) (*auth.Claims, error) {
	return d.validator.Validate(ctx, raw, kind)
}

// RefreshTokens implements Provider. Locally issued refresh tokens are
// single-use: a successful refresh consumes the presented token and issues a
// new pair.
func (d *Directory) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.RefreshTokens")
	defer span.End()

	if d.refresher != nil {
		return d.refresher.Refresh(ctx, refreshToken)
	}

	claims, err := d.validator.Validate(ctx, refreshToken, auth.TokenKindRefresh)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: refresh token has no jti", ErrInvalidToken)
	}

	account, err := d.GetAccountByReference(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return nil, err
	}
	if !account.IsEnabled() {
		return nil, ErrAccountDisabled
	}

	if err := d.refreshTokens.MarkUsed(ctx, claims.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			d.logger.WithFields(logrus.Fields{
				"account_id": account.ID,
				"jti":        claims.ID,
			}).Warn("refresh token reuse rejected")
			return nil, fmt.Errorf("%w: refresh token already used", ErrInvalidToken)
		}
		telemetry.RecordError(span, err)
		return nil, providerFailure("consume refresh token", err)
	}

	return d.IssueTokens(ctx, account.ID)
}

// IssueTokens signs a new access/refresh pair for an account and records the
// refresh token for rotation.
func (d *Directory) IssueTokens(ctx context.Context, accountID string) (*TokenPair, error) {
	if d.issuer == nil {
		return nil, errors.New("token issuance is not available with an external provider")
	}

	subject := d.Href(accountID)

	access, err := d.issuer.Issue(subject, auth.TokenKindAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := d.issuer.Issue(subject, auth.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	if err := d.refreshTokens.Create(ctx, &models.IssuedRefreshToken{
		JTI:       refresh.ID,
		AccountID: accountID,
		ExpiresAt: refresh.ExpiresAt,
	}); err != nil {
		return nil, providerFailure("record refresh token", err)
	}

	return &TokenPair{
		AccessToken:      access.Raw,
		RefreshToken:     refresh.Raw,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (d *Directory) toAccount(m *models.Account) *Account {
	return &Account{
		Href:       d.Href(m.ID),
		ID:         m.ID,
		Username:   m.Username,
		GivenName:  m.GivenName,
		Surname:    m.Surname,
		Email:      m.Email,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
		ModifiedAt: m.ModifiedAt,
	}
}
