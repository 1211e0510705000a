package iam

import (
	"context"
	"errors"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
)

// AccountResolver fetches accounts from the identity provider and turns the
// usable ones into principals. It never caches: status is read live on
// every call.
type AccountResolver struct {
	provider         identity.Provider
	expandCustomData bool
	filter           *AccountFilter
}

// NewAccountResolver creates an account resolver.
func NewAccountResolver(provider identity.Provider, expandCustomData bool, filter *AccountFilter) *AccountResolver {
	return &AccountResolver{provider: provider, expandCustomData: expandCustomData, filter: filter}
}

// ResolveReference resolves an account by href or id.
func (r *AccountResolver) ResolveReference(ctx context.Context, ref string, source auth.Source) (*auth.Principal, error) {
	account, err := r.provider.GetAccountByReference(ctx, ref)
	if err != nil {
		return nil, failure(err)
	}
	return r.principalFor(ctx, account, source)
}

// ResolveAPIKey resolves the account owning an API key.
func (r *AccountResolver) ResolveAPIKey(ctx context.Context, id, secret string) (*auth.Principal, error) {
	account, err := r.provider.GetAccountByAPIKey(ctx, id, secret)
	if err != nil {
		return nil, failure(err)
	}
	return r.principalFor(ctx, account, auth.SourceBasic)
}

func (r *AccountResolver) principalFor(ctx context.Context, account *identity.Account, source auth.Source) (*auth.Principal, error) {
	if !account.IsEnabled() {
		return nil, nil
	}
	if !r.filter.Matches(account) {
		return nil, nil
	}

	principal := &auth.Principal{
		Href:       account.Href,
		ID:         account.ID,
		Username:   account.Username,
		GivenName:  account.GivenName,
		Surname:    account.Surname,
		Email:      account.Email,
		Status:     account.Status,
		CreatedAt:  account.CreatedAt,
		ModifiedAt: account.ModifiedAt,
		Source:     source,
	}

	if r.expandCustomData {
		data, err := r.provider.GetCustomData(ctx, account.Href)
		if err != nil {
			return nil, failure(err)
		}
		principal.CustomData = map[string]any(data)
	}

	return principal, nil
}

// failure separates provider failures from credential rejections. Rejections
// map to nil so the caller falls through; anything else is returned as a
// provider failure.
func failure(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case identity.IsProviderFailure(err):
		return err
	case errors.Is(err, identity.ErrNotFound),
		errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrAccountDisabled):
		return nil
	default:
		return &identity.ProviderError{Op: "unclassified", Err: err}
	}
}
