package iam

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-bexpr"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
)

// AccountFilter is a go-bexpr expression every resolved account must match,
// for example `Email matches ".*@example\\.com$"` or `Username != "root"`.
//
// Fields available to the expression: ID, Href, Username, Email, GivenName,
// Surname, Status.
type AccountFilter struct {
	expr      string
	evaluator *bexpr.Evaluator
}

// NewAccountFilter compiles expr. An empty expression yields a nil filter,
// which matches every account.
func NewAccountFilter(expr string) (*AccountFilter, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	evaluator, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, fmt.Errorf("compile account filter: %w", err)
	}
	return &AccountFilter{expr: expr, evaluator: evaluator}, nil
}

// Matches evaluates the filter against account. Evaluation errors, such as
// a selector on a missing field, do not match.
func (f *AccountFilter) Matches(account *identity.Account) bool {
	if f == nil {
		return true
	}
	matches, err := f.evaluator.Evaluate(map[string]any{
		"ID":        account.ID,
		"Href":      account.Href,
		"Username":  account.Username,
		"Email":     account.Email,
		"GivenName": account.GivenName,
		"Surname":   account.Surname,
		"Status":    account.Status,
	})
	if err != nil {
		return false
	}
	return matches
}

// String returns the source expression.
func (f *AccountFilter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}
