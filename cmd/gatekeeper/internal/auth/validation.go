package auth

import (
	"fmt"
	"strings"
)

// ValidateUsername checks that a username is non-empty and usable as a
// session reference. Usernames never contain '/' or ':' because references
// may be hrefs and API key ids are split on ':'.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is empty")
	}
	if strings.TrimSpace(username) != username {
		return fmt.Errorf("invalid username: leading or trailing whitespace")
	}
	if strings.ContainsAny(username, "/:") {
		return fmt.Errorf("invalid username %q: must not contain '/' or ':'", username)
	}
	return nil
}

// ValidateEmail validates email format (basic RFC 5322 check)
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is empty")
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return fmt.Errorf("invalid email format: missing @")
	}
	if strings.Contains(domain, "@") {
		return fmt.Errorf("invalid email format: multiple @ symbols")
	}

	if local == "" {
		return fmt.Errorf("invalid email format: empty local part")
	}
	if domain == "" {
		return fmt.Errorf("invalid email format: empty domain")
	}
	if !strings.Contains(domain, ".") {
		return fmt.Errorf("invalid email format: domain missing TLD")
	}

	return nil
}
