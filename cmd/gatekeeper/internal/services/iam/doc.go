// Package iam resolves the authenticated principal of an HTTP request.
//
// Resolution walks an ordered chain of authenticators, one per credential
// source, and stops at the first that yields a principal:
//
//  1. existing principal already attached to the request context
//  2. session reference cookie (idSiteSession)
//  3. access token cookie (access_token)
//  4. refresh token cookie (refresh_token), rotating the token pair
//  5. HTTP Basic API key credentials
//  6. HTTP Bearer access token
//
// Architecture:
//
//   - Authenticator interface: one strategy per credential source
//   - AccountResolver: live account fetch, status check, custom data expansion
//   - TokenRefresher: refresh token exchange
//   - Resolver: the ordered chain, source toggles and provider failure policy
//
// Request Flow:
//
//	Request → ExtractCredentials → Resolver.Resolve() → Resolution
//	       ↓
//	   Handler → auth.PrincipalFromContext()
//
// Resolution is fail-open. Absent, malformed and invalid credentials, unknown
// accounts and accounts that are not ENABLED all fall through to the next
// source. Account status is fetched from the identity provider on every
// resolution, so a disabled account stops resolving immediately even while
// its tokens still verify.
package iam
