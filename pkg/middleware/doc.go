// Package middleware provides the request authentication middleware and the
// route authorization policy.
//
// The Authenticator runs once per request: it extracts a bearer token,
// checks revocation before signature validity, loads the principal and
// attaches it to the request context. The Policy then matches the request
// against an ordered rule table and decides whether the attached principal
// (or its absence) may proceed.
package middleware
