// Package auth implements authentication for the CourseHub backend.
//
// # Overview
//
// This package provides the full token lifecycle: issuing and parsing signed
// identity tokens, verifying passwords, tracking revoked tokens, and
// orchestrating login, registration, logout and token verification through
// the Service type.
//
// # Key Components
//
// Token Codec: HS512-signed, time-bound identity tokens
//
//	codec := auth.NewTokenCodec(secret, 24*time.Hour)
//	token, _ := codec.Issue("alice")
//	claims, err := codec.Parse(token)
//
// Revocation Store: concurrent revoked-token set with per-user valid-after
// epochs. Two implementations: in-memory (process lifetime, swept on a
// schedule) and redis-backed (shared, entries expire via key TTL).
//
//	store := auth.NewMemoryRevocationStore()
//	store.Revoke(ctx, token, claims.ExpiresAt)
//
// Service: the stateful core composing codec, hasher, revocation store and
// the user store.
//
// Tokens are stateless: validity is carried in the token itself, and the
// revocation store is the only shared mutable state in the package.
package auth
