// Package security holds the authorization primitives of the HR backend.
//
// This package implements:
//   - Principal: identity and role set derived from a validated token
//   - Request-scoped principal storage on context.Context
//   - Route policies (public, authenticated, role) and their evaluation
//   - The static route table consulted by the access middleware
//
// Token parsing lives in package token; HTTP plumbing lives in package middleware.
package security
