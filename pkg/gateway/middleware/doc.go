// Package middleware provides HTTP middleware for the gateway:
// request identification, structured request logging, panic recovery,
// shared-secret authentication and tracing spans.
//
// Middleware composes in the standard wrap order; the server applies
// recovery outermost so panics anywhere in the chain are contained.
package middleware
