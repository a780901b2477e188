// Package types holds the wire-level types the gateway emits:
// OpenAI-compatible error envelopes shared by the handlers and the
// middleware chain.
package types
