// Relay is a credential-pooling reverse proxy for LLM HTTP APIs.
//
// It fronts a fixed set of upstream providers, picking API keys from
// per-provider pools, routing egress directly or through rotating
// SOCKS5 proxies, and keeping credential state reconciled with a
// SQLite store.
//
// Usage:
//
//	# Start with default configuration (environment overrides apply)
//	relay run
//
//	# Start with a configuration file
//	relay run --config /etc/relay/relay.yaml
//
//	# Show version information
//	relay version
package main

func main() {
	Execute()
}
